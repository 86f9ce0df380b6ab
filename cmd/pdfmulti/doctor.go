package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"

	"github.com/alnah/go-pdfmulti/internal/config"
	"github.com/alnah/go-pdfmulti/internal/fileutil"
	"github.com/alnah/go-pdfmulti/internal/hints"
	"github.com/alnah/go-pdfmulti/internal/store"
)

const (
	browserVersionTimeout = 10 * time.Second
	redisPingTimeout      = 3 * time.Second
)

// checkStatus is the outcome of one doctor check. Order matters: a report
// takes the worst status of its checks.
type checkStatus int

const (
	statusOK checkStatus = iota
	statusWarn
	statusError
)

func (s checkStatus) String() string {
	switch s {
	case statusWarn:
		return "warn"
	case statusError:
		return "error"
	default:
		return "ok"
	}
}

func (s checkStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// check is one line of the doctor report.
type check struct {
	Name   string      `json:"name"`
	Status checkStatus `json:"status"`
	Detail string      `json:"detail"`
	Hint   string      `json:"hint,omitempty"`
}

type doctorReport struct {
	Status   checkStatus `json:"status"`
	Platform string      `json:"platform"`
	Checks   []check     `json:"checks"`
}

func newDoctorCmd(env *Environment, common *commonFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the browser, scratch space and backends are ready",
		Long: `Check the configuration, the Chrome binary and its sandbox, the scratch
directory used for staged content, and any configured output directory
or Redis content store. Exits 1 when a check fails; warnings exit 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.DefaultConfig()
			st, cfgErr := resolveSettings(cmd.Flags(), common, nil, nil, nil, env.Stderr)
			if cfgErr == nil {
				cfg = st.cfg
			}

			report := diagnose(cmd.Context(), cfg, cfgErr)
			if err := writeReport(env.Stdout, report, jsonOutput); err != nil {
				return err
			}
			if report.Status == statusError {
				return &exitError{code: ExitGeneral}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

// diagnose runs every check that applies to cfg.
func diagnose(ctx context.Context, cfg *config.Config, cfgErr error) *doctorReport {
	checks := []check{
		checkConfig(cfgErr),
		checkBrowser(ctx, cfg.Render.BrowserBin),
		checkSandbox(cfg.Render.BrowserBin),
		checkScratch(os.TempDir()),
	}
	if cfg.Output.Dir != "" {
		checks = append(checks, checkOutputDir(cfg.Output.Dir))
	}
	if cfg.Storage.RedisAddr != "" {
		checks = append(checks, checkRedis(ctx, cfg.Storage.RedisAddr))
	}

	report := &doctorReport{
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		Checks:   checks,
	}
	for _, c := range checks {
		report.Status = max(report.Status, c.Status)
	}
	return report
}

func checkConfig(err error) check {
	c := check{Name: "config", Detail: "valid"}
	if err != nil {
		c.Status = statusError
		c.Detail = err.Error()
		c.Hint = strings.TrimPrefix(hintFor(err, false), "\n  hint: ")
	}
	return c
}

// checkBrowser finds the binary the renderer would launch: the configured
// one, then ROD_BROWSER_BIN, then a system Chrome.
func checkBrowser(ctx context.Context, bin string) check {
	c := check{Name: "browser"}

	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin == "" {
		path, found := launcher.LookPath()
		if !found {
			c.Status = statusWarn
			c.Detail = "no Chrome/Chromium installed, one is downloaded on first conversion"
			c.Hint = "set ROD_BROWSER_BIN or render.browserBin to use an installed browser"
			return c
		}
		bin = path
	}

	if !fileutil.FileExists(bin) {
		c.Status = statusError
		c.Detail = "not found at " + bin
		c.Hint = "check ROD_BROWSER_BIN or render.browserBin"
		return c
	}

	ctx, cancel := context.WithTimeout(ctx, browserVersionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, bin, "--version").Output() // #nosec G204 -- configured browser path
	if err != nil {
		c.Status = statusWarn
		c.Detail = fmt.Sprintf("%s (version unknown: %v)", bin, err)
		return c
	}
	c.Detail = fmt.Sprintf("%s (%s)", bin, strings.TrimSpace(string(out)))
	return c
}

// checkSandbox mirrors when the renderer turns Chrome's sandbox off, and
// warns when it stays on where it usually cannot start.
func checkSandbox(bin string) check {
	c := check{Name: "sandbox"}

	switch {
	case os.Getenv("ROD_NO_SANDBOX") == "1":
		c.Detail = "disabled (ROD_NO_SANDBOX=1)"
		return c
	case os.Getenv("CI") == "true":
		c.Detail = "disabled (CI=true)"
		return c
	case bin != "" || os.Getenv("ROD_BROWSER_BIN") != "":
		c.Detail = "disabled (explicit browser binary)"
		return c
	}

	c.Detail = "enabled"
	if where := containerSignal(); where != "" {
		c.Status = statusWarn
		c.Detail = "enabled inside a container (" + where + ")"
		c.Hint = "set ROD_NO_SANDBOX=1"
	} else if hints.InCI() {
		c.Status = statusWarn
		c.Detail = "enabled on a CI runner"
		c.Hint = "set ROD_NO_SANDBOX=1"
	}
	return c
}

// containerSignal names the first container marker found, or "".
func containerSignal() string {
	switch {
	case os.Getenv("PDFMULTI_CONTAINER") == "1":
		return "PDFMULTI_CONTAINER=1"
	case hints.IsInContainer():
		return "/.dockerenv"
	case os.Getenv("KUBERNETES_SERVICE_HOST") != "":
		return "kubernetes"
	}
	return ""
}

// checkScratch stages a document the way a conversion does.
func checkScratch(tmpDir string) check {
	c := check{Name: "scratch", Detail: tmpDir + " (writable)"}

	dir, err := os.MkdirTemp(tmpDir, "pdfmulti-doctor-")
	if err == nil {
		defer func() { _ = os.RemoveAll(dir) }()
		err = os.WriteFile(filepath.Join(dir, "index.html"), []byte("<div></div>"), 0o600)
	}
	if err != nil {
		c.Status = statusError
		c.Detail = fmt.Sprintf("%s: %v", tmpDir, err)
		c.Hint = "point TMPDIR at a writable directory"
	}
	return c
}

func checkOutputDir(dir string) check {
	c := check{Name: "output", Detail: dir + " (writable)"}

	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		var f *os.File
		if f, err = os.CreateTemp(dir, ".pdfmulti-doctor-*"); err == nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}
	if err != nil {
		c.Status = statusError
		c.Detail = fmt.Sprintf("%s: %v", dir, err)
		c.Hint = strings.TrimPrefix(hints.ForOutputDirectory(), "\n  hint: ")
	}
	return c
}

func checkRedis(ctx context.Context, addr string) check {
	c := check{Name: "redis", Detail: addr + " (reachable)"}

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	r := store.NewRedis(addr)
	defer func() { _ = r.Close() }()
	if err := r.Ping(ctx); err != nil {
		c.Status = statusError
		c.Detail = fmt.Sprintf("%s: %v", addr, err)
		c.Hint = "check storage.redisAddr or PDFMULTI_REDIS_ADDR"
	}
	return c
}

// writeReport prints the report as JSON or as aligned text.
func writeReport(w io.Writer, r *doctorReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "pdfmulti doctor (%s)\n\n", r.Platform)
	for _, c := range r.Checks {
		fmt.Fprintf(w, "  %-7s %-8s %s\n", "["+strings.ToUpper(c.Status.String())+"]", c.Name, c.Detail)
		if c.Hint != "" {
			fmt.Fprintf(w, "  %-7s %-8s hint: %s\n", "", "", c.Hint)
		}
	}

	switch r.Status {
	case statusOK:
		fmt.Fprintln(w, "\nStatus: ready")
	case statusWarn:
		fmt.Fprintln(w, "\nStatus: ready with warnings")
	default:
		fmt.Fprintln(w, "\nStatus: not ready")
	}
	return nil
}
