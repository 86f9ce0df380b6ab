package main

// Notes:
// - resolveSettings reads PDFMULTI_* variables, so tests that set them use
//   t.Setenv and cannot run in parallel.

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-pdfmulti/internal/config"
)

func parseTestFlags(t *testing.T, args ...string) (*flag.FlagSet, *commonFlags, *renderFlags, *outputFlags, *serveFlags) {
	t.Helper()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common, render, output, serve := &commonFlags{}, &renderFlags{}, &outputFlags{}, &serveFlags{}
	addCommonFlags(fs, common)
	addRenderFlags(fs, render)
	addOutputFlags(fs, output)
	addServeFlags(fs, serve)

	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return fs, common, render, output, serve
}

func TestResolveSettings_Precedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "pdfmulti.yaml")
	yaml := "render:\n  timeout: 10s\n  workers: 2\noutput:\n  dir: /from-file\nserver:\n  addr: \":9000\"\n"
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PDFMULTI_CONFIG", configPath)
	t.Setenv("PDFMULTI_TIMEOUT", "20s")
	t.Setenv("PDFMULTI_OUTPUT_DIR", "/from-env")

	fs, common, render, output, serve := parseTestFlags(t, "--timeout", "40s", "--single-flight=false")

	st, err := resolveSettings(fs, common, render, output, serve, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("resolveSettings() error = %v", err)
	}

	cfg := st.cfg
	if cfg.Render.Timeout != "40s" {
		t.Errorf("Render.Timeout = %q, want flag value 40s", cfg.Render.Timeout)
	}
	if cfg.Output.Dir != "/from-env" {
		t.Errorf("Output.Dir = %q, want env value", cfg.Output.Dir)
	}
	if cfg.Render.Workers != 2 {
		t.Errorf("Render.Workers = %d, want file value 2", cfg.Render.Workers)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want file value", cfg.Server.Addr)
	}
	if cfg.Server.SingleFlight {
		t.Error("Server.SingleFlight = true, want flag value false")
	}
}

func TestResolveSettings_UnsetFlagsKeepLowerLayers(t *testing.T) {
	t.Setenv("PDFMULTI_ADDR", ":7000")

	fs, common, render, output, serve := parseTestFlags(t)
	st, err := resolveSettings(fs, common, render, output, serve, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if st.cfg.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q, want env value", st.cfg.Server.Addr)
	}
	if !st.cfg.Server.SingleFlight {
		t.Error("Server.SingleFlight default should stay true when the flag is unset")
	}
}

func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		common  commonFlags
		enabled slog.Level
		blocked slog.Level
	}{
		{"default info", commonFlags{}, slog.LevelInfo, slog.LevelDebug},
		{"verbose", commonFlags{verbose: true}, slog.LevelDebug, slog.LevelDebug - 1},
		{"quiet", commonFlags{quiet: true}, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			logger, err := newLogger(cfg, &tt.common, &bytes.Buffer{})
			if err != nil {
				t.Fatal(err)
			}
			ctx := context.Background()
			if !logger.Enabled(ctx, tt.enabled) {
				t.Errorf("level %v disabled", tt.enabled)
			}
			if logger.Enabled(ctx, tt.blocked) {
				t.Errorf("level %v enabled", tt.blocked)
			}
		})
	}
}

func TestConverterOptions(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	if got := len(converterOptions(cfg, slog.Default())); got != 2 {
		t.Errorf("default options = %d, want 2 (logger, timeout)", got)
	}

	cfg.Render.AssetTimeout = "5s"
	cfg.Render.BrowserBin = "/usr/bin/chromium"
	if got := len(converterOptions(cfg, slog.Default())); got != 4 {
		t.Errorf("options = %d, want 4", got)
	}
}
