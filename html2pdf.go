package pdfmulti

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-pdfmulti/internal/process"
)

// pdfRenderer abstracts the render engine to enable testing without a browser.
type pdfRenderer interface {
	Render(ctx context.Context, tree *StagedTree, cfg ConversionConfig) ([]byte, error)
	Close() error
}

// Compile-time interface check
var _ pdfRenderer = (*rodRenderer)(nil)

// cssPixelsPerInch is the CSS reference pixel density.
const cssPixelsPerInch = 96

// rodRenderer implements pdfRenderer using go-rod.
// Rod automatically downloads Chromium on first run if not found.
// The browser is shared by concurrent renders; each render gets its own page.
type rodRenderer struct {
	mu         sync.Mutex
	browser    *rod.Browser
	launcher   *launcher.Launcher
	timeout    time.Duration
	browserBin string
	logger     *slog.Logger
}

// newRodRenderer creates a rodRenderer with the given page load timeout.
func newRodRenderer(timeout time.Duration, browserBin string, logger *slog.Logger) *rodRenderer {
	return &rodRenderer{timeout: timeout, browserBin: browserBin, logger: logger}
}

// ensureBrowser lazily launches and connects to the browser.
func (r *rodRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New()

	bin := r.browserBin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || bin != "" {
		l = l.NoSandbox(true)
	}

	r.logger.Debug("launching browser", "bin", bin)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	r.browser = browser
	r.launcher = l
	return browser, nil
}

// Close releases browser resources, killing the whole process tree.
func (r *rodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		if pid := r.launcher.PID(); pid > 0 {
			process.KillProcessGroup(pid)
		}
		r.launcher.Kill()
		r.launcher = nil
	}
	return err
}

// Render writes the staged document into the tree's scratch directory,
// loads it in headless Chrome and prints it to PDF according to cfg.
// Returns explicit errors instead of panicking when browser operations fail.
func (r *rodRenderer) Render(ctx context.Context, tree *StagedTree, cfg ConversionConfig) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := tree.WriteDocument(cfg)
	if err != nil {
		return nil, err
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.SetViewport(buildViewport(cfg)); err != nil {
		return nil, fmt.Errorf("%w: setting viewport: %v", ErrPageCreate, err)
	}

	// Wait for page to load with timeout from context or default
	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}

	if cfg.Logging {
		r.logger.Debug("loading staged document", "path", path, "timeout", timeout)
	}

	if err := page.Timeout(timeout).Navigate(fileURL(path)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := page.PDF(buildPDFOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	pdfBuf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}

	if cfg.Logging {
		r.logger.Debug("printed PDF", "bytes", len(pdfBuf))
	}
	return pdfBuf, nil
}

// buildViewport sizes the page to the printable width so that layout
// matches the paper, rasterizing at cfg.Scale device pixels per CSS pixel.
func buildViewport(cfg ConversionConfig) *proto.EmulationSetDeviceMetricsOverride {
	w, h := cfg.PaperSizeInches()
	contentW := w - (cfg.Margins.Left+cfg.Margins.Right)/mmPerInch
	contentH := h - (cfg.Margins.Top+cfg.Margins.Bottom)/mmPerInch

	return &proto.EmulationSetDeviceMetricsOverride{
		Width:             int(math.Round(contentW * cssPixelsPerInch)),
		Height:            int(math.Round(contentH * cssPixelsPerInch)),
		DeviceScaleFactor: cfg.Scale,
		Mobile:            false,
	}
}

// buildPDFOptions maps cfg onto proto.PagePrintToPDF.
// PaperSizeInches already accounts for orientation, so Landscape stays false.
func buildPDFOptions(cfg ConversionConfig) *proto.PagePrintToPDF {
	w, h := cfg.PaperSizeInches()

	return &proto.PagePrintToPDF{
		PaperWidth:        floatPtr(w),
		PaperHeight:       floatPtr(h),
		MarginTop:         floatPtr(cfg.Margins.Top / mmPerInch),
		MarginRight:       floatPtr(cfg.Margins.Right / mmPerInch),
		MarginBottom:      floatPtr(cfg.Margins.Bottom / mmPerInch),
		MarginLeft:        floatPtr(cfg.Margins.Left / mmPerInch),
		PrintBackground:   true,
		PreferCSSPageSize: false,
	}
}

// fileURL returns the file:// URL of a local path.
func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if len(p) > 0 && p[0] != '/' {
		p = "/" + p // Windows drive paths
	}
	return "file://" + p
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
