package pdfmulti

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Page format, unit and orientation constants.
const (
	FormatA4            = "a4"
	UnitMillimeter      = "mm"
	OrientationPortrait = "portrait"
	OutputFormatPDF     = "pdf"
)

// DefaultFileName is used when the content carries no usable title.
const DefaultFileName = "document"

// A4 paper size in millimeters.
const (
	a4WidthMM  = 210.0
	a4HeightMM = 297.0
	mmPerInch  = 25.4
)

// PageBreakMode is one pagination rule handed to the render engine.
type PageBreakMode string

// Pagination rules, listed in the order they are tried.
const (
	PageBreakAvoidAll PageBreakMode = "avoid-all"
	PageBreakCSS      PageBreakMode = "css"
	PageBreakLegacy   PageBreakMode = "legacy"
)

// Margins holds page margins in millimeters.
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// Slice returns the margins in [top, right, bottom, left] order.
func (m Margins) Slice() []float64 {
	return []float64{m.Top, m.Right, m.Bottom, m.Left}
}

// ImageOptions controls how raster content is compressed.
type ImageOptions struct {
	Type    string  // "jpeg"
	Quality float64 // 0..1
}

// ConversionConfig is the rendering and pagination configuration for one
// invocation. It only holds comparable fields, so two configs can be
// compared with ==.
type ConversionConfig struct {
	Margins     Margins
	Image       ImageOptions
	Scale       float64
	UseCORS     bool
	Logging     bool
	PageBreak   [3]PageBreakMode
	Unit        string
	Format      string
	Orientation string
	FileName    string
}

// PaperSizeInches returns the page size in inches for the configured format
// and orientation.
func (c ConversionConfig) PaperSizeInches() (width, height float64) {
	width, height = a4WidthMM/mmPerInch, a4HeightMM/mmPerInch
	if c.Orientation != OrientationPortrait {
		width, height = height, width
	}
	return width, height
}

// OutputDescriptor names the produced artifact.
type OutputDescriptor struct {
	FileName string
	Format   string
}

// State is a render driver state.
type State int

// Render driver states.
const (
	StateIdle State = iota
	StateStaging
	StateWaitingForAssets
	StateConfiguring
	StateRendering
	StatePersisting
	StateCleanup
	StateDone
	StateAborted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateStaging:          "staging",
	StateWaitingForAssets: "waiting-for-assets",
	StateConfiguring:      "configuring",
	StateRendering:        "rendering",
	StatePersisting:       "persisting",
	StateCleanup:          "cleanup",
	StateDone:             "done",
	StateAborted:          "aborted",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Input contains conversion parameters.
type Input struct {
	HTML      string // Content document (required)
	SourceDir string // Base directory for relative asset paths (optional)
	Sink      Sink   // Where the PDF is persisted (optional, nil = result only)
}

// Result is the outcome of a successful conversion.
type Result struct {
	State    State
	Output   OutputDescriptor
	PDF      []byte
	Pages    int
	Config   ConversionConfig
	Assets   GateReport
	Duration time.Duration
}

// Stats counts pipeline events across the lifetime of a Converter.
type Stats struct {
	Invocations int64
	Staged      int64
	Released    int64
	Done        int64
	Failed      int64
	Aborted     int64
}

// Option configures a Converter.
type Option func(*Converter)

// converterConfig holds internal configuration for Converter.
type converterConfig struct {
	timeout      time.Duration
	assetTimeout time.Duration
	browserBin   string
	tempDir      string
}

// defaultTimeout bounds page load inside the browser when ctx has no deadline.
const defaultTimeout = 30 * time.Second

// WithTimeout sets the render timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("pdfmulti: WithTimeout duration must be positive")
	}
	return func(c *Converter) {
		c.cfg.timeout = d
	}
}

// WithAssetTimeout bounds the wait for embedded assets. Zero (the default)
// waits indefinitely. An expired wait is reported as ErrAssetLoad.
func WithAssetTimeout(d time.Duration) Option {
	return func(c *Converter) {
		c.cfg.assetTimeout = d
	}
}

// WithBrowserBin uses the given Chrome/Chromium binary instead of the one
// found by rod (ROD_BROWSER_BIN still applies when empty).
func WithBrowserBin(path string) Option {
	return func(c *Converter) {
		c.cfg.browserBin = path
	}
}

// WithTempDir sets the parent directory of staged scratch directories
// (default: os.TempDir).
func WithTempDir(dir string) Option {
	return func(c *Converter) {
		c.cfg.tempDir = dir
	}
}

// WithLogger sets the logger used for diagnostics. Failures are logged at
// Error, state transitions and render steps at Debug.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// WithStateHook registers fn to observe every state the pipeline enters.
// fn runs on the converting goroutine and must not block.
func WithStateHook(fn func(State)) Option {
	return func(c *Converter) {
		c.stateHook = fn
	}
}

// WithHTTPClient sets the client used to fetch remote assets.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Converter) {
		c.httpClient = client
	}
}

// WithAssetFetcher replaces the default asset fetcher.
func WithAssetFetcher(f AssetFetcher) Option {
	return func(c *Converter) {
		c.fetcher = f
	}
}
