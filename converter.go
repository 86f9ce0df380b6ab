package pdfmulti

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Compile-time interface implementation checks.
var (
	_ contentStager = (*htmlStager)(nil)
	_ assetWaiter   = (*assetGate)(nil)
	_ AssetFetcher  = (*defaultFetcher)(nil)

	_ DocumentConverter = (*Converter)(nil)
	_ DocumentConverter = (*ConverterPool)(nil)
)

// Converter drives the HTML-to-PDF pipeline:
// stage, wait for assets, configure, render, persist, clean up.
// Create with NewConverter(), use Convert() for conversion, and Close() when done.
// A Converter is safe for concurrent use; each invocation owns its staged tree.
type Converter struct {
	cfg        converterConfig
	logger     *slog.Logger
	stateHook  func(State)
	httpClient *http.Client
	fetcher    AssetFetcher
	stager     contentStager
	gate       assetWaiter
	renderer   pdfRenderer
	verifier   pdfVerifier

	invocations atomic.Int64
	staged      atomic.Int64
	released    atomic.Int64
	done        atomic.Int64
	failed      atomic.Int64
	aborted     atomic.Int64
}

// NewConverter creates a Converter with default configuration.
// Use options to customize behavior (e.g., WithTimeout, WithAssetTimeout, WithLogger).
func NewConverter(opts ...Option) (*Converter, error) {
	c := &Converter{
		cfg: converterConfig{timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.cfg.assetTimeout < 0 {
		return nil, fmt.Errorf("%w: asset timeout cannot be negative", ErrInvalidOption)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.fetcher == nil {
		c.fetcher = newDefaultFetcher(c.httpClient)
	}

	// Collaborators may already be injected by tests
	if c.stager == nil {
		c.stager = &htmlStager{tempDir: c.cfg.tempDir}
	}
	if c.gate == nil {
		c.gate = &assetGate{fetcher: c.fetcher, timeout: c.cfg.assetTimeout}
	}
	if c.renderer == nil {
		c.renderer = newRodRenderer(c.cfg.timeout, c.cfg.browserBin, c.logger)
	}
	if c.verifier == nil {
		c.verifier = pdfcpuVerifier{}
	}

	return c, nil
}

// Convert runs the pipeline once for input.
//
// Empty content aborts before anything is allocated and returns
// ErrEmptyContent. Failures are reported as ErrStage, ErrAssetLoad, ErrRender
// or ErrPersist; the staged tree is released exactly once on every path and
// no file reaches the sink unless every step succeeded.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (c *Converter) Convert(ctx context.Context, input Input) (*Result, error) {
	c.invocations.Add(1)

	inv := &invocation{
		conv:  c,
		log:   c.logger.With("invocation", uuid.NewString()),
		start: time.Now(),
	}
	inv.enter(StateIdle)

	if input.HTML == "" {
		inv.enter(StateAborted)
		c.aborted.Add(1)
		inv.log.Debug("nothing to convert")
		return nil, ErrEmptyContent
	}

	result, err := inv.run(ctx, input)
	if err != nil {
		c.failed.Add(1)
		inv.log.Error("conversion failed", "error", err, "state", inv.failedIn)
		return nil, err
	}

	inv.enter(StateDone)
	c.done.Add(1)
	result.Duration = time.Since(inv.start)
	inv.log.Info("conversion done",
		"file", result.Output.FileName,
		"pages", result.Pages,
		"duration", result.Duration,
	)
	return result, nil
}

// Stats returns a snapshot of the pipeline counters.
func (c *Converter) Stats() Stats {
	return Stats{
		Invocations: c.invocations.Load(),
		Staged:      c.staged.Load(),
		Released:    c.released.Load(),
		Done:        c.done.Load(),
		Failed:      c.failed.Load(),
		Aborted:     c.aborted.Load(),
	}
}

// Close releases browser resources.
func (c *Converter) Close() error {
	if c.renderer != nil {
		return c.renderer.Close()
	}
	return nil
}

// invocation carries the per-call state of one Convert.
type invocation struct {
	conv     *Converter
	log      *slog.Logger
	start    time.Time
	state    State
	failedIn State
}

// enter moves the invocation to s and notifies the state hook.
func (inv *invocation) enter(s State) {
	inv.state = s
	inv.log.Debug("state", "state", s.String())
	if inv.conv.stateHook != nil {
		inv.conv.stateHook(s)
	}
}

// fail records the state that failed and moves to StateFailed.
func (inv *invocation) fail() {
	inv.failedIn = inv.state
	inv.enter(StateFailed)
}

// run executes the steps after the empty-content check. The single deferred
// boundary turns panics into ErrRender and releases the tree.
func (inv *invocation) run(ctx context.Context, input Input) (result *Result, err error) {
	c := inv.conv
	var tree *StagedTree

	defer func() {
		if r := recover(); r != nil {
			inv.fail()
			result, err = nil, fmt.Errorf("%w: internal error: %v", ErrRender, r)
		}
		if tree != nil {
			inv.release(tree)
		}
	}()

	inv.enter(StateStaging)
	tree, err = c.stager.Stage(input.HTML, input.SourceDir)
	if err != nil {
		inv.fail()
		if !errors.Is(err, ErrStage) {
			err = fmt.Errorf("%w: %w", ErrStage, err)
		}
		return nil, err
	}
	c.staged.Add(1)

	inv.enter(StateWaitingForAssets)
	report, err := c.gate.Wait(ctx, tree)
	if err != nil {
		inv.fail()
		return nil, fmt.Errorf("%w: %w", ErrAssetLoad, err)
	}
	inv.log.Debug("assets settled",
		"total", report.Total,
		"immediate", report.Immediate,
		"registered", report.Registered,
	)

	inv.enter(StateConfiguring)
	name := DeriveFileName(input.HTML)
	output := outputFor(name)
	cfg := BuildConfig(name)
	inv.log = inv.log.With("file", output.FileName)

	inv.enter(StateRendering)
	pdf, err := c.renderer.Render(ctx, tree, cfg)
	if err != nil {
		inv.fail()
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	pages, err := c.verifier.Verify(pdf)
	if err != nil {
		inv.fail()
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	inv.enter(StatePersisting)
	if input.Sink != nil {
		if err := input.Sink.Save(ctx, output.FileName, pdf); err != nil {
			inv.fail()
			return nil, fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}

	return &Result{
		State:  StateDone,
		Output: output,
		PDF:    pdf,
		Pages:  pages,
		Config: cfg,
		Assets: report,
	}, nil
}

// release enters Cleanup and releases tree once.
func (inv *invocation) release(tree *StagedTree) {
	inv.enter(StateCleanup)
	err := tree.Release()
	if errors.Is(err, ErrTreeReleased) {
		inv.log.Warn("staged tree released twice")
		return
	}
	inv.conv.released.Add(1)
	if err != nil {
		inv.log.Warn("removing scratch directory", "error", err)
	}
}
