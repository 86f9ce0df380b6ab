package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	pdfmulti "github.com/alnah/go-pdfmulti"
	"github.com/alnah/go-pdfmulti/internal/markdown"
	"github.com/alnah/go-pdfmulti/internal/sink"
)

// stdinArg reads content from standard input.
const stdinArg = "-"

// maxInputSize caps content read from stdin (50MB).
const maxInputSize = 50 << 20

// Sentinel errors for convert operations.
var (
	ErrNoInput          = errors.New("no input specified")
	ErrReadInput        = errors.New("failed to read input")
	ErrUnsupportedInput = errors.New("unsupported input type")
)

func newConvertCmd(env *Environment, common *commonFlags) *cobra.Command {
	var (
		render renderFlags
		output outputFlags
	)

	cmd := &cobra.Command{
		Use:   "convert [flags] <file.html|file.md|->...",
		Short: "Convert HTML or Markdown files to PDF",
		Long: `Convert each input to a PDF named after its <title> (Markdown files use
their file name). Use - to read HTML from standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: give at least one file or -", ErrNoInput)
			}
			if n := countStdin(args); n > 1 {
				return fmt.Errorf("%w: - given %d times", errUsage, n)
			}

			st, err := resolveSettings(cmd.Flags(), common, &render, &output, nil, env.Stderr)
			if err != nil {
				return err
			}
			return runConvert(cmd.Context(), env, st, common, args, output.noOverwrite)
		},
	}

	addRenderFlags(cmd.Flags(), &render)
	addOutputFlags(cmd.Flags(), &output)
	return cmd
}

func countStdin(args []string) int {
	n := 0
	for _, a := range args {
		if a == stdinArg {
			n++
		}
	}
	return n
}

func runConvert(ctx context.Context, env *Environment, st *settings, common *commonFlags, args []string, noOverwrite bool) error {
	dest, err := newDestination(ctx, st, noOverwrite)
	if err != nil {
		return err
	}
	defer func() { _ = dest.Close() }()

	md, err := markdown.New()
	if err != nil {
		return err
	}

	poolSize := min(pdfmulti.ResolvePoolSize(st.cfg.Render.Workers), len(args))
	st.logger.Debug("starting conversion", "inputs", len(args), "workers", poolSize)

	pool := pdfmulti.NewConverterPool(poolSize, converterOptions(st.cfg, st.logger)...)
	defer func() { _ = pool.Close() }()

	batch := &batchConverter{
		conv:  pool,
		limit: pool.Size(),
		md:    md,
		dest:  dest,
		stdin: env.Stdin,
	}
	results := batch.run(ctx, args)

	if failed := printResults(results, common.quiet, common.verbose, env); failed != nil {
		if h := hintFor(failed, dest.remote()); h != "" {
			fmt.Fprintln(env.Stderr, strings.TrimPrefix(h, "\n"))
		}
		return &exitError{code: exitCodeFor(failed)}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Destinations
// ---------------------------------------------------------------------------

// destination decides where each input's PDF goes.
type destination interface {
	sinkFor(sourceDir string) pdfmulti.Sink
	location(sourceDir, name string) string
	remote() bool
	Close() error
}

// fileDestination writes into a fixed directory, or next to each source
// when dir is empty.
type fileDestination struct {
	dir string
}

func (d fileDestination) sink(sourceDir string) *sink.FileSink {
	if d.dir != "" {
		return sink.NewFileSink(d.dir)
	}
	return sink.NewFileSink(sourceDir)
}

func (d fileDestination) sinkFor(sourceDir string) pdfmulti.Sink { return d.sink(sourceDir) }
func (d fileDestination) location(sourceDir, name string) string {
	return d.sink(sourceDir).Path(name)
}
func (d fileDestination) remote() bool { return false }
func (d fileDestination) Close() error { return nil }

// gcsDestination uploads every PDF to one bucket.
type gcsDestination struct {
	sink *sink.GCSSink
}

func (d gcsDestination) sinkFor(string) pdfmulti.Sink { return d.sink }
func (d gcsDestination) location(_, name string) string { return d.sink.URI(name) }
func (d gcsDestination) remote() bool { return true }
func (d gcsDestination) Close() error { return d.sink.Close() }

func newDestination(ctx context.Context, st *settings, noOverwrite bool) (destination, error) {
	bucket := st.cfg.Storage.GCSBucket
	if bucket == "" {
		return fileDestination{dir: st.cfg.Output.Dir}, nil
	}

	opts := []sink.GCSOption{sink.WithPrefix(st.cfg.Storage.GCSPrefix)}
	if noOverwrite {
		opts = append(opts, sink.WithNoOverwrite())
	}
	s, err := sink.NewGCSSink(ctx, bucket, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pdfmulti.ErrPersist, err)
	}
	return gcsDestination{sink: s}, nil
}

// ---------------------------------------------------------------------------
// Batch
// ---------------------------------------------------------------------------

// ConversionResult holds the outcome of a single input.
type ConversionResult struct {
	InputPath  string
	OutputPath string
	Pages      int
	Skipped    bool // empty content, nothing written
	Err        error
	Duration   time.Duration
}

// batchConverter converts inputs concurrently, at most limit at a time.
type batchConverter struct {
	conv  pdfmulti.DocumentConverter
	limit int
	md    *markdown.Converter
	dest  destination
	stdin io.Reader
}

// run converts every path and returns the results in input order.
func (b *batchConverter) run(ctx context.Context, paths []string) []ConversionResult {
	results := make([]ConversionResult, len(paths))

	var g errgroup.Group
	g.SetLimit(max(b.limit, 1))
	for i, path := range paths {
		g.Go(func() error {
			results[i] = b.convertOne(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (b *batchConverter) convertOne(ctx context.Context, path string) (result ConversionResult) {
	start := time.Now()
	result.InputPath = path
	defer func() { result.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	html, sourceDir, err := loadInput(ctx, b.md, path, b.stdin)
	if err != nil {
		result.Err = err
		return result
	}

	out, err := b.conv.Convert(ctx, pdfmulti.Input{
		HTML:      html,
		SourceDir: sourceDir,
		Sink:      b.dest.sinkFor(sourceDir),
	})
	switch {
	case errors.Is(err, pdfmulti.ErrEmptyContent):
		result.Skipped = true
	case err != nil:
		result.Err = err
	default:
		result.OutputPath = b.dest.location(sourceDir, out.Output.FileName)
		result.Pages = out.Pages
	}
	return result
}

// loadInput reads one input as HTML content and returns the directory its
// relative image paths resolve against.
func loadInput(ctx context.Context, md *markdown.Converter, path string, stdin io.Reader) (html, sourceDir string, err error) {
	if path == stdinArg {
		data, err := io.ReadAll(io.LimitReader(stdin, maxInputSize+1))
		if err != nil {
			return "", "", fmt.Errorf("%w: stdin: %w", ErrReadInput, err)
		}
		if len(data) > maxInputSize {
			return "", "", fmt.Errorf("%w: stdin exceeds %d bytes", ErrReadInput, maxInputSize)
		}
		return string(data), ".", nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	isMarkdown := markdown.IsMarkdown(path)
	if !isMarkdown && !slices.Contains([]string{".html", ".htm"}, ext) {
		return "", "", fmt.Errorf("%w: %s (want .html, .htm, .md or .markdown)", ErrUnsupportedInput, path)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- user-provided input path
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrReadInput, err)
	}

	sourceDir = filepath.Dir(path)
	if !isMarkdown {
		return string(data), sourceDir, nil
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	html, err = md.ToHTML(ctx, string(data), stem)
	if err != nil {
		return "", "", err
	}
	return html, sourceDir, nil
}

// printResults reports each result and returns the first failure, or nil.
func printResults(results []ConversionResult, quiet, verbose bool, env *Environment) error {
	var firstErr error
	var succeeded, skipped, failed int

	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			fmt.Fprintf(env.Stderr, "FAILED %s: %v\n", r.InputPath, r.Err)
			continue
		case r.Skipped:
			skipped++
			if !quiet {
				fmt.Fprintf(env.Stderr, "Skipped %s: empty content\n", r.InputPath)
			}
			continue
		}

		succeeded++
		if quiet {
			continue
		}
		if verbose {
			fmt.Fprintf(env.Stdout, "%s -> %s (%d pages, %v)\n",
				r.InputPath, r.OutputPath, r.Pages, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(env.Stdout, "Created %s\n", r.OutputPath)
		}
	}

	if !quiet && len(results) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d skipped, %d failed\n", succeeded, skipped, failed)
	}
	return firstErr
}
