package pdfmulti

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxAssetSize caps the bytes read for a single embedded asset (32MB).
const MaxAssetSize int64 = 32 << 20

// AssetFetcher loads the bytes of one embedded asset.
// Implementations must return promptly once ctx is done.
type AssetFetcher interface {
	Fetch(ctx context.Context, src, sourceDir string) ([]byte, error)
}

// GateReport describes how the asset set of one conversion settled.
type GateReport struct {
	Total      int // Assets in the tree
	Immediate  int // Already loaded when the gate was entered
	Registered int // Waited on
}

// assetWaiter abstracts the readiness gate for testing.
type assetWaiter interface {
	Wait(ctx context.Context, tree *StagedTree) (GateReport, error)
}

// assetGate blocks until every asset of a staged tree has loaded.
type assetGate struct {
	fetcher AssetFetcher
	timeout time.Duration // 0 = wait indefinitely
}

// Wait settles the tree's asset set. It returns as soon as any asset fails,
// cancelling the loads still in flight, and succeeds only when all have
// loaded. Already loaded assets register nothing; an empty set returns at once.
func (g *assetGate) Wait(ctx context.Context, tree *StagedTree) (GateReport, error) {
	assets := tree.Assets()
	report := GateReport{Total: len(assets)}

	var pending []*Asset
	for _, a := range assets {
		if a.loadErr != nil {
			return report, fmt.Errorf("%q: %w", a.Src, a.loadErr)
		}
		if a.Loaded {
			report.Immediate++
			continue
		}
		pending = append(pending, a)
	}

	if len(pending) == 0 {
		return report, nil
	}
	report.Registered = len(pending)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	eg, gctx := errgroup.WithContext(ctx)
	for _, a := range pending {
		eg.Go(func() error {
			data, err := g.fetcher.Fetch(gctx, a.Src, tree.sourceDir)
			if err == nil {
				err = verifyImage(data)
			}
			if err != nil {
				return fmt.Errorf("%q: %w", a.Src, err)
			}
			a.data = data
			a.Loaded = true
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// Report the caller's cause, not the errgroup cancellation
			return report, fmt.Errorf("waiting for assets: %w", context.Cause(ctx))
		}
		return report, err
	}
	return report, nil
}

// defaultFetcher resolves http(s), protocol-relative, file:// and local paths.
type defaultFetcher struct {
	client  *http.Client
	maxSize int64
}

// newDefaultFetcher returns a fetcher using client (nil = http.DefaultClient).
func newDefaultFetcher(client *http.Client) *defaultFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &defaultFetcher{client: client, maxSize: MaxAssetSize}
}

// Fetch loads src, resolving relative paths against sourceDir (or the
// working directory when sourceDir is empty).
func (f *defaultFetcher) Fetch(ctx context.Context, src, sourceDir string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}

	// Windows drive paths parse as URLs with a one-letter scheme
	if filepath.VolumeName(src) != "" {
		return f.readFile(src)
	}

	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAsset, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.fetchHTTP(ctx, u.String())
	case "file":
		return f.readFile(filepath.FromSlash(u.Path))
	case "":
		path := filepath.FromSlash(u.Path)
		if !filepath.IsAbs(path) {
			base, err := filepath.Abs(sourceDir)
			if err != nil {
				return nil, fmt.Errorf("resolving source directory: %w", err)
			}
			path = filepath.Join(base, path)
		}
		return f.readFile(path)
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedAsset, u.Scheme)
	}
}

func (f *defaultFetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return f.readLimited(resp.Body)
}

func (f *defaultFetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path) // #nosec G304 -- asset paths come from the document
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return f.readLimited(file)
}

func (f *defaultFetcher) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrAssetTooLarge, f.maxSize)
	}
	return data, nil
}
