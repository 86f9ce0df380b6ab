package pdfmulti

// Notes:
// - assetGate is tested with mockFetcher for aggregation semantics and with
//   defaultFetcher against httptest servers and temp files for resolution
// - Fail-fast is checked by pairing a hanging asset with a failing one

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// TestAssetGate_Wait - Aggregation
// ---------------------------------------------------------------------------

func TestAssetGate_EmptySet(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{}
	gate := &assetGate{fetcher: fetcher}
	tree := stageForTest(t, "<p>no images</p>")

	report, err := gate.Wait(context.Background(), tree)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if report != (GateReport{}) {
		t.Errorf("report = %+v, want zero", report)
	}
	if len(fetcher.Calls()) != 0 {
		t.Error("fetcher called for an empty asset set")
	}
}

func TestAssetGate_AllLoaded(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{data: map[string][]byte{
		"a.png": pngBytes(t, 1, 1),
		"b.png": pngBytes(t, 2, 2),
	}}
	gate := &assetGate{fetcher: fetcher}
	tree := stageForTest(t, `<img src="a.png"><img src="b.png"><img src="`+pngDataURI(t)+`">`)

	report, err := gate.Wait(context.Background(), tree)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	want := GateReport{Total: 3, Immediate: 1, Registered: 2}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
	for _, a := range tree.Assets() {
		if !a.Loaded {
			t.Errorf("asset %q not loaded", a.Src)
		}
	}
}

func TestAssetGate_StagingFailureShortCircuits(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{data: map[string][]byte{"a.png": pngBytes(t, 1, 1)}}
	gate := &assetGate{fetcher: fetcher}
	tree := stageForTest(t, `<img src="a.png"><img src="data:image/png;base64,AAAA">`)

	_, err := gate.Wait(context.Background(), tree)
	if !errors.Is(err, ErrNotRaster) {
		t.Fatalf("Wait() error = %v, want ErrNotRaster", err)
	}
	if len(fetcher.Calls()) != 0 {
		t.Error("fetcher called although an inline asset had already failed")
	}
}

func TestAssetGate_NotAnImage(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{data: map[string][]byte{"page.html": []byte("<html>404</html>")}}
	gate := &assetGate{fetcher: fetcher}
	tree := stageForTest(t, `<img src="page.html">`)

	_, err := gate.Wait(context.Background(), tree)
	if !errors.Is(err, ErrNotRaster) {
		t.Errorf("Wait() error = %v, want ErrNotRaster", err)
	}
	if !strings.Contains(err.Error(), `"page.html"`) {
		t.Errorf("error %q does not name the asset", err)
	}
}

func TestAssetGate_FailFast(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{
		data: map[string][]byte{"ok.png": pngBytes(t, 1, 1)},
		hang: map[string]bool{"slow.png": true},
	}
	gate := &assetGate{fetcher: fetcher}
	tree := stageForTest(t, `<img src="slow.png"><img src="ok.png"><img src="gone.png">`)

	start := time.Now()
	_, err := gate.Wait(context.Background(), tree)
	if err == nil {
		t.Fatal("Wait() succeeded with a failing asset")
	}
	if !strings.Contains(err.Error(), "gone.png") {
		t.Errorf("error %q does not name the failing asset", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Wait() took %v, want prompt failure", elapsed)
	}
}

func TestAssetGate_Timeout(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{hang: map[string]bool{"slow.png": true}}
	gate := &assetGate{fetcher: fetcher, timeout: 20 * time.Millisecond}
	tree := stageForTest(t, `<img src="slow.png">`)

	_, err := gate.Wait(context.Background(), tree)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestAssetGate_CallerCancel(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{hang: map[string]bool{"slow.png": true}}
	gate := &assetGate{fetcher: fetcher}
	tree := stageForTest(t, `<img src="slow.png">`)

	ctx, cancel := context.WithCancelCause(context.Background())
	cause := errors.New("user closed the tab")
	time.AfterFunc(10*time.Millisecond, func() { cancel(cause) })

	_, err := gate.Wait(ctx, tree)
	if !errors.Is(err, cause) {
		t.Errorf("Wait() error = %v, want cancellation cause", err)
	}
}

// ---------------------------------------------------------------------------
// TestDefaultFetcher - Source Resolution
// ---------------------------------------------------------------------------

func TestDefaultFetcher_HTTP(t *testing.T) {
	t.Parallel()

	img := pngBytes(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(img)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newDefaultFetcher(srv.Client())

	data, err := f.Fetch(context.Background(), srv.URL+"/ok.png", "")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(data) != len(img) {
		t.Errorf("len(data) = %d, want %d", len(data), len(img))
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.png", "")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Fetch(missing) error = %v, want 404 status", err)
	}
}

func TestDefaultFetcher_SizeLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	f := newDefaultFetcher(srv.Client())
	f.maxSize = 32

	_, err := f.Fetch(context.Background(), srv.URL+"/big.png", "")
	if !errors.Is(err, ErrAssetTooLarge) {
		t.Errorf("Fetch() error = %v, want ErrAssetTooLarge", err)
	}
}

func TestDefaultFetcher_LocalPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	img := pngBytes(t, 1, 1)
	if err := os.MkdirAll(filepath.Join(dir, "img"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "img", "logo.png")
	if err := os.WriteFile(path, img, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		src       string
		sourceDir string
	}{
		{"relative", "img/logo.png", dir},
		{"dot relative", "./img/logo.png", dir},
		{"absolute", path, ""},
		{"file URL", "file://" + filepath.ToSlash(path), ""},
	}

	f := newDefaultFetcher(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := f.Fetch(context.Background(), tt.src, tt.sourceDir)
			if err != nil {
				t.Fatalf("Fetch(%q) error = %v", tt.src, err)
			}
			if len(data) != len(img) {
				t.Errorf("len(data) = %d, want %d", len(data), len(img))
			}
		})
	}
}

func TestDefaultFetcher_Errors(t *testing.T) {
	t.Parallel()

	f := newDefaultFetcher(nil)

	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"unsupported scheme", "ftp://example.com/a.png", ErrUnsupportedAsset},
		{"javascript", "javascript:alert(1)", ErrUnsupportedAsset},
		{"missing file", "missing.png", os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := f.Fetch(context.Background(), tt.src, t.TempDir())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fetch(%q) error = %v, want %v", tt.src, err, tt.wantErr)
			}
		})
	}
}

func TestDefaultFetcher_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDefaultFetcher(nil).Fetch(ctx, "https://example.com/a.png", "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}
