package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/alnah/go-pdfmulti/internal/config"
	"github.com/alnah/go-pdfmulti/internal/store"
)

func testSettings() *settings {
	return &settings{
		cfg:    config.DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}
}

func TestRunServe_HealthAndShutdown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, testSettings(), ln) }()

	url := fmt.Sprintf("http://%s/healthz", ln.Addr())
	resp, err := http.Get(url)
	if err != nil {
		cancel()
		t.Fatalf("GET /healthz error = %v", err)
	}
	var body map[string]string
	err = json.NewDecoder(resp.Body).Decode(&body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("GET /healthz = %d %v", resp.StatusCode, body)
	}

	metricsResp, err := http.Get(fmt.Sprintf("http://%s/metrics", ln.Addr()))
	if err != nil {
		t.Fatal(err)
	}
	_ = metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", metricsResp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe() did not return after cancel")
	}
}

func TestRunServe_BadAddr(t *testing.T) {
	t.Parallel()

	st := testSettings()
	st.cfg.Server.Addr = "256.0.0.1:http-nope"
	if err := runServe(context.Background(), st, nil); err == nil {
		t.Error("runServe() on a bad address succeeded")
	}
}

func TestNewContentStore(t *testing.T) {
	t.Parallel()

	t.Run("memory by default", func(t *testing.T) {
		t.Parallel()

		cs, err := newContentStore(context.Background(), testSettings())
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = cs.Close() }()
		if _, ok := cs.(*store.Memory); !ok {
			t.Errorf("store = %T, want *store.Memory", cs)
		}
	})

	t.Run("redis when configured", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		st := testSettings()
		st.cfg.Storage.RedisAddr = mr.Addr()

		cs, err := newContentStore(context.Background(), st)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = cs.Close() }()
		if _, ok := cs.(*store.Redis); !ok {
			t.Errorf("store = %T, want *store.Redis", cs)
		}
	})

	t.Run("unreachable redis", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		st := testSettings()
		st.cfg.Storage.RedisAddr = addr
		if _, err := newContentStore(context.Background(), st); err == nil {
			t.Error("newContentStore() with a stopped redis succeeded")
		}
	})
}
