package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	pdfmulti "github.com/alnah/go-pdfmulti"
	"github.com/alnah/go-pdfmulti/internal/metrics"
	"github.com/alnah/go-pdfmulti/internal/server"
	"github.com/alnah/go-pdfmulti/internal/store"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func newServeCmd(env *Environment, common *commonFlags) *cobra.Command {
	var (
		render renderFlags
		serve  serveFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve session previews and PDF downloads over HTTP",
		Long: `Serve an HTTP host: PUT content to /sessions/{id}/content, open
/sessions/{id} for a preview with a "Download PDF" button, or POST HTML to
/convert. Metrics are exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := resolveSettings(cmd.Flags(), common, &render, nil, &serve, env.Stderr)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), st, nil)
		},
	}

	addRenderFlags(cmd.Flags(), &render)
	addServeFlags(cmd.Flags(), &serve)
	return cmd
}

// runServe serves until ctx is done, then shuts down gracefully. A nil ln
// listens on the configured address.
func runServe(ctx context.Context, st *settings, ln net.Listener) error {
	m := metrics.New()

	opts := append(converterOptions(st.cfg, st.logger), pdfmulti.WithStateHook(m.StateHook))
	pool := pdfmulti.NewConverterPool(pdfmulti.ResolvePoolSize(st.cfg.Render.Workers), opts...)
	defer func() { _ = pool.Close() }()

	contentStore, err := newContentStore(ctx, st)
	if err != nil {
		return err
	}
	defer func() { _ = contentStore.Close() }()

	srv := server.New(pool, contentStore,
		server.WithMetrics(m),
		server.WithLogger(st.logger),
		server.WithSingleFlight(st.cfg.Server.SingleFlight),
	)
	defer func() { _ = srv.Close() }()

	if ln == nil {
		ln, err = net.Listen("tcp", st.cfg.Server.Addr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", st.cfg.Server.Addr, err)
		}
	}

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()

	st.logger.Info("serving",
		"addr", ln.Addr().String(),
		"workers", pool.Size(),
		"singleFlight", st.cfg.Server.SingleFlight,
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	st.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// newContentStore returns a Redis store when an address is configured and an
// in-memory store otherwise.
func newContentStore(ctx context.Context, st *settings) (store.ContentStore, error) {
	ttl, _ := st.cfg.ContentTTL()

	if st.cfg.Storage.RedisAddr == "" {
		return store.NewMemory(ttl), nil
	}

	r := store.NewRedis(st.cfg.Storage.RedisAddr, store.WithTTL(ttl))
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	st.logger.Info("using redis content store", "addr", st.cfg.Storage.RedisAddr)
	return r, nil
}
