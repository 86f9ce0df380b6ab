// Package server exposes the conversion pipeline over HTTP: per-session
// content with a preview page and a "Download PDF" action, plus a stateless
// convert endpoint.
package server

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	pdfmulti "github.com/alnah/go-pdfmulti"
	"github.com/alnah/go-pdfmulti/internal/metrics"
	"github.com/alnah/go-pdfmulti/internal/store"
)

//go:embed templates/*
var templates embed.FS

var previewTmpl = template.Must(template.ParseFS(templates, "templates/preview.html"))

const (
	// DefaultMaxBodySize limits uploaded content (10MB).
	DefaultMaxBodySize = 10 << 20

	// DefaultConvertTimeout bounds a shared conversion on POST /convert.
	DefaultConvertTimeout = 2 * time.Minute
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Server serves sessions and conversions. Create with New and mount Handler.
type Server struct {
	conv           pdfmulti.DocumentConverter
	store          store.ContentStore
	metrics        *metrics.Metrics
	logger         *slog.Logger
	singleFlight   bool
	maxBodySize    int64
	convertTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*pdfmulti.Session

	convertGroup singleflight.Group
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records conversions and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSingleFlight rejects a download with 409 while the same session is
// already converting.
func WithSingleFlight(enabled bool) Option {
	return func(s *Server) {
		s.singleFlight = enabled
	}
}

// WithMaxBodySize limits request bodies to n bytes.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// WithConvertTimeout bounds conversions on POST /convert.
func WithConvertTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.convertTimeout = d
		}
	}
}

// New creates a server converting with conv and keeping content in st.
func New(conv pdfmulti.DocumentConverter, st store.ContentStore, opts ...Option) *Server {
	s := &Server{
		conv:           conv,
		store:          st,
		logger:         slog.New(slog.DiscardHandler),
		maxBodySize:    DefaultMaxBodySize,
		convertTimeout: DefaultConvertTimeout,
		sessions:       make(map[string]*pdfmulti.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Post("/convert", s.handleConvert)

	r.Post("/sessions", s.handleCreateSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(validSessionID)
		r.Get("/", s.handlePreview)
		r.Get("/content", s.handleGetContent)
		r.Put("/content", s.handlePutContent)
		r.Delete("/content", s.handleDeleteContent)
		r.Post("/download", s.handleDownload)
	})

	return r
}

// session returns the live session for id, creating it on first use.
func (s *Server) session(id string) *pdfmulti.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		var opts []pdfmulti.SessionOption
		if s.singleFlight {
			opts = append(opts, pdfmulti.WithSingleFlight())
		}
		sess = pdfmulti.NewSession(s.conv, nil, opts...)
		s.sessions[id] = sess
	}
	return sess
}

// dropSession closes and forgets the live session for id.
func (s *Server) dropSession(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		_ = sess.Close()
	}
}

// Close closes every live session.
func (s *Server) Close() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*pdfmulti.Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.Close()
	}
	return nil
}

func (s *Server) observe(start time.Time, result *pdfmulti.Result, err error) {
	if s.metrics != nil {
		s.metrics.ObserveConversion(time.Since(start), result, err)
	}
}

// convertContext detaches ctx from the caller so a departing client does
// not fail the callers sharing its conversion.
func (s *Server) convertContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.convertTimeout)
}

func validSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionIDPattern.MatchString(chi.URLParam(r, "id")) {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
