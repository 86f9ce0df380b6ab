package pdfmulti

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Sink receives a completed PDF. It is only called once rendering and
// verification have succeeded, so it never sees partial output.
type Sink interface {
	Save(ctx context.Context, name string, pdf []byte) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, name string, pdf []byte) error

// Save calls f(ctx, name, pdf).
func (f SinkFunc) Save(ctx context.Context, name string, pdf []byte) error {
	return f(ctx, name, pdf)
}

// DocumentConverter runs one conversion. It is implemented by *Converter and
// by *ConverterPool.
type DocumentConverter interface {
	Convert(ctx context.Context, input Input) (*Result, error)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSingleFlight makes Trigger return ErrBusy while a previous conversion
// of the same session is still in flight. Without it, overlapping triggers
// each run their own independent conversion.
func WithSingleFlight() SessionOption {
	return func(s *Session) {
		s.singleFlight = true
	}
}

// WithSourceDir resolves relative asset paths against dir.
func WithSourceDir(dir string) SessionOption {
	return func(s *Session) {
		s.sourceDir = dir
	}
}

// Session holds the current content of one document surface and converts
// it on demand. The content is replaced wholesale by Update; Trigger always
// converts the value current at call time.
type Session struct {
	conv         DocumentConverter
	sink         Sink
	sourceDir    string
	singleFlight bool

	mu       sync.RWMutex
	content  string
	closed   bool
	inFlight atomic.Bool
}

// NewSession creates a session converting with conv and saving to sink.
// A nil sink keeps results in memory only.
func NewSession(conv DocumentConverter, sink Sink, opts ...SessionOption) *Session {
	s := &Session{conv: conv, sink: sink}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update replaces the session content. An empty string clears it.
func (s *Session) Update(content string) {
	s.mu.Lock()
	s.content = content
	s.mu.Unlock()
}

// Content returns the current content.
func (s *Session) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// Trigger converts the current content. With no content it does nothing and
// returns (nil, nil). Failures are returned, never panicked.
func (s *Session) Trigger(ctx context.Context) (*Result, error) {
	s.mu.RLock()
	content, closed := s.content, s.closed
	s.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}

	if s.singleFlight {
		if !s.inFlight.CompareAndSwap(false, true) {
			return nil, ErrBusy
		}
		defer s.inFlight.Store(false)
	}

	result, err := s.conv.Convert(ctx, Input{
		HTML:      content,
		SourceDir: s.sourceDir,
		Sink:      s.sink,
	})
	if errors.Is(err, ErrEmptyContent) {
		return nil, nil
	}
	return result, err
}

// InFlight reports whether a single-flight session is converting.
func (s *Session) InFlight() bool {
	return s.inFlight.Load()
}

// Close detaches the trigger. Later calls to Trigger return ErrClosed.
// Conversions already running finish normally.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
