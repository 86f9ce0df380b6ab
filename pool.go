package pdfmulti

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// ConverterPool manages a pool of Converter instances for parallel processing.
// Each converter has its own browser instance. Converters are created lazily
// on first acquire with the options given to NewConverterPool.
type ConverterPool struct {
	size       int
	opts       []Option
	converters []*Converter
	sem        chan *Converter
	mu         sync.Mutex
	created    int
	closed     bool

	// Empty inputs rejected by Convert before any converter is acquired
	aborted atomic.Int64
}

// NewConverterPool creates a pool with capacity for n Converter instances.
func NewConverterPool(n int, opts ...Option) *ConverterPool {
	if n < 1 {
		n = 1
	}

	return &ConverterPool{
		size:       n,
		opts:       opts,
		converters: make([]*Converter, 0, n),
		sem:        make(chan *Converter, n),
	}
}

// Acquire gets a converter from the pool, creating one if needed.
// Blocks until one is released or ctx is done.
func (p *ConverterPool) Acquire(ctx context.Context) (*Converter, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	// Try to get an existing converter (non-blocking)
	select {
	case conv, ok := <-p.sem:
		if !ok {
			return nil, ErrClosed
		}
		return conv, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		// Create new converter outside the lock
		conv, err := NewConverter(p.opts...)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}

		p.mu.Lock()
		p.converters = append(p.converters, conv)
		p.mu.Unlock()

		return conv, nil
	}
	p.mu.Unlock()

	// All converters created, wait for one to be released
	select {
	case conv, ok := <-p.sem:
		if !ok {
			return nil, ErrClosed
		}
		return conv, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a converter to the pool.
// The lock is held while sending; sem has room for every created converter.
func (p *ConverterPool) Release(conv *Converter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.sem <- conv
}

// Close releases all browser resources.
// Returns an aggregated error if multiple converters fail to close.
func (p *ConverterPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	converters := p.converters
	p.mu.Unlock()

	var errs []error
	for _, conv := range converters {
		if err := conv.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Convert acquires a converter, runs input through it and releases it.
// Empty content returns ErrEmptyContent at once, without waiting for or
// creating a converter.
func (p *ConverterPool) Convert(ctx context.Context, input Input) (*Result, error) {
	if input.HTML == "" {
		p.aborted.Add(1)
		return nil, ErrEmptyContent
	}

	conv, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(conv)
	return conv.Convert(ctx, input)
}

// Size returns the pool capacity.
func (p *ConverterPool) Size() int {
	return p.size
}

// Stats sums the counters of every converter created so far, plus the
// empty inputs the pool aborted itself.
func (p *ConverterPool) Stats() Stats {
	p.mu.Lock()
	converters := p.converters
	p.mu.Unlock()

	aborted := p.aborted.Load()
	total := Stats{Invocations: aborted, Aborted: aborted}
	for _, conv := range converters {
		s := conv.Stats()
		total.Invocations += s.Invocations
		total.Staged += s.Staged
		total.Released += s.Released
		total.Done += s.Done
		total.Failed += s.Failed
		total.Aborted += s.Aborted
	}
	return total
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	return min(max(n, MinPoolSize), MaxPoolSize)
}
