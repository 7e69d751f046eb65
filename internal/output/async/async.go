// Package async wraps an output so report delivery happens off the caller's
// goroutine. The server uses it to hand finished reports to slow sinks
// (webhooks) without holding up the HTTP response.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/output"
)

const (
	defaultBufferSize   = 64
	defaultDrainTimeout = 30 * time.Second
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("async output closed")

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 64.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately, dropping the report, when
// the buffer is full.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithLogger sets the logger used for drops and default error reporting.
func WithLogger(l *slog.Logger) Option {
	return func(a *Async) { a.logger = l }
}

// Async queues reports on a buffered channel drained by one goroutine.
// Errors from the inner output go to errFunc, never to the caller.
type Async struct {
	inner      output.Output
	ch         chan model.Report
	done       chan struct{}
	errFunc    func(error)
	logger     *slog.Logger
	bufSize    int
	dropOnFull bool

	mu     sync.RWMutex
	closed bool
}

// New wraps inner and starts the drain goroutine.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.errFunc == nil {
		a.errFunc = func(err error) { a.logger.Warn("async output write error", "error", err) }
	}
	a.ch = make(chan model.Report, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write queues the report. It blocks while the buffer is full unless
// WithDropOnFull was given, and gives up when ctx is done.
func (a *Async) Write(ctx context.Context, report model.Report) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	if a.dropOnFull {
		select {
		case a.ch <- report:
		default:
			a.logger.Warn("async output buffer full, dropping report", "source", report.Source)
		}
		return nil
	}
	select {
	case a.ch <- report:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting reports, waits for the queue to drain (bounded by
// a timeout) and closes the inner output. Safe to call more than once.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-time.After(defaultDrainTimeout):
		a.logger.Warn("async output drain timed out")
	}
	return a.inner.Close()
}

func (a *Async) drain() {
	defer close(a.done)
	for report := range a.ch {
		if err := a.inner.Write(context.Background(), report); err != nil {
			a.errFunc(err)
		}
	}
}
