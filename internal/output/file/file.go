// Package file appends reports to a local NDJSON file.
package file

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/output"
)

const defaultGenerations = 9

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize rotates the file before a report would push it past n bytes.
// 0 (default) disables rotation.
func WithMaxSize(n int64) Option {
	return func(o *Output) { o.maxSize = n }
}

// WithGenerations sets how many rotated files ({path}.1 .. {path}.n) are
// kept. Default: 9.
func WithGenerations(n int) Option {
	return func(o *Output) {
		if n > 0 {
			o.generations = n
		}
	}
}

// WithSync fsyncs the file after every report.
func WithSync() Option {
	return func(o *Output) { o.sync = true }
}

// Output appends one JSON report per line. Each report is handed to the OS
// in a single write, so readers never see a partial line from a finished
// Write.
type Output struct {
	mu          sync.Mutex
	f           *os.File
	path        string
	verbosity   output.Verbosity
	maxSize     int64
	generations int
	sync        bool
	size        int64
}

// New opens (or creates) path for appending.
func New(path string, verbosity output.Verbosity, opts ...Option) (*Output, error) {
	o := &Output{path: path, verbosity: verbosity, generations: defaultGenerations}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.open(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Output) Write(_ context.Context, report model.Report) error {
	line, err := output.Encode(report, o.verbosity, false)
	if err != nil {
		return fmt.Errorf("file output: encode %s: %w", report.Source, err)
	}
	line = append(line, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.maxSize > 0 && o.size > 0 && o.size+int64(len(line)) > o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate %s: %w", o.path, err)
		}
	}
	n, err := o.f.Write(line)
	o.size += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write %s: %w", o.path, err)
	}
	if o.sync {
		if err := o.f.Sync(); err != nil {
			return fmt.Errorf("file output: sync %s: %w", o.path, err)
		}
	}
	return nil
}

func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.f.Close()
}

func (o *Output) open() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", o.path, err)
	}
	o.f, o.size = f, info.Size()
	return nil
}

// rotate shifts {path}.k to {path}.k+1, dropping the oldest generation,
// moves the current file to {path}.1 and reopens path.
func (o *Output) rotate() error {
	if err := o.f.Close(); err != nil {
		return err
	}
	os.Remove(generation(o.path, o.generations))
	for k := o.generations - 1; k >= 1; k-- {
		os.Rename(generation(o.path, k), generation(o.path, k+1)) // gaps are fine
	}
	if err := os.Rename(o.path, generation(o.path, 1)); err != nil {
		return err
	}
	return o.open()
}

func generation(path string, k int) string { return fmt.Sprintf("%s.%d", path, k) }
