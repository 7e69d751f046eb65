package stdout

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/output"
)

// Output writes JSON-encoded reports to stdout, one per line unless pretty.
type Output struct {
	w         io.Writer
	verbosity output.Verbosity
	pretty    bool
}

// New creates a new stdout Output with verbosity-aware field omission
// and optional pretty-printed JSON.
func New(verbosity output.Verbosity, pretty bool) *Output {
	return NewWriter(os.Stdout, verbosity, pretty)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, verbosity output.Verbosity, pretty bool) *Output {
	return &Output{w: w, verbosity: verbosity, pretty: pretty}
}

func (o *Output) Write(_ context.Context, report model.Report) error {
	data, err := output.Encode(report, o.verbosity, o.pretty)
	if err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	if _, err := o.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
