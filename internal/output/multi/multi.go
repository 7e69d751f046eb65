package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/output"
)

// Multi fans a report out to several outputs in order. A failing output
// does not stop delivery to the rest; all failures are joined.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi over the non-nil outputs given.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len reports how many outputs receive each report.
func (m *Multi) Len() int { return len(m.outputs) }

func (m *Multi) Write(ctx context.Context, report model.Report) error {
	return m.each(func(o output.Output) error { return o.Write(ctx, report) })
}

// Close closes every wrapped output, even after a failure.
func (m *Multi) Close() error {
	return m.each(output.Output.Close)
}

func (m *Multi) each(fn func(output.Output) error) error {
	var errs []error
	for _, o := range m.outputs {
		if err := fn(o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
