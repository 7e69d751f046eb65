package output

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// Output defines the interface for report destinations.
type Output interface {
	Write(ctx context.Context, report model.Report) error
	Close() error
}

// Verbosity controls how much per-sample detail a report carries.
type Verbosity int

const (
	Minimal  Verbosity = iota // aggregate counts and rankings only
	Standard                  // adds per-sample flags, severities and predictions
	Full                      // adds the z-score matrix
)

// ParseVerbosity converts a string to a Verbosity. Unrecognized values
// return Standard.
func ParseVerbosity(s string) Verbosity {
	switch s {
	case "minimal":
		return Minimal
	case "full":
		return Full
	default:
		return Standard
	}
}

func (v Verbosity) String() string {
	switch v {
	case Minimal:
		return "minimal"
	case Full:
		return "full"
	default:
		return "standard"
	}
}

// Encode formats and sanitizes the report, then marshals it to JSON.
func Encode(report model.Report, v Verbosity, pretty bool) ([]byte, error) {
	tree := Sanitize(Format(report, v))
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(tree, "", "  ")
	} else {
		data, err = json.Marshal(tree)
	}
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}
