// Package sanitizer turns a raw text batch into a clean numeric matrix.
//
// Every column is classified once, before any numeric work, as the label,
// a numeric feature, or unusable. Unusable columns are dropped (logged, not
// fatal), sparse columns are dropped, remaining gaps are median-imputed, and
// rows without a label are removed.
package sanitizer

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/apsdiag/internal/engine/stats"
	"github.com/crimson-sun/apsdiag/internal/model"
)

// Drop reasons recorded on model.DroppedColumn.
const (
	ReasonNonNumeric   = "non_numeric"
	ReasonMissingRatio = "missing_ratio"
)

// Label modes accepted by Config.LabelMode.
const (
	LabelAuto       = "auto"
	LabelBinary     = "binary"
	LabelMulticlass = "multiclass"
)

// Config controls sanitization.
type Config struct {
	LabelColumn     string  // header of the label column, matched case-insensitively
	MaxMissingRatio float64 // columns with a larger share of missing cells are dropped
	LabelMode       string  // "auto", "binary" or "multiclass"
}

// DefaultConfig returns the settings used for APS exports.
func DefaultConfig() Config {
	return Config{
		LabelColumn:     "class",
		MaxMissingRatio: 0.5,
		LabelMode:       LabelAuto,
	}
}

// Sanitizer normalizes raw batches. It holds no per-batch state and is safe
// for concurrent use.
type Sanitizer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Sanitizer. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LabelColumn == "" {
		cfg.LabelColumn = "class"
	}
	if cfg.LabelMode == "" {
		cfg.LabelMode = LabelAuto
	}
	return &Sanitizer{cfg: cfg, logger: logger}
}

type columnKind int

const (
	kindNumeric columnKind = iota
	kindLabel
	kindUnusable
)

// column is the schema pass result for one raw column.
type column struct {
	name    string
	kind    columnKind
	values  []float64 // NaN marks a missing cell; only set for kindNumeric
	missing int
}

// Sanitize produces a CleanedBatch from raw. It fails with model.ErrValidation
// when the batch is empty or malformed and model.ErrInsufficientFeatures when
// fewer than two feature columns survive.
func (s *Sanitizer) Sanitize(raw model.RawBatch) (*model.CleanedBatch, error) {
	if len(raw.Header) == 0 || len(raw.Rows) == 0 {
		return nil, fmt.Errorf("sanitize: %w: batch has no rows", model.ErrValidation)
	}
	if err := checkShape(raw); err != nil {
		return nil, err
	}

	fold := newFolder()
	labelIdx := -1
	wantLabel := fold.token(s.cfg.LabelColumn)
	for j, h := range raw.Header {
		if fold.token(h) == wantLabel {
			labelIdx = j
			break
		}
	}

	cols := s.classify(raw, labelIdx, fold)

	out := &model.CleanedBatch{}
	var kept []*column
	for _, c := range cols {
		switch c.kind {
		case kindLabel:
			continue
		case kindUnusable:
			out.Dropped = append(out.Dropped, model.DroppedColumn{Name: c.name, Reason: ReasonNonNumeric})
			s.logger.Warn("dropping non-numeric column", "column", c.name)
			continue
		}
		ratio := float64(c.missing) / float64(len(raw.Rows))
		if ratio > s.cfg.MaxMissingRatio {
			out.Dropped = append(out.Dropped, model.DroppedColumn{Name: c.name, Reason: ReasonMissingRatio})
			s.logger.Warn("dropping sparse column", "column", c.name, "missing_ratio", ratio)
			continue
		}
		kept = append(kept, c)
	}

	for _, c := range kept {
		if c.missing == 0 {
			continue
		}
		fill, ok := stats.Median(c.values)
		if !ok {
			fill = 0
			s.logger.Warn("column has no present values, imputing 0.0", "column", c.name)
		}
		for i, v := range c.values {
			if math.IsNaN(v) {
				c.values[i] = fill
			}
		}
		if out.Imputed == nil {
			out.Imputed = make(map[string]int)
		}
		out.Imputed[c.name] = c.missing
	}

	keepRow := make([]bool, len(raw.Rows))
	for i := range keepRow {
		keepRow[i] = true
	}
	if labelIdx >= 0 {
		out.LabelName = raw.Header[labelIdx]
		texts := make([]string, len(raw.Rows))
		for i, row := range raw.Rows {
			v := strings.TrimSpace(row[labelIdx])
			if fold.missing(v) {
				keepRow[i] = false
				out.RowsDropped++
				continue
			}
			texts[i] = v
		}
		if out.RowsDropped > 0 {
			s.logger.Info("dropped rows with missing label", "rows", out.RowsDropped)
		}
		labels, names, mode, err := s.encodeLabels(texts, keepRow, fold)
		if err != nil {
			return nil, err
		}
		out.Labels, out.ClassNames, out.LabelMode = labels, names, mode
	}

	if len(kept) < 2 {
		return nil, fmt.Errorf("sanitize: %w: %d usable feature columns, need at least 2",
			model.ErrInsufficientFeatures, len(kept))
	}

	for _, c := range kept {
		out.Columns = append(out.Columns, c.name)
	}
	for i := range raw.Rows {
		if !keepRow[i] {
			continue
		}
		row := make([]float64, len(kept))
		for j, c := range kept {
			row[j] = c.values[i]
		}
		out.Features = append(out.Features, row)
	}
	if len(out.Features) == 0 {
		return nil, fmt.Errorf("sanitize: %w: no rows left after cleaning", model.ErrValidation)
	}
	return out, nil
}

func checkShape(raw model.RawBatch) error {
	seen := make(map[string]struct{}, len(raw.Header))
	for _, h := range raw.Header {
		if _, dup := seen[h]; dup {
			return fmt.Errorf("sanitize: %w: duplicate column %q", model.ErrValidation, h)
		}
		seen[h] = struct{}{}
	}
	for i, row := range raw.Rows {
		if len(row) != len(raw.Header) {
			return fmt.Errorf("sanitize: %w: row %d has %d values, header has %d",
				model.ErrValidation, i, len(row), len(raw.Header))
		}
	}
	return nil
}

// classify is the schema pass. A column is numeric when every present cell
// parses as a float; non-finite parses count as missing.
func (s *Sanitizer) classify(raw model.RawBatch, labelIdx int, fold *folder) []*column {
	cols := make([]*column, len(raw.Header))
	for j, name := range raw.Header {
		c := &column{name: name}
		cols[j] = c
		if j == labelIdx {
			c.kind = kindLabel
			continue
		}
		c.values = make([]float64, len(raw.Rows))
		for i, row := range raw.Rows {
			cell := strings.TrimSpace(row[j])
			if fold.missing(cell) {
				c.values[i] = math.NaN()
				c.missing++
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				c.kind = kindUnusable
				c.values = nil
				break
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				c.values[i] = math.NaN()
				c.missing++
				continue
			}
			c.values[i] = v
		}
	}
	return cols
}

// folder normalizes tokens for sentinel and label matching. A cases.Caser
// is stateful, so each Sanitize call builds its own.
type folder struct {
	caser cases.Caser
}

func newFolder() *folder {
	return &folder{caser: cases.Fold()}
}

func (f *folder) token(s string) string {
	return f.caser.String(norm.NFKC.String(strings.TrimSpace(s)))
}

var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
}

func (f *folder) missing(s string) bool {
	_, ok := missingTokens[f.token(s)]
	return ok
}
