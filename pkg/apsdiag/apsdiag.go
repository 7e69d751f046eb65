package apsdiag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/engine"
	"github.com/crimson-sun/apsdiag/internal/engine/anomaly"
	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
	"github.com/crimson-sun/apsdiag/internal/engine/importance"
	"github.com/crimson-sun/apsdiag/internal/engine/sanitizer"
	"github.com/crimson-sun/apsdiag/internal/engine/stats"
	"github.com/crimson-sun/apsdiag/internal/engine/taxonomy"
	"github.com/crimson-sun/apsdiag/internal/model"
)

// Errors returned by Analyze; match with errors.Is.
var (
	ErrValidation           = model.ErrValidation
	ErrInsufficientFeatures = model.ErrInsufficientFeatures
	ErrSchema               = model.ErrSchema
	ErrModelNotTrained      = model.ErrModelNotTrained
)

// Diagnoser runs the fault diagnosis pipeline. Safe for concurrent use.
type Diagnoser struct {
	engine   *engine.Engine
	taxonomy *taxonomy.Taxonomy
	model    *classifier.Model
}

// New creates a Diagnoser.
func New(opts ...Option) (*Diagnoser, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	tax, err := taxonomy.New(taxonomy.DefaultRoots())
	if err != nil {
		return nil, fmt.Errorf("apsdiag: %w", err)
	}

	d := &Diagnoser{taxonomy: tax}
	if o.modelData != nil {
		d.model = &classifier.Model{}
		if err := d.model.UnmarshalBinary(o.modelData); err != nil {
			return nil, fmt.Errorf("apsdiag: load model: %w", err)
		}
	}

	d.engine = engine.New(
		sanitizer.New(o.sanitizer, logger),
		anomaly.New(o.anomaly, logger),
		classifier.New(o.classifier, logger),
		importance.New(tax, o.topSensors),
		stats.New(logger),
		engine.WithLogger(logger),
	)
	return d, nil
}

// Analyze reads a CSV batch (header line first) and diagnoses it.
// Unlabeled batches get anomalies and statistics only.
func (d *Diagnoser) Analyze(ctx context.Context, r io.Reader) (*Diagnosis, error) {
	raw, err := connector.ReadCSV(r, "apsdiag", 0)
	if err != nil {
		return nil, err
	}
	return d.analyze(ctx, raw)
}

// AnalyzeFile diagnoses the CSV file at path.
func (d *Diagnoser) AnalyzeFile(ctx context.Context, path string) (*Diagnosis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("apsdiag: %w", err)
	}
	defer f.Close()

	raw, err := connector.ReadCSV(f, filepath.Base(path), 0)
	if err != nil {
		return nil, err
	}
	return d.analyze(ctx, raw)
}

// AnalyzeRecords diagnoses already-split records. Missing readings may be
// "na", "nan", "null" or empty.
func (d *Diagnoser) AnalyzeRecords(ctx context.Context, header []string, rows [][]string) (*Diagnosis, error) {
	return d.analyze(ctx, model.RawBatch{Source: "apsdiag", Header: header, Rows: rows})
}

func (d *Diagnoser) analyze(ctx context.Context, raw model.RawBatch) (*Diagnosis, error) {
	var (
		a   *engine.Analysis
		err error
	)
	if d.model != nil {
		a, err = d.engine.Score(ctx, raw, d.model)
	} else {
		a, err = d.engine.Analyze(ctx, raw)
	}
	if err != nil {
		return nil, err
	}
	return diagnosisFrom(a.Report, a.Model, d.sensor), nil
}
