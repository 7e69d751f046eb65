package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/apsdiag/internal/connector"
	"github.com/crimson-sun/apsdiag/internal/engine"
	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/output"
)

// Mode selects which part of the analysis a run performs.
type Mode string

const (
	ModeAnalyze    Mode = "analyze"    // full report
	ModeAnomalies  Mode = "anomalies"  // sanitize + anomaly detection
	ModeStats      Mode = "stats"      // sanitize + statistics
	ModeTrain      Mode = "train"      // sanitize + classifier evaluation
	ModeImportance Mode = "importance" // train (or reuse a model) + ranking
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMode sets the run mode. Default: ModeAnalyze.
func WithMode(m Mode) Option { return func(p *Pipeline) { p.mode = m } }

// WithModel scores batches with an existing model instead of training.
func WithModel(m *classifier.Model) Option { return func(p *Pipeline) { p.model = m } }

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// Pipeline connects a connector, engine, and output for one batch.
type Pipeline struct {
	connector connector.Connector
	engine    *engine.Engine
	output    output.Output
	mode      Mode
	model     *classifier.Model
	logger    *slog.Logger
}

// New creates a Pipeline from the given components.
func New(conn connector.Connector, eng *engine.Engine, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		connector: conn,
		engine:    eng,
		output:    out,
		mode:      ModeAnalyze,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run fetches one batch, analyzes it according to the mode and writes
// exactly one report. Nothing is written when any stage fails.
func (p *Pipeline) Run(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) (*engine.Analysis, error) {
	raw, err := p.connector.Fetch(ctx, cfg, params)
	if err != nil {
		return nil, fmt.Errorf("pipeline fetch: %w", err)
	}
	p.logger.Info("batch fetched", "source", raw.Source, "rows", raw.Len(), "columns", len(raw.Header), "mode", p.mode)

	a, err := p.analyze(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.mode, err)
	}
	if err := p.output.Write(ctx, *a.Report); err != nil {
		return nil, fmt.Errorf("pipeline output: %w", err)
	}
	return a, nil
}

// Process runs the mode on an already fetched batch without writing it.
func (p *Pipeline) Process(ctx context.Context, raw model.RawBatch) (*engine.Analysis, error) {
	return p.analyze(ctx, raw)
}

func (p *Pipeline) analyze(ctx context.Context, raw model.RawBatch) (*engine.Analysis, error) {
	switch p.mode {
	case ModeAnalyze, "":
		if p.model != nil {
			return p.engine.Score(ctx, raw, p.model)
		}
		return p.engine.Analyze(ctx, raw)
	case ModeAnomalies, ModeStats, ModeTrain, ModeImportance:
	default:
		return nil, fmt.Errorf("unknown mode %q", p.mode)
	}

	b, err := p.engine.Sanitize(ctx, raw)
	if err != nil {
		return nil, err
	}
	a := &engine.Analysis{
		Batch:  b,
		Report: &model.Report{Source: raw.Source, Sanitization: model.Summarize(b)},
	}

	switch p.mode {
	case ModeAnomalies:
		a.Report.Anomalies, err = p.engine.DetectAnomalies(ctx, b)
	case ModeStats:
		a.Report.Statistics, err = p.engine.Statistics(ctx, b)
	case ModeTrain:
		err = p.classify(ctx, a)
	case ModeImportance:
		if p.model == nil {
			if err = p.classify(ctx, a); err != nil {
				return nil, err
			}
		} else {
			a.Model = p.model
		}
		a.Report.Importance, err = p.engine.Rank(ctx, a.Model)
		a.Report.Classification = nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// classify trains on the batch, or evaluates the configured model on it.
func (p *Pipeline) classify(ctx context.Context, a *engine.Analysis) error {
	if p.model != nil {
		res, err := p.model.Evaluate(a.Batch)
		if err != nil {
			return err
		}
		a.Model, a.Report.Classification = p.model, res.Report
		return nil
	}
	res, err := p.engine.Train(ctx, a.Batch)
	if err != nil {
		return err
	}
	a.Model, a.Report.Classification = res.Model, res.Report
	return nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}
