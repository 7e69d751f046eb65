// Package engine runs the diagnosis pipeline: sanitize, detect anomalies,
// summarize, train, rank root causes and cross-reference the results.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/crimson-sun/apsdiag/internal/engine/anomaly"
	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
	"github.com/crimson-sun/apsdiag/internal/engine/importance"
	"github.com/crimson-sun/apsdiag/internal/engine/sanitizer"
	"github.com/crimson-sun/apsdiag/internal/engine/stats"
	"github.com/crimson-sun/apsdiag/internal/metrics"
	"github.com/crimson-sun/apsdiag/internal/model"
)

var tracer = otel.Tracer("github.com/crimson-sun/apsdiag/internal/engine")

// Stage names used for spans and duration metrics.
const (
	StageSanitize   = "sanitize"
	StageAnomalies  = "anomalies"
	StageStatistics = "statistics"
	StageTrain      = "train"
	StageImportance = "importance"
)

// Engine orchestrates the analysis components.
type Engine struct {
	sanitizer  *sanitizer.Sanitizer
	detector   *anomaly.Detector
	classifier *classifier.Classifier
	ranker     *importance.Ranker
	stats      *stats.Calculator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics records stage durations and batch outcomes on m.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New creates an Engine with the provided components.
func New(san *sanitizer.Sanitizer, det *anomaly.Detector, cls *classifier.Classifier, rnk *importance.Ranker, st *stats.Calculator, opts ...Option) *Engine {
	e := &Engine{
		sanitizer:  san,
		detector:   det,
		classifier: cls,
		ranker:     rnk,
		stats:      st,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Analysis is the outcome of one pipeline run.
type Analysis struct {
	Report *model.Report
	Batch  *model.CleanedBatch
	Model  *classifier.Model // nil when the batch had no labels
}

// Analyze runs the full pipeline on raw. Unlabeled batches skip
// classification without error.
func (e *Engine) Analyze(ctx context.Context, raw model.RawBatch) (a *Analysis, err error) {
	ctx, span := tracer.Start(ctx, "engine.Analyze", trace.WithAttributes(
		attribute.String("source", raw.Source),
		attribute.Int("rows", len(raw.Rows)),
	))
	defer span.End()
	defer func() { e.finish(span, err) }()

	a, err = e.describe(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !a.Batch.HasLabels() {
		e.logger.Info("batch has no label column, skipping classification", "source", raw.Source)
		return a, nil
	}

	res, err := e.Train(ctx, a.Batch)
	if err != nil {
		return nil, err
	}
	a.Model = res.Model
	a.Report.Classification = res.Report
	if a.Report.Importance, err = e.Rank(ctx, res.Model); err != nil {
		return nil, err
	}
	a.Report.CrossReference = CrossReference(res, a.Report.Anomalies.Flags)
	return a, nil
}

// Score runs the pipeline with an already trained model instead of training.
// Every row is scored; metrics are reported when raw carries labels.
func (e *Engine) Score(ctx context.Context, raw model.RawBatch, m *classifier.Model) (a *Analysis, err error) {
	ctx, span := tracer.Start(ctx, "engine.Score", trace.WithAttributes(
		attribute.String("source", raw.Source),
		attribute.Int("rows", len(raw.Rows)),
	))
	defer span.End()
	defer func() { e.finish(span, err) }()

	if m == nil {
		return nil, fmt.Errorf("score: %w", model.ErrModelNotTrained)
	}
	a, err = e.describe(ctx, raw)
	if err != nil {
		return nil, err
	}
	a.Model = m

	var res *classifier.Result
	err = e.stage(ctx, StageTrain, func(context.Context) error {
		var err error
		res, err = m.Evaluate(a.Batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.Report.Classification = res.Report
	if a.Report.Importance, err = e.Rank(ctx, m); err != nil {
		return nil, err
	}
	a.Report.CrossReference = CrossReference(res, a.Report.Anomalies.Flags)
	return a, nil
}

// describe runs the stages that need no model.
func (e *Engine) describe(ctx context.Context, raw model.RawBatch) (*Analysis, error) {
	b, err := e.Sanitize(ctx, raw)
	if err != nil {
		return nil, err
	}
	rep := &model.Report{Source: raw.Source, Sanitization: model.Summarize(b)}
	if rep.Anomalies, err = e.DetectAnomalies(ctx, b); err != nil {
		return nil, err
	}
	if rep.Statistics, err = e.Statistics(ctx, b); err != nil {
		return nil, err
	}
	return &Analysis{Report: rep, Batch: b}, nil
}

// Sanitize runs the sanitizer stage.
func (e *Engine) Sanitize(ctx context.Context, raw model.RawBatch) (*model.CleanedBatch, error) {
	var b *model.CleanedBatch
	err := e.stage(ctx, StageSanitize, func(context.Context) error {
		var err error
		b, err = e.sanitizer.Sanitize(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.metrics.Samples(b.Rows())
	return b, nil
}

// DetectAnomalies runs the anomaly stage.
func (e *Engine) DetectAnomalies(ctx context.Context, b *model.CleanedBatch) (*model.AnomalyReport, error) {
	var rep *model.AnomalyReport
	err := e.stage(ctx, StageAnomalies, func(context.Context) error {
		var err error
		rep, err = e.detector.Detect(b)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.metrics.Anomalies(rep.MinorAnomalies, rep.MajorAnomalies, rep.CriticalAnomalies, rep.AnomalyRate)
	return rep, nil
}

// Statistics runs the descriptive statistics stage.
func (e *Engine) Statistics(ctx context.Context, b *model.CleanedBatch) (*model.Statistics, error) {
	var st *model.Statistics
	err := e.stage(ctx, StageStatistics, func(context.Context) error {
		var err error
		st, err = e.stats.Compute(b)
		return err
	})
	return st, err
}

// Train runs the classifier stage.
func (e *Engine) Train(ctx context.Context, b *model.CleanedBatch) (*classifier.Result, error) {
	var res *classifier.Result
	err := e.stage(ctx, StageTrain, func(ctx context.Context) error {
		var err error
		res, err = e.classifier.Train(ctx, b)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.metrics.Accuracy(string(res.Report.LabelMode), res.Report.Accuracy)
	return res, nil
}

// Rank runs the importance stage.
func (e *Engine) Rank(ctx context.Context, m *classifier.Model) (*model.FeatureImportance, error) {
	var fi *model.FeatureImportance
	err := e.stage(ctx, StageImportance, func(context.Context) error {
		var err error
		fi, err = e.ranker.Rank(m)
		return err
	})
	return fi, err
}

// CrossReference compares fault predictions on the evaluated rows with the
// ground truth and the anomaly flags. Class 0 is the normal class. Without
// ground truth only the prediction counts are filled.
func CrossReference(res *classifier.Result, flags []bool) *model.CrossReference {
	cr := &model.CrossReference{}
	for k, pred := range res.Predicted {
		if pred == 0 {
			continue
		}
		cr.PredictedFaults++
		if res.Actual != nil {
			if res.Actual[k] != 0 {
				cr.TruePositives++
			} else {
				cr.FalsePositives++
			}
		}
		if row := res.TestRows[k]; row < len(flags) && flags[row] {
			cr.FlaggedPredictedFaults++
		}
	}
	return cr
}

func (e *Engine) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "engine."+name)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	e.metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (e *Engine) finish(span trace.Span, err error) {
	e.metrics.BatchDone(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("analysis failed", "error", err)
		return
	}
	span.SetStatus(codes.Ok, "")
}
