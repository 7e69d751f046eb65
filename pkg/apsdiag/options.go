package apsdiag

import (
	"log/slog"

	"github.com/crimson-sun/apsdiag/internal/engine/anomaly"
	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
	"github.com/crimson-sun/apsdiag/internal/engine/sanitizer"
)

type options struct {
	sanitizer  sanitizer.Config
	anomaly    anomaly.Config
	classifier classifier.Config
	topSensors int
	modelData  []byte
	logger     *slog.Logger
}

// Option configures a Diagnoser.
type Option func(*options)

// WithLabelColumn sets the header of the class column. Default: "class".
func WithLabelColumn(name string) Option {
	return func(o *options) { o.sanitizer.LabelColumn = name }
}

// WithLabelMode forces "binary" or "multiclass" label handling.
// Default: "auto", which picks binary for two classes.
func WithLabelMode(mode string) Option {
	return func(o *options) { o.sanitizer.LabelMode = mode }
}

// WithMaxMissingRatio drops columns whose share of missing cells exceeds r.
// Default: 0.5.
func WithMaxMissingRatio(r float64) Option {
	return func(o *options) { o.sanitizer.MaxMissingRatio = r }
}

// WithAnomalyThreshold sets the |z| above which a sample is anomalous.
// Default: 3.0.
func WithAnomalyThreshold(z float64) Option {
	return func(o *options) { o.anomaly.Threshold = z }
}

// WithTrees sets the forest size. Default: 100.
func WithTrees(n int) Option {
	return func(o *options) { o.classifier.Trees = n }
}

// WithMaxDepth caps tree depth. Default: 10.
func WithMaxDepth(d int) Option {
	return func(o *options) { o.classifier.MaxDepth = d }
}

// WithSeed fixes the split and bootstrap randomness. Default: 42.
func WithSeed(seed int64) Option {
	return func(o *options) { o.classifier.Seed = seed }
}

// WithDecisionThreshold sets the positive-class probability cut-off for
// binary labels. Default: 0.5.
func WithDecisionThreshold(p float64) Option {
	return func(o *options) { o.classifier.DecisionThreshold = p }
}

// WithWorkers bounds parallel tree construction. Default: GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.classifier.Workers = n }
}

// WithTopSensors sets how many sensors the root-cause ranking highlights.
// Default: 10.
func WithTopSensors(n int) Option {
	return func(o *options) { o.topSensors = n }
}

// WithModel scores batches with a model saved by Diagnosis.ModelData
// instead of training a new one.
func WithModel(data []byte) Option {
	return func(o *options) { o.modelData = data }
}

// WithLogger sets the logger for warnings about degraded computations.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func defaultOptions() options {
	return options{
		sanitizer:  sanitizer.DefaultConfig(),
		anomaly:    anomaly.DefaultConfig(),
		classifier: classifier.DefaultConfig(),
		topSensors: 10,
	}
}
