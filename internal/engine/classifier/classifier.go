// Package classifier trains and evaluates the random-forest fault classifier.
//
// Train splits a labeled batch into stratified train and test folds, fits a
// standardizer on the training fold only, grows the forest on the scaled
// training rows and scores the held-out fold.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/crimson-sun/apsdiag/internal/engine/forest"
	"github.com/crimson-sun/apsdiag/internal/model"
)

// Class weighting policies.
const (
	WeightAuto     = "auto"     // balanced for binary labels, none for multiclass
	WeightBalanced = "balanced" // n / (classes * count)
	WeightNone     = "none"
)

// Profile defaults per label mode.
const (
	BinaryTestRatio     = 0.3
	MulticlassTestRatio = 0.2
)

// PreviewSize is the number of held-out predictions kept in a report.
const PreviewSize = 10

// Config controls training. Zero values fall back to DefaultConfig.
type Config struct {
	Trees             int
	MaxDepth          int
	MinSamplesLeaf    int
	MaxFeatures       int // 0 means sqrt(features)
	Seed              int64
	TestRatio         float64 // 0 means the label mode's profile
	ClassWeight       string
	DecisionThreshold float64 // binary only: P(positive) >= threshold predicts positive
	Workers           int
}

// DefaultConfig returns 100 trees of depth 10 seeded with 42.
func DefaultConfig() Config {
	return Config{
		Trees:             100,
		MaxDepth:          10,
		MinSamplesLeaf:    1,
		Seed:              42,
		ClassWeight:       WeightAuto,
		DecisionThreshold: 0.5,
	}
}

// Result is the outcome of one training run.
type Result struct {
	Model  *Model
	Report *model.ClassificationReport

	// Held-out fold, aligned by position.
	TestRows  []int // row indices into the training batch
	Actual    []int
	Predicted []int
}

// Classifier trains fault models.
type Classifier struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Classifier. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = def.MinSamplesLeaf
	}
	if cfg.ClassWeight == "" {
		cfg.ClassWeight = WeightAuto
	}
	if cfg.DecisionThreshold <= 0 || cfg.DecisionThreshold > 1 {
		cfg.DecisionThreshold = def.DecisionThreshold
	}
	return &Classifier{cfg: cfg, logger: logger}
}

// Config returns the effective configuration.
func (c *Classifier) Config() Config { return c.cfg }

// Train fits a new model on b and evaluates it on a held-out fold. The
// batch must carry labels (model.ErrSchema otherwise) with at least two
// observed classes. Cancelling ctx aborts tree construction.
func (c *Classifier) Train(ctx context.Context, b *model.CleanedBatch) (*Result, error) {
	if b == nil || b.Rows() == 0 {
		return nil, fmt.Errorf("train: %w: empty batch", model.ErrValidation)
	}
	if !b.HasLabels() {
		return nil, fmt.Errorf("train: %w: batch has no label column", model.ErrSchema)
	}
	classes := len(b.ClassNames)
	observed := 0
	for _, n := range classHistogram(b.Labels, classes) {
		if n > 0 {
			observed++
		}
	}
	if observed < 2 {
		return nil, fmt.Errorf("train: %w: need at least two observed classes, got %d", model.ErrValidation, observed)
	}

	ratio, weighting := c.profile(b.LabelMode)
	rnd := rand.New(rand.NewSource(c.cfg.Seed))
	trainIdx, testIdx, err := stratifiedSplit(b.Labels, classes, ratio, rnd)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	c.logger.Info("training classifier",
		"rows", b.Rows(),
		"features", len(b.Columns),
		"label_mode", b.LabelMode,
		"train", len(trainIdx),
		"test", len(testIdx),
		"test_ratio", ratio,
		"class_weight", weighting,
		"trees", c.cfg.Trees,
	)

	sc := fitScaler(b.Features, trainIdx)
	xTrain := make([][]float64, len(trainIdx))
	yTrain := make([]int, len(trainIdx))
	for k, i := range trainIdx {
		xTrain[k] = sc.transform(b.Features[i])
		yTrain[k] = b.Labels[i]
	}
	var weights []float64
	if weighting == WeightBalanced {
		weights = balancedWeights(yTrain, classes)
	}

	f, err := forest.Fit(ctx, xTrain, yTrain, weights, classes, forest.Params{
		Trees:          c.cfg.Trees,
		MaxDepth:       c.cfg.MaxDepth,
		MinSamplesLeaf: c.cfg.MinSamplesLeaf,
		MaxFeatures:    c.cfg.MaxFeatures,
		Seed:           c.cfg.Seed,
		Workers:        c.cfg.Workers,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("train: %w: %v", model.ErrComputation, err)
	}

	m := &Model{
		forest:    f,
		scaler:    sc,
		features:  append([]string(nil), b.Columns...),
		classes:   append([]string(nil), b.ClassNames...),
		mode:      b.LabelMode,
		threshold: c.cfg.DecisionThreshold,
	}

	res := &Result{Model: m, TestRows: testIdx}
	scores := make([][]float64, len(testIdx))
	for k, i := range testIdx {
		p := m.proba(b.Features[i])
		scores[k] = p
		res.Actual = append(res.Actual, b.Labels[i])
		res.Predicted = append(res.Predicted, m.decide(p))
	}
	res.Report = evaluate(res.Actual, res.Predicted, scores, m.classes, m.mode)
	res.Report.Classes = b.ClassCounts()
	res.Report.TrainSize = len(trainIdx)
	res.Report.TestSize = len(testIdx)
	res.Report.Predictions = preview(testIdx, res.Actual, res.Predicted, scores, m.classes)

	c.logger.Info("classifier trained",
		"accuracy", res.Report.Accuracy,
		"f1", res.Report.F1,
		"duration", time.Since(start),
	)
	return res, nil
}

// profile resolves the test ratio and weighting for a label mode. Explicit
// configuration wins over the profile.
func (c *Classifier) profile(mode model.LabelMode) (float64, string) {
	ratio, weighting := MulticlassTestRatio, WeightNone
	if mode == model.LabelBinary {
		ratio, weighting = BinaryTestRatio, WeightBalanced
	}
	if c.cfg.TestRatio > 0 && c.cfg.TestRatio < 1 {
		ratio = c.cfg.TestRatio
	}
	if c.cfg.ClassWeight != WeightAuto {
		weighting = c.cfg.ClassWeight
	}
	return ratio, weighting
}

// preview keeps the first PreviewSize held-out outcomes.
func preview(rows, actual, predicted []int, scores [][]float64, names []string) []model.Prediction {
	var out []model.Prediction
	for k := 0; k < len(rows) && k < PreviewSize; k++ {
		pred := predicted[k]
		out = append(out, model.Prediction{
			Row:         rows[k],
			Actual:      names[actual[k]],
			Predicted:   names[pred],
			Probability: model.Some(scores[k][pred]),
		})
	}
	return out
}

// balancedWeights gives each sample n / (observed classes * class count).
func balancedWeights(y []int, classes int) []float64 {
	counts := classHistogram(y, classes)
	observed := 0
	for _, n := range counts {
		if n > 0 {
			observed++
		}
	}
	w := make([]float64, len(y))
	for i, c := range y {
		w[i] = float64(len(y)) / (float64(observed) * float64(counts[c]))
	}
	return w
}

func classHistogram(y []int, classes int) []int {
	counts := make([]int, classes)
	for _, c := range y {
		counts[c]++
	}
	return counts
}
