// Package stats computes the descriptive statistics shown alongside a
// diagnosis: class distribution, per-sensor summaries, label correlations
// and a short preview of the most label-correlated sensors.
package stats

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// Preview defaults.
const (
	DefaultPreviewSensors = 5
	DefaultPreviewLength  = 50
)

// Calculator computes Statistics for cleaned batches.
type Calculator struct {
	previewSensors int
	previewLength  int
	logger         *slog.Logger
}

// New creates a Calculator with the default preview size.
func New(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		previewSensors: DefaultPreviewSensors,
		previewLength:  DefaultPreviewLength,
		logger:         logger,
	}
}

// Compute summarizes b. Correlations and the class distribution are only
// present for labeled batches; an unlabeled batch previews its first columns.
func (c *Calculator) Compute(b *model.CleanedBatch) (*model.Statistics, error) {
	if b == nil || b.Rows() == 0 {
		return nil, fmt.Errorf("statistics: %w: empty batch", model.ErrValidation)
	}
	out := &model.Statistics{
		TotalSamples:      b.Rows(),
		TotalFeatures:     len(b.Columns),
		ClassDistribution: b.ClassCounts(),
		SensorStats:       make(map[string]model.SensorStat, len(b.Columns)),
	}

	cols := make([][]float64, len(b.Columns))
	for j, name := range b.Columns {
		cols[j] = b.Column(j)
		out.SensorStats[name] = Summarize(cols[j])
	}

	order := make([]int, len(b.Columns))
	for j := range order {
		order[j] = j
	}
	if b.HasLabels() {
		y := b.LabelFloats()
		for j, name := range b.Columns {
			coef := stat.Correlation(cols[j], y, nil)
			corr := model.Correlation{Sensor: name, Coefficient: coef}
			if math.IsNaN(coef) || math.IsInf(coef, 0) {
				corr.Coefficient, corr.Degraded = 0, true
				c.logger.Warn("label correlation undefined", "sensor", name)
			}
			out.Correlations = append(out.Correlations, corr)
		}
		sort.SliceStable(out.Correlations, func(a, d int) bool {
			return math.Abs(out.Correlations[a].Coefficient) > math.Abs(out.Correlations[d].Coefficient)
		})
		index := make(map[string]int, len(b.Columns))
		for j, name := range b.Columns {
			index[name] = j
		}
		for k, corr := range out.Correlations {
			order[k] = index[corr.Sensor]
		}
	}

	n := c.previewSensors
	if n > len(order) {
		n = len(order)
	}
	length := c.previewLength
	if length > b.Rows() {
		length = b.Rows()
	}
	out.Preview = make(map[string][]float64, n)
	for _, j := range order[:n] {
		out.Preview[b.Columns[j]] = append([]float64(nil), cols[j][:length]...)
	}
	return out, nil
}

// Summarize returns mean, sample standard deviation, extremes and median of
// x. The deviation of a single value is 0.
func Summarize(x []float64) model.SensorStat {
	if len(x) == 0 {
		return model.SensorStat{}
	}
	mean, std := stat.MeanStdDev(x, nil)
	if math.IsNaN(std) || math.IsInf(std, 0) {
		std = 0
	}
	med, _ := Median(x)
	return model.SensorStat{
		Mean:   mean,
		Std:    std,
		Min:    floats.Min(x),
		Max:    floats.Max(x),
		Median: med,
	}
}

// Median returns the median of the non-NaN values of x, averaging the two
// middle values for an even count. ok is false when nothing is present.
func Median(x []float64) (med float64, ok bool) {
	present := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	n := len(present)
	if n == 0 {
		return 0, false
	}
	sort.Float64s(present)
	mid := n / 2
	if n%2 == 0 {
		return midpoint(present[mid-1], present[mid]), true
	}
	return present[mid], true
}

// midpoint averages a <= b without overflowing for large finite values.
func midpoint(a, b float64) float64 {
	if (a < 0) != (b < 0) {
		return (a + b) / 2
	}
	return a + (b-a)/2
}
