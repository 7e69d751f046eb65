// Package anomaly flags statistical outliers in a cleaned batch using
// per-column population z-scores.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// Severity boundaries on the largest absolute z-score of a flagged sample.
const (
	CriticalZ = 5.0
	MajorZ    = 3.5
)

// Config controls detection.
type Config struct {
	Threshold float64 // |z| above this flags a sample
	// TopCorrelated restricts scoring to the k features most correlated with
	// the label. 0, or an unlabeled batch, scores every feature.
	TopCorrelated int
}

// DefaultConfig returns a 3-sigma detector over all features.
func DefaultConfig() Config {
	return Config{Threshold: 3.0}
}

// Detector computes anomaly reports. It is stateless between calls.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Detector. A non-positive threshold falls back to 3.0.
func New(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Threshold <= 0 || math.IsNaN(cfg.Threshold) || math.IsInf(cfg.Threshold, 0) {
		cfg.Threshold = 3.0
	}
	if cfg.TopCorrelated < 0 {
		cfg.TopCorrelated = 0
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Threshold returns the effective flag threshold.
func (d *Detector) Threshold() float64 { return d.cfg.Threshold }

// Detect scores every sample of b. Columns with zero spread yield no z-scores
// and never flag; they are listed in UndefinedColumns.
func (d *Detector) Detect(b *model.CleanedBatch) (*model.AnomalyReport, error) {
	if b == nil || b.Rows() == 0 {
		return nil, fmt.Errorf("detect anomalies: %w: empty batch", model.ErrValidation)
	}

	cols := d.scoredColumns(b)
	n := b.Rows()
	rep := &model.AnomalyReport{
		TotalSamples: n,
		Threshold:    d.cfg.Threshold,
		Flags:        make([]bool, n),
		Severities:   make([]model.Severity, n),
		MaxAbsZ:      make([]model.OptFloat, n),
		ZScores:      make([][]model.OptFloat, n),
	}
	for i := range rep.ZScores {
		rep.ZScores[i] = make([]model.OptFloat, len(cols))
	}

	for k, j := range cols {
		name := b.Columns[j]
		rep.Columns = append(rep.Columns, name)
		x := b.Column(j)
		mean, std := stat.PopMeanStdDev(x, nil)
		if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
			rep.UndefinedColumns = append(rep.UndefinedColumns, name)
			d.logger.Warn("z-score undefined for column", "column", name, "std", std)
			continue
		}
		for i, v := range x {
			rep.ZScores[i][k] = model.Some((v - mean) / std)
		}
	}

	for i, zs := range rep.ZScores {
		maxAbs := model.None()
		for _, z := range zs {
			if !z.Valid {
				continue
			}
			if a := math.Abs(z.Value); !maxAbs.Valid || a > maxAbs.Value {
				maxAbs = model.Some(a)
			}
		}
		rep.MaxAbsZ[i] = maxAbs
		if !maxAbs.Valid || maxAbs.Value <= d.cfg.Threshold {
			continue
		}
		rep.Flags[i] = true
		rep.Anomalies++
		switch sev := Classify(maxAbs.Value); sev {
		case model.SeverityCritical:
			rep.CriticalAnomalies++
			rep.Severities[i] = sev
		case model.SeverityMajor:
			rep.MajorAnomalies++
			rep.Severities[i] = sev
		default:
			rep.MinorAnomalies++
			rep.Severities[i] = model.SeverityMinor
		}
	}
	rep.AnomalyRate = Rate(rep.Anomalies, n)

	d.logger.Debug("anomaly detection complete",
		"samples", n, "anomalies", rep.Anomalies, "columns", len(cols))
	return rep, nil
}

// Classify maps the largest absolute z-score of a flagged sample to a tier.
// Anything flagged below the major boundary is minor.
func Classify(maxAbsZ float64) model.Severity {
	switch {
	case maxAbsZ > CriticalZ:
		return model.SeverityCritical
	case maxAbsZ > MajorZ:
		return model.SeverityMajor
	default:
		return model.SeverityMinor
	}
}

// Rate is anomalies as a percentage of total, rounded to two decimals.
func Rate(anomalies, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(anomalies)/float64(total)*100*100) / 100
}

// scoredColumns returns the feature indices to score, in batch order.
func (d *Detector) scoredColumns(b *model.CleanedBatch) []int {
	p := len(b.Columns)
	all := make([]int, p)
	for j := range all {
		all[j] = j
	}
	k := d.cfg.TopCorrelated
	if k == 0 || k >= p || !b.HasLabels() {
		return all
	}

	y := b.LabelFloats()
	strength := make([]float64, p)
	for j := range all {
		c := stat.Correlation(b.Column(j), y, nil)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			d.logger.Warn("label correlation undefined, column ranked last", "column", b.Columns[j])
			c = 0
		}
		strength[j] = math.Abs(c)
	}
	ranked := append([]int(nil), all...)
	sort.SliceStable(ranked, func(a, c int) bool {
		return strength[ranked[a]] > strength[ranked[c]]
	})
	top := ranked[:k]
	sort.Ints(top)
	return top
}
