// Package importance ranks sensors by their contribution to a trained fault
// classifier.
package importance

import (
	"fmt"
	"math"
	"sort"

	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
	"github.com/crimson-sun/apsdiag/internal/engine/taxonomy"
	"github.com/crimson-sun/apsdiag/internal/model"
)

// DefaultTopN is the length of the root-cause shortlist.
const DefaultTopN = 10

// Ranker turns model importances into described, ordered sensor rankings.
type Ranker struct {
	tax  *taxonomy.Taxonomy
	topN int
}

// New creates a Ranker. A nil taxonomy describes every sensor with
// taxonomy.Fallback; topN <= 0 uses DefaultTopN.
func New(tax *taxonomy.Taxonomy, topN int) *Ranker {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Ranker{tax: tax, topN: topN}
}

// Rank orders every feature of m by descending importance. Equal scores keep
// training column order. It fails with model.ErrModelNotTrained for a nil model.
func (r *Ranker) Rank(m *classifier.Model) (*model.FeatureImportance, error) {
	if m == nil {
		return nil, fmt.Errorf("rank importance: %w", model.ErrModelNotTrained)
	}
	names := m.Features()
	scores := m.Importances()
	if len(scores) != len(names) {
		return nil, fmt.Errorf("rank importance: %w: %d scores for %d features",
			model.ErrComputation, len(scores), len(names))
	}

	all := make([]model.SensorImportance, len(names))
	for j, name := range names {
		v := scores[j]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("rank importance: %w: non-finite score for %q", model.ErrComputation, name)
		}
		all[j] = model.SensorImportance{Name: name, Importance: v, Description: r.tax.Describe(name)}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].Importance > all[b].Importance })

	n := r.topN
	if n > len(all) {
		n = len(all)
	}
	return &model.FeatureImportance{
		TopSensors:  append([]model.SensorImportance(nil), all[:n]...),
		AllFeatures: all,
	}, nil
}
