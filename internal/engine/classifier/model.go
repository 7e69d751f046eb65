package classifier

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/crimson-sun/apsdiag/internal/engine/forest"
	"github.com/crimson-sun/apsdiag/internal/model"
)

// Model is a trained fault classifier. It is immutable: retraining produces
// a new Model, and every accessor returns copies.
type Model struct {
	forest    *forest.Forest
	scaler    *scaler
	features  []string
	classes   []string
	mode      model.LabelMode
	threshold float64
}

// Features returns the feature names in training order.
func (m *Model) Features() []string { return append([]string(nil), m.features...) }

// Classes returns the class names indexed by label.
func (m *Model) Classes() []string { return append([]string(nil), m.classes...) }

// LabelMode reports whether the model is binary or multiclass.
func (m *Model) LabelMode() model.LabelMode { return m.mode }

// Threshold is the binary decision threshold on P(positive).
func (m *Model) Threshold() float64 { return m.threshold }

// Trees is the ensemble size.
func (m *Model) Trees() int { return len(m.forest.Trees) }

// Importances returns impurity importances aligned with Features.
func (m *Model) Importances() []float64 { return m.forest.Importances() }

// Predict scores the rows of b. Columns are matched by name, so b may order
// or extend them differently from the training batch; a missing feature is
// a model.ErrSchema.
func (m *Model) Predict(b *model.CleanedBatch) ([]int, [][]float64, error) {
	pos := make(map[string]int, len(b.Columns))
	for j, name := range b.Columns {
		pos[name] = j
	}
	cols := make([]int, len(m.features))
	for k, name := range m.features {
		j, ok := pos[name]
		if !ok {
			return nil, nil, fmt.Errorf("predict: %w: missing feature %q", model.ErrSchema, name)
		}
		cols[k] = j
	}

	labels := make([]int, b.Rows())
	probs := make([][]float64, b.Rows())
	row := make([]float64, len(cols))
	for i, feats := range b.Features {
		for k, j := range cols {
			row[k] = feats[j]
		}
		probs[i] = m.proba(row)
		labels[i] = m.decide(probs[i])
	}
	return labels, probs, nil
}

// Evaluate scores every row of b. For a labeled batch the class names are
// matched to the model's classes by name and the report covers all rows; an
// unlabeled batch yields predictions only.
func (m *Model) Evaluate(b *model.CleanedBatch) (*Result, error) {
	if b == nil || b.Rows() == 0 {
		return nil, fmt.Errorf("evaluate: %w: empty batch", model.ErrValidation)
	}
	predicted, probs, err := m.Predict(b)
	if err != nil {
		return nil, err
	}
	res := &Result{Model: m, Predicted: predicted, TestRows: make([]int, b.Rows())}
	for i := range res.TestRows {
		res.TestRows[i] = i
	}
	if !b.HasLabels() {
		return res, nil
	}

	index := make(map[string]int, len(m.classes))
	for k, name := range m.classes {
		index[name] = k
	}
	remap := make([]int, len(b.ClassNames))
	for k, name := range b.ClassNames {
		j, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("evaluate: %w: class %q unknown to the model", model.ErrSchema, name)
		}
		remap[k] = j
	}
	res.Actual = make([]int, b.Rows())
	for i, l := range b.Labels {
		res.Actual[i] = remap[l]
	}
	res.Report = evaluate(res.Actual, predicted, probs, m.classes, m.mode)
	res.Report.Classes = b.ClassCounts()
	res.Report.TestSize = b.Rows()
	res.Report.Predictions = preview(res.TestRows, res.Actual, predicted, probs, m.classes)
	return res, nil
}

func (m *Model) proba(row []float64) []float64 {
	return m.forest.Proba(m.scaler.transform(row))
}

// decide applies the threshold for binary models and argmax otherwise.
func (m *Model) decide(p []float64) int {
	if m.mode == model.LabelBinary && len(p) == 2 {
		if p[1] >= m.threshold {
			return 1
		}
		return 0
	}
	best := 0
	for k := 1; k < len(p); k++ {
		if p[k] > p[best] {
			best = k
		}
	}
	return best
}

// snapshot is the gob form of a Model.
type snapshot struct {
	Forest    *forest.Forest
	Mean      []float64
	Std       []float64
	Features  []string
	Classes   []string
	Mode      model.LabelMode
	Threshold float64
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *Model) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		Forest:    m.forest,
		Mean:      m.scaler.Mean,
		Std:       m.scaler.Std,
		Features:  m.features,
		Classes:   m.classes,
		Mode:      m.mode,
		Threshold: m.threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Model) UnmarshalBinary(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	if s.Forest == nil || len(s.Features) != s.Forest.Features || len(s.Classes) != s.Forest.Classes {
		return fmt.Errorf("decode model: %w: inconsistent model data", model.ErrSchema)
	}
	*m = Model{
		forest:    s.Forest,
		scaler:    &scaler{Mean: s.Mean, Std: s.Std},
		features:  s.Features,
		classes:   s.Classes,
		mode:      s.Mode,
		threshold: s.Threshold,
	}
	return nil
}
