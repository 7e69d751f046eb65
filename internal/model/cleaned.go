package model

import "strconv"

// LabelMode describes how the label column was encoded.
type LabelMode string

const (
	LabelNone       LabelMode = ""
	LabelBinary     LabelMode = "binary"
	LabelMulticlass LabelMode = "multiclass"
)

// DroppedColumn records a column removed during sanitization.
type DroppedColumn struct {
	Name   string `json:"name"`
	Reason string `json:"reason"` // "non_numeric" or "missing_ratio"
}

// CleanedBatch is a sanitized numeric batch. Every feature value is finite,
// there are at least two feature columns and at least one row.
// It must not be modified after the sanitizer returns it.
type CleanedBatch struct {
	Columns    []string
	Features   [][]float64 // row-major, len(Features[i]) == len(Columns)
	Labels     []int       // nil when the batch carries no label column
	ClassNames []string    // index -> original label text
	LabelName  string
	LabelMode  LabelMode

	Dropped     []DroppedColumn
	Imputed     map[string]int // column -> number of imputed cells
	RowsDropped int            // rows removed for a missing label
}

// Rows returns the number of samples.
func (b *CleanedBatch) Rows() int { return len(b.Features) }

// HasLabels reports whether a label vector is present.
func (b *CleanedBatch) HasLabels() bool { return b.Labels != nil }

// Column extracts a copy of feature column j.
func (b *CleanedBatch) Column(j int) []float64 {
	col := make([]float64, len(b.Features))
	for i, row := range b.Features {
		col[i] = row[j]
	}
	return col
}

// LabelFloats returns the label vector as float64 for correlation work.
func (b *CleanedBatch) LabelFloats() []float64 {
	out := make([]float64, len(b.Labels))
	for i, l := range b.Labels {
		out[i] = float64(l)
	}
	return out
}

// ClassCounts returns the number of samples per class name.
func (b *CleanedBatch) ClassCounts() map[string]int {
	if !b.HasLabels() {
		return nil
	}
	counts := make(map[string]int, len(b.ClassNames))
	for _, name := range b.ClassNames {
		counts[name] = 0
	}
	for _, l := range b.Labels {
		counts[b.ClassNames[l]]++
	}
	return counts
}

// Raw renders the batch back into text form. Floats use the shortest
// representation that parses back to the identical value, so sanitizing the
// result reproduces this batch.
func (b *CleanedBatch) Raw() RawBatch {
	header := append([]string(nil), b.Columns...)
	if b.HasLabels() {
		header = append(header, b.LabelName)
	}
	rows := make([][]string, len(b.Features))
	for i, feats := range b.Features {
		row := make([]string, 0, len(header))
		for _, v := range feats {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if b.HasLabels() {
			row = append(row, b.ClassNames[b.Labels[i]])
		}
		rows[i] = row
	}
	return RawBatch{Source: "cleaned", Header: header, Rows: rows}
}
