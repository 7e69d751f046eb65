// Package testdata generates deterministic synthetic APS sensor batches
// shaped like the field exports: sixteen sensors, mostly normal operation,
// and three fault signatures (high pressure, low pressure, sensor dropout).
package testdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// Class names used by Generate.
const (
	ClassNormal = "Normal"
	ClassHigh   = "Fault Class 1"
	ClassLow    = "Fault Class 2"
	ClassDrop   = "Fault Class 3"
)

type span struct{ lo, hi float64 }

var sensorNames = []string{
	"aa_000", "ab_001", "ac_002", "ad_003", "ae_004",
	"af_005", "ag_005", "ag_006", "ah_007", "ai_008",
	"aj_009", "ak_010", "al_011", "am_012", "an_013", "ao_014",
}

var normalRanges = map[string]span{
	"aa_000": {2.0, 2.5}, "ab_001": {2.1, 2.6}, "ac_002": {1.8, 2.3}, "ad_003": {2.2, 2.7},
	"ae_004": {1.9, 2.4}, "af_005": {2.0, 2.5}, "ag_005": {15, 25}, "ag_006": {1.9, 2.4},
	"ah_007": {20, 30}, "ai_008": {18, 28}, "aj_009": {2.1, 2.6}, "ak_010": {1.8, 2.3},
	"al_011": {2.0, 2.5}, "am_012": {2.2, 2.7}, "an_013": {1.9, 2.4}, "ao_014": {2.0, 2.5},
}

var faultRanges = map[string]map[string]span{
	ClassHigh: {
		"aa_000": {3.0, 4.0}, "ab_001": {3.1, 4.1}, "ac_002": {2.8, 3.8}, "ad_003": {3.2, 4.2},
		"ae_004": {2.9, 3.9}, "af_005": {3.0, 4.0}, "ag_005": {30, 40}, "ag_006": {2.9, 3.9},
		"ah_007": {35, 45}, "ai_008": {33, 43}, "aj_009": {3.1, 4.1}, "ak_010": {2.8, 3.8},
		"al_011": {3.0, 4.0}, "am_012": {3.2, 4.2}, "an_013": {2.9, 3.9}, "ao_014": {3.0, 4.0},
	},
	ClassLow: {
		"aa_000": {0.5, 1.5}, "ab_001": {0.6, 1.6}, "ac_002": {0.3, 1.3}, "ad_003": {0.7, 1.7},
		"ae_004": {0.4, 1.4}, "af_005": {0.5, 1.5}, "ag_005": {5, 15}, "ag_006": {0.4, 1.4},
		"ah_007": {10, 20}, "ai_008": {8, 18}, "aj_009": {0.6, 1.6}, "ak_010": {0.3, 1.3},
		"al_011": {0.5, 1.5}, "am_012": {0.7, 1.7}, "an_013": {0.4, 1.4}, "ao_014": {0.5, 1.5},
	},
	ClassDrop: {
		"aa_000": {0, 0.1}, "ab_001": {0, 0.1}, "ac_002": {0, 0.1}, "ad_003": {0, 0.1},
		"ae_004": {0, 0.1}, "af_005": {0, 0.1}, "ag_005": {0, 1}, "ag_006": {0, 0.1},
		"ah_007": {0, 5}, "ai_008": {0, 5}, "aj_009": {0, 0.1}, "ak_010": {0, 0.1},
		"al_011": {0, 0.1}, "am_012": {0, 0.1}, "an_013": {0, 0.1}, "ao_014": {0, 0.1},
	},
}

// Sensors returns the sensor column names in export order.
func Sensors() []string {
	return append([]string(nil), sensorNames...)
}

// Generate returns n labeled samples: 80% normal, the remainder split 40/35/25
// across the three fault classes, shuffled with the given seed.
func Generate(n int, seed int64) model.RawBatch {
	rng := rand.New(rand.NewSource(seed))

	normal := n * 8 / 10
	faults := n - normal
	high := faults * 40 / 100
	low := faults * 35 / 100
	drop := faults - high - low

	labels := make([]string, 0, n)
	for _, c := range []struct {
		name  string
		count int
	}{{ClassNormal, normal}, {ClassHigh, high}, {ClassLow, low}, {ClassDrop, drop}} {
		for i := 0; i < c.count; i++ {
			labels = append(labels, c.name)
		}
	}

	rows := make([][]string, n)
	for i, label := range labels {
		ranges := normalRanges
		if label != ClassNormal {
			ranges = faultRanges[label]
		}
		row := make([]string, 0, len(sensorNames)+1)
		for _, s := range sensorNames {
			r := ranges[s]
			v := r.lo + rng.Float64()*(r.hi-r.lo)
			row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
		}
		rows[i] = append(row, label)
	}
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	header := append(Sensors(), "class")
	return model.RawBatch{Source: "synthetic", Header: header, Rows: rows}
}

// GenerateBinary is Generate with labels collapsed to the neg/pos encoding
// used by the APS challenge exports.
func GenerateBinary(n int, seed int64) model.RawBatch {
	b := Generate(n, seed)
	last := len(b.Header) - 1
	for _, row := range b.Rows {
		if row[last] == ClassNormal {
			row[last] = "neg"
		} else {
			row[last] = "pos"
		}
	}
	return b
}

// Unlabeled strips the label column from b.
func Unlabeled(b model.RawBatch) model.RawBatch {
	idx := b.Column("class")
	if idx < 0 {
		return b
	}
	out := model.RawBatch{Source: b.Source}
	out.Header = append(append([]string(nil), b.Header[:idx]...), b.Header[idx+1:]...)
	out.Rows = make([][]string, len(b.Rows))
	for i, row := range b.Rows {
		out.Rows[i] = append(append([]string(nil), row[:idx]...), row[idx+1:]...)
	}
	return out
}

// WriteCSV writes b as a CSV export with a header line.
func WriteCSV(w io.Writer, b model.RawBatch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(b.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(b.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
