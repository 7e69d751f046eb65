package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/crimson-sun/apsdiag/internal/model"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		in     []float64
		want   float64
		wantOK bool
	}{
		{[]float64{3, 1, 2}, 2, true},
		{[]float64{4, 1, 3, 2}, 2.5, true},
		{[]float64{math.NaN(), 5, math.NaN()}, 5, true},
		{[]float64{1.7e308, 1.7e308, 1.7e308, 1.7e308}, 1.7e308, true},
		{[]float64{-math.MaxFloat64, math.MaxFloat64}, 0, true},
		{[]float64{math.NaN()}, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := Median(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Median(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 || s.Min != 2 || s.Max != 9 || s.Median != 4.5 {
		t.Fatalf("summary = %+v", s)
	}
	// Sample standard deviation: sqrt(32/7).
	if math.Abs(s.Std-math.Sqrt(32.0/7)) > 1e-12 {
		t.Fatalf("std = %v", s.Std)
	}
	if one := Summarize([]float64{3}); one.Std != 0 || one.Mean != 3 {
		t.Fatalf("single value summary = %+v", one)
	}
}

func TestComputeLabeled(t *testing.T) {
	b := &model.CleanedBatch{
		Columns:    []string{"flat", "weak", "strong"},
		ClassNames: []string{"neg", "pos"},
		LabelMode:  model.LabelBinary,
	}
	labels := []int{0, 0, 0, 1, 1, 1}
	weak := []float64{1, 3, 2, 2, 4, 3}
	for i, l := range labels {
		b.Features = append(b.Features, []float64{7, weak[i], float64(l) * 10})
	}
	b.Labels = labels

	got, err := New(nil).Compute(b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got.TotalSamples != 6 || got.TotalFeatures != 3 {
		t.Fatalf("totals = %d/%d", got.TotalSamples, got.TotalFeatures)
	}
	if got.ClassDistribution["neg"] != 3 || got.ClassDistribution["pos"] != 3 {
		t.Fatalf("distribution = %v", got.ClassDistribution)
	}
	if len(got.Correlations) != 3 {
		t.Fatalf("correlations = %v", got.Correlations)
	}
	first := got.Correlations[0]
	if first.Sensor != "strong" || math.Abs(first.Coefficient-1) > 1e-12 {
		t.Fatalf("strongest correlation = %+v", first)
	}
	last := got.Correlations[2]
	if last.Sensor != "flat" || !last.Degraded || last.Coefficient != 0 {
		t.Fatalf("constant column correlation = %+v", last)
	}
	if len(got.Preview) != 3 || len(got.Preview["strong"]) != 6 {
		t.Fatalf("preview = %v", got.Preview)
	}
}

func TestComputeUnlabeled(t *testing.T) {
	b := &model.CleanedBatch{Columns: []string{"a", "b"}}
	for i := 0; i < 80; i++ {
		b.Features = append(b.Features, []float64{float64(i), float64(-i)})
	}
	got, err := New(nil).Compute(b)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got.ClassDistribution != nil || got.Correlations != nil {
		t.Fatal("unlabeled batch has label statistics")
	}
	if len(got.Preview["a"]) != DefaultPreviewLength {
		t.Fatalf("preview length = %d", len(got.Preview["a"]))
	}
	if got.SensorStats["b"].Min != -79 {
		t.Fatalf("stats = %+v", got.SensorStats["b"])
	}
}

func TestComputeEmpty(t *testing.T) {
	if _, err := New(nil).Compute(&model.CleanedBatch{}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
