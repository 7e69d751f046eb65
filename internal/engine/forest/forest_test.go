package forest

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
)

// separable returns n samples where feature 0 decides the class and
// feature 1 is noise.
func separable(n int, seed int64) ([][]float64, []int) {
	rnd := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		c := i % 2
		x[i] = []float64{float64(c)*10 + rnd.Float64(), rnd.Float64() * 10}
		y[i] = c
	}
	return x, y
}

func small() Params {
	return Params{Trees: 15, MaxDepth: 5, MinSamplesLeaf: 1, MaxFeatures: 2, Seed: 42, Workers: 4}
}

func TestFitSeparable(t *testing.T) {
	x, y := separable(200, 1)
	f, err := Fit(context.Background(), x, y, nil, 2, small())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range x {
		p := f.Proba(x[i])
		if p[y[i]] < 0.5 {
			t.Fatalf("row %d: class %d got probability %v", i, y[i], p[y[i]])
		}
		if math.Abs(p[0]+p[1]-1) > 1e-9 {
			t.Fatalf("row %d: probabilities sum to %v", i, p[0]+p[1])
		}
	}
}

func TestFitReproducible(t *testing.T) {
	x, y := separable(150, 2)
	a, err := Fit(context.Background(), x, y, nil, 2, small())
	if err != nil {
		t.Fatal(err)
	}
	p := small()
	p.Workers = 1
	b, err := Fit(context.Background(), x, y, nil, 2, p)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Trees, b.Trees) {
		t.Fatal("same seed produced different forests")
	}
	p.Seed = 43
	c, err := Fit(context.Background(), x, y, nil, 2, p)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(a.Trees, c.Trees) {
		t.Fatal("different seeds produced identical forests")
	}
}

func TestImportancesFavorInformativeFeature(t *testing.T) {
	x, y := separable(300, 3)
	p := small()
	p.MaxFeatures = 2
	f, err := Fit(context.Background(), x, y, nil, 2, p)
	if err != nil {
		t.Fatal(err)
	}
	imp := f.Importances()
	if math.Abs(imp[0]+imp[1]-1) > 1e-9 {
		t.Fatalf("importances sum to %v", imp[0]+imp[1])
	}
	if imp[0] <= imp[1] {
		t.Fatalf("expected feature 0 to dominate, got %v", imp)
	}
}

func TestImportancesWithoutSplits(t *testing.T) {
	x := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	y := []int{0, 0, 0}
	f, err := Fit(context.Background(), x, y, nil, 2, small())
	if err != nil {
		t.Fatal(err)
	}
	for j, v := range f.Importances() {
		if v != 0 {
			t.Fatalf("feature %d has importance %v without any split", j, v)
		}
	}
	if p := f.Proba(x[0]); p[0] != 1 || p[1] != 0 {
		t.Fatalf("proba = %v", p)
	}
}

func TestLeafUsesWeightedShare(t *testing.T) {
	// Identical features cannot split, so the root leaf holds the weighted
	// class share of the full sample.
	x := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	b := &builder{
		x:        x,
		y:        []int{0, 0, 0, 1},
		w:        []float64{1, 1, 1, 3},
		classes:  2,
		features: 2,
		params:   Params{MinSamplesLeaf: 1, MaxFeatures: 2},
		rnd:      rand.New(rand.NewSource(1)),
	}
	tree, err := b.build(context.Background(), []int{0, 1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if got := tree.proba(x[0]); !reflect.DeepEqual(got, []float64{0.5, 0.5}) {
		t.Fatalf("proba = %v, want [0.5 0.5]", got)
	}
}

func TestFitCancelled(t *testing.T) {
	x, y := separable(100, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fit(ctx, x, y, nil, 2, small())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		x    [][]float64
		y    []int
		w    []float64
	}{
		{"empty", nil, nil, nil},
		{"label mismatch", [][]float64{{1}}, []int{0, 1}, nil},
		{"weight mismatch", [][]float64{{1}}, []int{0}, []float64{1, 2}},
		{"ragged", [][]float64{{1, 2}, {1}}, []int{0, 1}, nil},
		{"label range", [][]float64{{1}}, []int{5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fit(ctx, tt.x, tt.y, tt.w, 2, small()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	x, y := separable(120, 5)
	f, err := Fit(context.Background(), x, y, nil, 2, small())
	if err != nil {
		t.Fatal(err)
	}
	data, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var g Forest
	if err := g.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for i := range x {
		if !reflect.DeepEqual(f.Proba(x[i]), g.Proba(x[i])) {
			t.Fatalf("row %d: predictions differ after round trip", i)
		}
	}
	if !reflect.DeepEqual(f.Importances(), g.Importances()) {
		t.Fatal("importances differ after round trip")
	}
}
