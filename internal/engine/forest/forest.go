// Package forest implements a random forest of CART classification trees.
//
// Trees are grown on bootstrap samples with per-sample weights, a random
// subset of features per split, and weighted gini impurity. Tree i uses the
// seed Seed+i, so a fit is reproducible regardless of scheduling.
package forest

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Params are the ensemble hyperparameters.
type Params struct {
	Trees          int
	MaxDepth       int // 0 means unlimited
	MinSamplesLeaf int
	MaxFeatures    int // features tried per split; 0 means sqrt(p)
	Seed           int64
	Workers        int // concurrent tree builds; 0 means GOMAXPROCS
}

// DefaultParams matches the diagnosis defaults: 100 trees of depth 10.
func DefaultParams() Params {
	return Params{Trees: 100, MaxDepth: 10, MinSamplesLeaf: 1, Seed: 42}
}

// Forest is a fitted ensemble. It is read-only after Fit returns.
type Forest struct {
	Trees    []*Tree
	Classes  int
	Features int
}

// plain drops the gob marshaling methods so Forest can encode itself.
type plain Forest

// Fit grows a forest on x (row-major) with class labels y in [0, classes).
// w holds per-sample weights; nil weighs every sample 1. Cancelling ctx stops
// construction and returns ctx.Err().
func Fit(ctx context.Context, x [][]float64, y []int, w []float64, classes int, p Params) (*Forest, error) {
	n := len(x)
	if n == 0 {
		return nil, errors.New("forest: empty training set")
	}
	if len(y) != n {
		return nil, fmt.Errorf("forest: %d rows but %d labels", n, len(y))
	}
	if w != nil && len(w) != n {
		return nil, fmt.Errorf("forest: %d rows but %d weights", n, len(w))
	}
	if classes < 1 {
		return nil, errors.New("forest: no classes")
	}
	features := len(x[0])
	if features == 0 {
		return nil, errors.New("forest: no features")
	}
	for i, row := range x {
		if len(row) != features {
			return nil, fmt.Errorf("forest: row %d has %d features, want %d", i, len(row), features)
		}
	}
	for i, c := range y {
		if c < 0 || c >= classes {
			return nil, fmt.Errorf("forest: label %d at row %d out of range", c, i)
		}
	}
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}

	p = p.resolve(features)
	f := &Forest{Trees: make([]*Tree, p.Trees), Classes: classes, Features: features}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for t := 0; t < p.Trees; t++ {
		g.Go(func() error {
			rnd := rand.New(rand.NewSource(p.Seed + int64(t)))
			idx := make([]int, n)
			for i := range idx {
				idx[i] = rnd.Intn(n)
			}
			b := &builder{x: x, y: y, w: w, classes: classes, features: features, params: p, rnd: rnd}
			tree, err := b.build(gctx, idx)
			if err != nil {
				return err
			}
			f.Trees[t] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return f, nil
}

func (p Params) resolve(features int) Params {
	if p.Trees <= 0 {
		p.Trees = 100
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 1
	}
	if p.MaxFeatures <= 0 {
		p.MaxFeatures = int(math.Sqrt(float64(features)))
	}
	if p.MaxFeatures < 1 {
		p.MaxFeatures = 1
	}
	if p.MaxFeatures > features {
		p.MaxFeatures = features
	}
	if p.Workers <= 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	return p
}

// Proba returns the mean class distribution over all trees for one sample.
func (f *Forest) Proba(x []float64) []float64 {
	out := make([]float64, f.Classes)
	for _, t := range f.Trees {
		for k, v := range t.proba(x) {
			out[k] += v
		}
	}
	for k := range out {
		out[k] /= float64(len(f.Trees))
	}
	return out
}

// Importances averages the per-tree normalized impurity importances over
// trees that split at least once, then renormalizes to sum 1. All zeros when
// no tree ever split.
func (f *Forest) Importances() []float64 {
	sum := make([]float64, f.Features)
	used := 0
	for _, t := range f.Trees {
		imp, ok := t.importances(f.Features)
		if !ok {
			continue
		}
		used++
		for j, v := range imp {
			sum[j] += v
		}
	}
	if used == 0 {
		return sum
	}
	var total float64
	for j := range sum {
		sum[j] /= float64(used)
		total += sum[j]
	}
	if total > 0 {
		for j := range sum {
			sum[j] /= total
		}
	}
	return sum
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (f *Forest) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode((*plain)(f)); err != nil {
		return nil, fmt.Errorf("forest: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (f *Forest) UnmarshalBinary(data []byte) error {
	var p plain
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return fmt.Errorf("forest: decode: %w", err)
	}
	*f = Forest(p)
	return nil
}
