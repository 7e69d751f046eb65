package forest

import (
	"context"
	"math/rand"
	"sort"
)

// leaf marks a terminal node in Node.Feature.
const leaf = -1

// minGain is the smallest weighted impurity decrease accepted as a split.
const minGain = 1e-12

// Node is one node of a fitted tree. Nodes live in a flat slice so a tree
// encodes with gob without pointer chasing.
type Node struct {
	Feature   int // leaf for terminal nodes
	Threshold float64
	Left      int
	Right     int
	Gain      float64   // weighted impurity decrease of the split
	Probs     []float64 // class distribution, set on leaves
}

// Tree is a CART classification tree using weighted gini impurity.
type Tree struct {
	Nodes []Node
}

// proba walks x down to a leaf. Values <= Threshold go left.
func (t *Tree) proba(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n.Probs
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// importances returns the tree's per-feature impurity decrease normalized to
// sum 1. ok is false when the tree never split.
func (t *Tree) importances(nFeatures int) ([]float64, bool) {
	imp := make([]float64, nFeatures)
	var total float64
	for _, n := range t.Nodes {
		if n.Feature == leaf {
			continue
		}
		imp[n.Feature] += n.Gain
		total += n.Gain
	}
	if total <= 0 {
		return imp, false
	}
	for j := range imp {
		imp[j] /= total
	}
	return imp, true
}

// builder grows one tree over a bootstrap sample.
type builder struct {
	x        [][]float64
	y        []int
	w        []float64
	classes  int
	features int
	params   Params
	rnd      *rand.Rand
	nodes    []Node
	perm     []int
}

func (b *builder) build(ctx context.Context, idx []int) (*Tree, error) {
	b.perm = make([]int, b.features)
	for j := range b.perm {
		b.perm[j] = j
	}
	if _, err := b.grow(ctx, idx, 0); err != nil {
		return nil, err
	}
	return &Tree{Nodes: b.nodes}, nil
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) grow(ctx context.Context, idx []int, depth int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leaf})

	counts, total := b.counts(idx)
	stop := pure(counts) ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) ||
		len(idx) < 2*b.params.MinSamplesLeaf || len(idx) < 2

	var best split
	if !stop {
		best = b.bestSplit(idx, counts, total)
	}
	if stop || best.gain <= minGain {
		b.nodes[id].Probs = probs(counts, total)
		return id, nil
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l, err := b.grow(ctx, left, depth+1)
	if err != nil {
		return 0, err
	}
	r, err := b.grow(ctx, right, depth+1)
	if err != nil {
		return 0, err
	}
	b.nodes[id] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r, Gain: best.gain}
	return id, nil
}

// bestSplit scans a random subset of features. Each candidate feature is
// sorted once and scanned with running class weights.
func (b *builder) bestSplit(idx []int, counts []float64, total float64) split {
	m := b.params.MaxFeatures
	for i := 0; i < m; i++ {
		j := i + b.rnd.Intn(b.features-i)
		b.perm[i], b.perm[j] = b.perm[j], b.perm[i]
	}
	candidates := append([]int(nil), b.perm[:m]...)

	parent := total * gini(counts, total)
	best := split{feature: leaf}
	sorted := make([]int, len(idx))
	left := make([]float64, b.classes)
	minLeaf := b.params.MinSamplesLeaf

	for _, f := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })
		for k := range left {
			left[k] = 0
		}
		var leftW float64
		for s := 0; s < len(sorted)-1; s++ {
			i := sorted[s]
			left[b.y[i]] += b.w[i]
			leftW += b.w[i]
			v, next := b.x[i][f], b.x[sorted[s+1]][f]
			if v == next {
				continue
			}
			nLeft := s + 1
			if nLeft < minLeaf || len(sorted)-nLeft < minLeaf {
				continue
			}
			gain := parent - leftW*gini(left, leftW) - (total-leftW)*giniRest(counts, left, total-leftW)
			if gain > best.gain {
				thr := v + (next-v)/2
				if thr >= next {
					thr = v
				}
				best = split{feature: f, threshold: thr, gain: gain}
			}
		}
	}
	return best
}

func (b *builder) counts(idx []int) ([]float64, float64) {
	counts := make([]float64, b.classes)
	var total float64
	for _, i := range idx {
		counts[b.y[i]] += b.w[i]
		total += b.w[i]
	}
	return counts, total
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	s := 1.0
	for _, c := range counts {
		p := c / total
		s -= p * p
	}
	return s
}

// giniRest is the gini impurity of counts minus left.
func giniRest(counts, left []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	s := 1.0
	for k, c := range counts {
		p := (c - left[k]) / total
		s -= p * p
	}
	return s
}

func pure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func probs(counts []float64, total float64) []float64 {
	p := make([]float64, len(counts))
	if total <= 0 {
		return p
	}
	for k, c := range counts {
		p[k] = c / total
	}
	return p
}
