package classifier

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// stratifiedSplit holds out about ratio of each class. Every class keeps at
// least one training sample, and at least one sample overall is held out.
// Both folds are returned in row order.
func stratifiedSplit(y []int, classes int, ratio float64, rnd *rand.Rand) (train, test []int, err error) {
	byClass := make([][]int, classes)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}

	nTest := make([]int, classes)
	total := 0
	for c, idx := range byClass {
		rnd.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		k := int(math.Round(float64(len(idx)) * ratio))
		if k > len(idx)-1 {
			k = len(idx) - 1
		}
		if k < 0 {
			k = 0
		}
		nTest[c] = k
		total += k
	}
	if total == 0 {
		largest := -1
		for c, idx := range byClass {
			if len(idx) >= 2 && (largest < 0 || len(idx) > len(byClass[largest])) {
				largest = c
			}
		}
		if largest < 0 {
			return nil, nil, fmt.Errorf("train: %w: too few samples to hold out a test fold", model.ErrValidation)
		}
		nTest[largest] = 1
	}

	for c, idx := range byClass {
		test = append(test, idx[:nTest[c]]...)
		train = append(train, idx[nTest[c]:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}
