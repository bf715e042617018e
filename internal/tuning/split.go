// Package tuning selects random forest hyperparameters by cross-validated
// grid search.
package tuning

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/Veraticus/click-thru/internal/common"
)

// TrainTestSplit shuffles 0..n-1 and returns ceil(testSize*n) test indices
// and the remaining training indices, each sorted.
func TrainTestSplit(n int, testSize float64, rng *rand.Rand) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("%w: test size %v must be in (0, 1)", common.ErrInvalidConfig, testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	if n < 2 || nTest >= n {
		return nil, nil, fmt.Errorf("%w: cannot split %d rows with test size %v", common.ErrTooFewSamples, n, testSize)
	}

	perm := rng.Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test, nil
}

// Fold is one cross-validation split.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits 0..len(y)-1 into k folds whose class proportions
// follow y. Within each class, indices are dealt into folds in order, so
// fold sizes differ by at most one per class. A class smaller than k lands in
// the first folds only. Every index is in exactly one test fold.
func StratifiedKFold(y []int, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", common.ErrInvalidConfig, k)
	}

	byClass := map[int][]int{}
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	if len(byClass) < 2 {
		return nil, common.ErrSingleClass
	}

	classes := make([]int, 0, len(byClass))
	largest := 0
	for c, members := range byClass {
		classes = append(classes, c)
		largest = max(largest, len(members))
	}
	if largest < k {
		return nil, fmt.Errorf("%w: no class has %d samples, the largest has %d", common.ErrTooFewSamples, k, largest)
	}
	sort.Ints(classes)

	for _, c := range classes {
		if n := len(byClass[c]); n < k {
			slog.Warn("Class has fewer samples than folds, some folds will not test it",
				"class", c, "samples", n, "folds", k)
		}
	}

	assign := make([]int, len(y))
	for _, c := range classes {
		members := byClass[c]
		for j, idx := range members {
			// Contiguous chunks of near-equal size.
			assign[idx] = j * k / len(members)
		}
	}

	folds := make([]Fold, k)
	for idx, f := range assign {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, idx)
			} else {
				folds[g].Train = append(folds[g].Train, idx)
			}
		}
	}
	return folds, nil
}
