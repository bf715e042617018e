package tuning

import (
	"fmt"

	"github.com/Veraticus/click-thru/internal/forest"
)

// F1Micro pools true positives, false positives and false negatives over
// every class before computing F1. For single-label predictions it equals
// accuracy.
func F1Micro(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("%w: %d labels, %d predictions", forest.ErrShapeMismatch, len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, forest.ErrNoSamples
	}

	classes := map[int]bool{}
	for i := range yTrue {
		classes[yTrue[i]] = true
		classes[yPred[i]] = true
	}

	var tp, fp, fn float64
	for c := range classes {
		for i := range yTrue {
			switch {
			case yPred[i] == c && yTrue[i] == c:
				tp++
			case yPred[i] == c:
				fp++
			case yTrue[i] == c:
				fn++
			}
		}
	}

	denom := 2*tp + fp + fn
	if denom == 0 {
		return 0, nil
	}
	return 2 * tp / denom, nil
}
