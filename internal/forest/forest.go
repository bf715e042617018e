package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Fit validation errors.
var (
	ErrNoSamples     = errors.New("no training samples")
	ErrShapeMismatch = errors.New("feature and label lengths differ")
	ErrRaggedRows    = errors.New("feature rows have different lengths")
	ErrBadLabel      = errors.New("labels must be non-negative")
	ErrNotFitted     = errors.New("forest is not fitted")
)

// Config holds random forest hyperparameters.
type Config struct {
	Tree TreeConfig
	// Trees is the number of trees in the forest.
	Trees int
	// Seed fixes bootstrap draws and feature sampling.
	Seed uint64
	// Workers bounds concurrent tree fits; zero means GOMAXPROCS.
	Workers int
	// DisableBootstrap fits every tree on the full training set.
	DisableBootstrap bool
}

// DefaultConfig returns a forest of 100 trees considering sqrt(features) per split.
func DefaultConfig() Config {
	return Config{
		Trees: 100,
		Seed:  42,
	}
}

// RandomForest is an ensemble of CART trees fit on bootstrap samples.
type RandomForest struct {
	trees    []*Tree
	cfg      Config
	nClasses int
	features int
}

// New creates an unfitted forest.
func New(cfg Config) *RandomForest {
	if cfg.Trees <= 0 {
		cfg.Trees = DefaultConfig().Trees
	}
	return &RandomForest{cfg: cfg}
}

// Fit grows every tree. Tree i draws from a generator seeded with (Seed, i),
// so a fixed seed and identical data give identical forests regardless of
// scheduling.
func (f *RandomForest) Fit(ctx context.Context, x [][]float64, y []int) error {
	nClasses, err := validate(x, y)
	if err != nil {
		return err
	}

	f.nClasses = nClasses
	f.features = len(x[0])

	treeCfg := f.cfg.Tree
	if treeCfg.MaxFeatures <= 0 {
		treeCfg.MaxFeatures = max(1, int(math.Sqrt(float64(f.features))))
	}

	workers := f.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, f.cfg.Trees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rng := rand.New(rand.NewPCG(f.cfg.Seed, uint64(i)))
			samples := make([]int, len(x))
			for s := range samples {
				if f.cfg.DisableBootstrap {
					samples[s] = s
				} else {
					samples[s] = rng.IntN(len(x))
				}
			}

			trees[i] = fitTree(x, y, samples, nClasses, treeCfg, rng)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	f.trees = trees
	return nil
}

// PredictProba averages the leaf distributions of all trees.
func (f *RandomForest) PredictProba(x []float64) []float64 {
	proba := make([]float64, f.nClasses)
	if len(f.trees) == 0 {
		return proba
	}

	for _, t := range f.trees {
		for c, p := range t.PredictProba(x) {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.trees))
	}
	return proba
}

// Predict returns the most probable class, the lowest class on ties.
func (f *RandomForest) Predict(x []float64) int {
	best := 0
	proba := f.PredictProba(x)
	for c, p := range proba {
		if p > proba[best] {
			best = c
		}
	}
	return best
}

// PredictAll predicts every row of x.
func (f *RandomForest) PredictAll(x [][]float64) []int {
	out := make([]int, len(x))
	for i, row := range x {
		out[i] = f.Predict(row)
	}
	return out
}

// FeatureImportances returns the mean normalized impurity decrease per feature.
func (f *RandomForest) FeatureImportances() ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}

	out := make([]float64, f.features)
	for _, t := range f.trees {
		for i, v := range t.importance {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(f.trees))
	}
	return out, nil
}

// Trees returns the fitted trees.
func (f *RandomForest) Trees() []*Tree {
	return f.trees
}

func validate(x [][]float64, y []int) (int, error) {
	if len(x) == 0 {
		return 0, ErrNoSamples
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}

	width := len(x[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: no features", ErrRaggedRows)
	}

	nClasses := 0
	for i := range x {
		if len(x[i]) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrRaggedRows, i, len(x[i]), width)
		}
		if y[i] < 0 {
			return 0, fmt.Errorf("%w: row %d", ErrBadLabel, i)
		}
		nClasses = max(nClasses, y[i]+1)
	}
	return nClasses, nil
}
