package tuning

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/Veraticus/click-thru/internal/common"
	"github.com/Veraticus/click-thru/internal/forest"
	"github.com/Veraticus/click-thru/internal/model"
	"github.com/Veraticus/click-thru/internal/service"
)

// DefaultCandidates are the tree counts searched by default.
var DefaultCandidates = []int{5, 10, 50, 100, 150, 200}

// Config controls the training stage.
type Config struct {
	Progress   io.Writer
	Candidates []int
	Folds      int
	TestSize   float64
	// Seed fixes every forest's randomness.
	Seed uint64
	// SplitSeed fixes the train/test shuffle; zero seeds from the clock.
	SplitSeed uint64
	Workers   int
	MaxDepth  int
	// MinSamplesLeaf is the smallest leaf a split may leave.
	MinSamplesLeaf int
	// DisableBootstrap fits every tree on the whole training part.
	DisableBootstrap bool
}

// DefaultConfig returns the default training configuration.
func DefaultConfig() Config {
	return Config{
		Candidates: append([]int(nil), DefaultCandidates...),
		Folds:      3,
		TestSize:   0.25,
		Seed:       42,
	}
}

// FeatureImportance is one feature's share of the refit forest's impurity decrease.
type FeatureImportance struct {
	Name       string
	Importance float64
}

// Result summarizes a training run.
type Result struct {
	Grid        *GridResult
	TopFeatures []FeatureImportance
	BestTrees   int
	CVScore     float64
	TestScore   float64
	TrainRows   int
	TestRows    int
}

// Trainer predicts the clicked label from every encoded feature.
type Trainer struct {
	cfg Config
}

// NewTrainer creates a trainer.
func NewTrainer(cfg Config) *Trainer {
	return &Trainer{cfg: cfg}
}

// Train splits the table, grid-searches the tree count on the training part,
// refits the best candidate on the whole training part and scores it on the
// held-out part.
func (t *Trainer) Train(ctx context.Context, table *model.EncodedTable) (*Result, error) {
	if table == nil || table.Len() == 0 {
		return nil, common.ErrEmptyTable
	}
	if len(table.Features) == 0 {
		return nil, fmt.Errorf("%w: no feature columns", common.ErrMissingColumn)
	}
	if singleClass(table.Clicked) {
		return nil, fmt.Errorf("%w: every row has %s=%d", common.ErrSingleClass, model.LabelClicked, table.Clicked[0])
	}

	splitSeed := t.cfg.SplitSeed
	if splitSeed == 0 {
		splitSeed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(splitSeed, 0))

	trainIdx, testIdx, err := TrainTestSplit(table.Len(), t.cfg.TestSize, rng)
	if err != nil {
		return nil, err
	}
	trainX, trainY := subset(table.Values, table.Clicked, trainIdx)
	testX, testY := subset(table.Values, table.Clicked, testIdx)

	slog.Info("Training click classifier",
		"train_rows", len(trainIdx),
		"test_rows", len(testIdx),
		"features", len(table.Features),
		"candidates", t.cfg.Candidates,
		"folds", t.cfg.Folds)

	search := &GridSearch{
		Candidates: t.cfg.Candidates,
		Folds:      t.cfg.Folds,
		Workers:    t.cfg.Workers,
		Progress:   t.cfg.Progress,
		// The grid already runs evaluations in parallel.
		NewModel: t.factory(1),
	}

	grid, err := search.Run(ctx, trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("grid search failed: %w", err)
	}

	best := forest.New(t.forestConfig(grid.Best.Param, t.cfg.Workers))
	if err := best.Fit(ctx, trainX, trainY); err != nil {
		return nil, fmt.Errorf("failed to refit best forest: %w", err)
	}

	testScore, err := F1Micro(testY, best.PredictAll(testX))
	if err != nil {
		return nil, err
	}

	importances, err := best.FeatureImportances()
	if err != nil {
		return nil, err
	}

	return &Result{
		Grid:        grid,
		BestTrees:   grid.Best.Param,
		CVScore:     grid.Best.Mean,
		TestScore:   testScore,
		TrainRows:   len(trainIdx),
		TestRows:    len(testIdx),
		TopFeatures: rankFeatures(table.Features, importances),
	}, nil
}

func (t *Trainer) factory(workers int) service.ClassifierFactory {
	return func(trees int) service.Classifier {
		return forest.New(t.forestConfig(trees, workers))
	}
}

func (t *Trainer) forestConfig(trees, workers int) forest.Config {
	return forest.Config{
		Trees:            trees,
		Seed:             t.cfg.Seed,
		Workers:          workers,
		DisableBootstrap: t.cfg.DisableBootstrap,
		Tree: forest.TreeConfig{
			MaxDepth:       t.cfg.MaxDepth,
			MinSamplesLeaf: t.cfg.MinSamplesLeaf,
		},
	}
}

func singleClass(y []int) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}

// rankFeatures orders features by importance, highest first, dropping
// features that never split.
func rankFeatures(names []string, importances []float64) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(names))
	for i, name := range names {
		if importances[i] > 0 {
			out = append(out, FeatureImportance{Name: name, Importance: importances[i]})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Importance > out[b].Importance
	})
	return out
}
