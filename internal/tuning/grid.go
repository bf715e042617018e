package tuning

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"

	"github.com/Veraticus/click-thru/internal/common"
	"github.com/Veraticus/click-thru/internal/service"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// CandidateScore is the cross-validation outcome of one hyperparameter value.
type CandidateScore struct {
	FoldScores []float64
	Param      int
	Mean       float64
	Std        float64
}

// GridResult holds every candidate's score and the winner.
type GridResult struct {
	Scores    []CandidateScore
	Best      CandidateScore
	BestIndex int
}

// GridSearch evaluates each candidate with stratified k-fold cross-validation
// scored by F1Micro.
type GridSearch struct {
	// NewModel builds an unfitted classifier for a candidate value.
	NewModel service.ClassifierFactory
	// Progress receives a progress bar when set.
	Progress   io.Writer
	Candidates []int
	Folds      int
	// Workers bounds concurrent fold evaluations; zero means GOMAXPROCS.
	Workers int
}

type evaluation struct {
	candidate int
	fold      int
}

// Run fits and scores every (candidate, fold) pair concurrently. Each pair
// writes its own slot, so the result does not depend on scheduling. The best
// candidate has the highest mean score; ties go to the earlier candidate.
func (g *GridSearch) Run(ctx context.Context, x [][]float64, y []int) (*GridResult, error) {
	if len(g.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", common.ErrInvalidConfig)
	}
	if g.NewModel == nil {
		return nil, fmt.Errorf("%w: no model factory", common.ErrInvalidConfig)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", common.ErrInvalidConfig, len(x), len(y))
	}

	folds, err := StratifiedKFold(y, g.Folds)
	if err != nil {
		return nil, err
	}

	scores := make([][]float64, len(g.Candidates))
	jobs := make([]evaluation, 0, len(g.Candidates)*len(folds))
	for c := range g.Candidates {
		scores[c] = make([]float64, len(folds))
		for f := range folds {
			jobs = append(jobs, evaluation{candidate: c, fold: f})
		}
	}

	bar := g.newProgressBar(len(jobs))

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, job := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			score, err := g.evaluate(ctx, x, y, g.Candidates[job.candidate], folds[job.fold])
			if err != nil {
				return fmt.Errorf("candidate %d fold %d: %w", g.Candidates[job.candidate], job.fold+1, err)
			}
			scores[job.candidate][job.fold] = score

			if bar != nil {
				if err := bar.Add(1); err != nil {
					slog.Warn("Failed to update progress bar", "error", err)
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &GridResult{Scores: make([]CandidateScore, len(g.Candidates))}
	for c, param := range g.Candidates {
		mean, std := meanStd(scores[c])
		result.Scores[c] = CandidateScore{
			Param:      param,
			FoldScores: scores[c],
			Mean:       mean,
			Std:        std,
		}
		if mean > result.Scores[result.BestIndex].Mean {
			result.BestIndex = c
		}
	}
	result.Best = result.Scores[result.BestIndex]

	slog.Debug("Grid search finished",
		"candidates", len(g.Candidates),
		"folds", len(folds),
		"best_param", result.Best.Param,
		"best_score", result.Best.Mean)

	return result, nil
}

func (g *GridSearch) evaluate(ctx context.Context, x [][]float64, y []int, param int, fold Fold) (float64, error) {
	trainX, trainY := subset(x, y, fold.Train)
	testX, testY := subset(x, y, fold.Test)

	model := g.NewModel(param)
	if err := model.Fit(ctx, trainX, trainY); err != nil {
		return 0, err
	}

	pred := make([]int, len(testX))
	for i, row := range testX {
		pred[i] = model.Predict(row)
	}
	return F1Micro(testY, pred)
}

func (g *GridSearch) newProgressBar(total int) *progressbar.ProgressBar {
	if g.Progress == nil {
		return nil
	}

	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(g.Progress),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Cross-validating forests...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(g.Progress); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func subset(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	sx := make([][]float64, len(idx))
	sy := make([]int, len(idx))
	for i, j := range idx {
		sx[i] = x[j]
		sy[i] = y[j]
	}
	return sx, sy
}

func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}

	var sum float64
	for _, s := range v {
		sum += s
	}
	mean := sum / float64(len(v))

	var sq float64
	for _, s := range v {
		sq += (s - mean) * (s - mean)
	}
	return mean, math.Sqrt(sq / float64(len(v)))
}
