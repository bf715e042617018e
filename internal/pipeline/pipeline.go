// Package pipeline runs the analysis stages in order: load, encode, report
// and, when the decision allows it, train.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/click-thru/internal/cli"
	"github.com/Veraticus/click-thru/internal/features"
	"github.com/Veraticus/click-thru/internal/model"
	"github.com/Veraticus/click-thru/internal/report"
	"github.com/Veraticus/click-thru/internal/service"
	"github.com/Veraticus/click-thru/internal/tuning"
)

// TrainingPrompt is the question asked before the training stage.
const TrainingPrompt = "Train a random forest to predict clicks? This can take a while."

// Runner wires the stages together.
type Runner struct {
	Source    service.TableSource
	Encoder   *features.Encoder
	Trainer   *tuning.Trainer
	Formatter *report.Formatter
	// Decide gates the training stage; nil skips it.
	Decide service.DecisionFunc
	Out    io.Writer
	// Breakdowns adds per-category rates to the report.
	Breakdowns bool
}

// Result is everything a run produced.
type Result struct {
	Table      *model.EncodedTable
	Training   *tuning.Result
	Breakdowns []report.Breakdown
	Summary    report.Summary
	// TrainingDeclined is set when Decide returned false.
	TrainingDeclined bool
}

// Run executes the pipeline.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ds, err := r.Source.LoadTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}

	table, err := r.Encoder.Encode(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode emails: %w", err)
	}

	result := &Result{Table: table}

	result.Summary, err = report.Compute(table)
	if err != nil {
		return nil, err
	}
	if err := r.write(r.Formatter.FormatSummary(result.Summary)); err != nil {
		return nil, err
	}

	if r.Breakdowns {
		for _, c := range r.Encoder.Categoricals {
			b, err := report.ComputeBreakdown(table, c.Column)
			if err != nil {
				return nil, err
			}
			result.Breakdowns = append(result.Breakdowns, b)
			if err := r.write(r.Formatter.FormatBreakdown(b)); err != nil {
				return nil, err
			}
		}
	}

	if r.Decide == nil {
		return result, nil
	}

	proceed, err := r.Decide(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm training: %w", err)
	}
	if !proceed {
		slog.Debug("Training declined")
		result.TrainingDeclined = true
		return result, nil
	}

	result.Training, err = r.Trainer.Train(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}
	if err := r.write(r.Formatter.FormatTraining(result.Training)); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *Runner) write(s string) error {
	if _, err := fmt.Fprintln(r.Out, s); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Always is a decision that always trains.
func Always(context.Context) (bool, error) { return true, nil }

// Never is a decision that never trains.
func Never(context.Context) (bool, error) { return false, nil }

// Prompt asks on w and reads the answer from in.
func Prompt(in io.Reader, w io.Writer) service.DecisionFunc {
	return func(ctx context.Context) (bool, error) {
		return cli.Confirm(ctx, in, w, TrainingPrompt)
	}
}
