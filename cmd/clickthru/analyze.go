package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/click-thru/internal/cli"
	"github.com/Veraticus/click-thru/internal/common"
	"github.com/Veraticus/click-thru/internal/config"
	"github.com/Veraticus/click-thru/internal/features"
	"github.com/Veraticus/click-thru/internal/pipeline"
	"github.com/Veraticus/click-thru/internal/report"
	"github.com/Veraticus/click-thru/internal/service"
	"github.com/Veraticus/click-thru/internal/storage"
	"github.com/Veraticus/click-thru/internal/tuning"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const farewell = "Skipping the random forest. Bye!"

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report open and click rates, then optionally train a click model",
		Long: `Load the email, opened and clicked tables, one-hot encode the email
attributes and report the share of emails that were opened and clicked.

Afterwards a random forest can be tuned with a cross-validated grid search over
the number of trees. In the default prompt mode you are asked first.

Examples:
  # Read the CSV files in ./data
  clickthru analyze

  # Read another directory and train without asking
  clickthru analyze --data-dir ~/campaigns/june --train always

  # Read the tables from a SQLite database
  clickthru analyze --source sqlite --sqlite-path ./campaign.db

  # Per-attribute rates, no training
  clickthru analyze --breakdowns --train never`,
		RunE: runAnalyze,
	}

	defaults := tuning.DefaultConfig()

	// Data flags
	cmd.Flags().String("source", config.SourceCSV, "Table source (csv, sqlite)")
	cmd.Flags().String("data-dir", storage.DefaultDataDir, "Directory holding the CSV files")
	cmd.Flags().String("sqlite-path", "", "SQLite database holding the tables")

	// Training flags
	cmd.Flags().String("train", config.TrainPrompt, "Training mode (prompt, always, never)")
	cmd.Flags().IntSlice("candidates", defaults.Candidates, "Numbers of trees to search")
	cmd.Flags().Int("folds", defaults.Folds, "Cross-validation folds")
	cmd.Flags().Float64("test-size", defaults.TestSize, "Share of emails held out for the final score")
	cmd.Flags().Uint64("seed", defaults.Seed, "Seed for the forests")
	cmd.Flags().Uint64("split-seed", 0, "Seed for the train/test split (0 picks one from the clock)")
	cmd.Flags().Int("workers", 0, "Parallel fits (0 uses every CPU)")
	cmd.Flags().Int("max-depth", 0, "Maximum tree depth (0 is unlimited)")
	cmd.Flags().Int("min-samples-leaf", 1, "Smallest number of emails in a leaf")
	cmd.Flags().Bool("bootstrap", true, "Fit each tree on a bootstrap sample")

	// Output flags
	cmd.Flags().Bool("plain", false, "Print plain lines instead of styled boxes")
	cmd.Flags().Bool("breakdowns", false, "Print rates per attribute value")

	_ = viper.BindPFlag("data.source", cmd.Flags().Lookup("source"))
	_ = viper.BindPFlag("data.dir", cmd.Flags().Lookup("data-dir"))
	_ = viper.BindPFlag("data.sqlite_path", cmd.Flags().Lookup("sqlite-path"))
	_ = viper.BindPFlag("train.mode", cmd.Flags().Lookup("train"))
	_ = viper.BindPFlag("train.candidates", cmd.Flags().Lookup("candidates"))
	_ = viper.BindPFlag("train.folds", cmd.Flags().Lookup("folds"))
	_ = viper.BindPFlag("train.test_size", cmd.Flags().Lookup("test-size"))
	_ = viper.BindPFlag("train.seed", cmd.Flags().Lookup("seed"))
	_ = viper.BindPFlag("train.split_seed", cmd.Flags().Lookup("split-seed"))
	_ = viper.BindPFlag("train.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("train.max_depth", cmd.Flags().Lookup("max-depth"))
	_ = viper.BindPFlag("train.min_samples_leaf", cmd.Flags().Lookup("min-samples-leaf"))
	_ = viper.BindPFlag("train.bootstrap", cmd.Flags().Lookup("bootstrap"))

	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	plain, _ := cmd.Flags().GetBool("plain")
	breakdowns, _ := cmd.Flags().GetBool("breakdowns")

	interruptHandler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx, stop := interruptHandler.HandleInterrupts(cmd.Context())
	defer stop()

	// Tag every log line of this run.
	logger := slog.Default()
	slog.SetDefault(logger.With("run_id", uuid.NewString()))
	defer slog.SetDefault(logger)

	source, closeSource, err := openSource(cfg.Data)
	if err != nil {
		return err
	}
	defer closeSource()

	trainCfg := cfg.Tuning()
	trainCfg.Progress = cmd.ErrOrStderr()

	runner := &pipeline.Runner{
		Source:     source,
		Encoder:    features.NewEncoder(),
		Trainer:    tuning.NewTrainer(trainCfg),
		Formatter:  &report.Formatter{Plain: plain},
		Out:        cmd.OutOrStdout(),
		Breakdowns: breakdowns,
	}
	switch cfg.Train.Mode {
	case config.TrainPrompt:
		runner.Decide = pipeline.Prompt(cmd.InOrStdin(), cmd.OutOrStdout())
	case config.TrainAlways:
		runner.Decide = pipeline.Always
	}

	if !plain {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Click-through analysis")); err != nil {
			return err
		}
	}

	common.LogInfo(ctx, "Starting click-through analysis", common.Fields{
		"source":     cfg.Data.Source,
		"train_mode": cfg.Train.Mode,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		if interruptHandler.WasInterrupted() {
			return fmt.Errorf("analysis interrupted: %w", err)
		}
		return err
	}

	switch {
	case result.TrainingDeclined:
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(farewell)); err != nil {
			return err
		}
	case result.Training != nil:
		done := fmt.Sprintf("Training complete: %d trees", result.Training.BestTrees)
		if _, err := fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(done)); err != nil {
			return err
		}
	}

	common.LogDebug(ctx, "Analysis complete", common.Fields{
		"emails":            result.Summary.Total,
		"unmatched_opened":  result.Table.UnmatchedOpened,
		"unmatched_clicked": result.Table.UnmatchedClicked,
		"trained":           result.Training != nil,
	})

	return nil
}

// openSource builds the configured table source and its cleanup.
func openSource(data config.DataConfig) (service.TableSource, func(), error) {
	if data.Source == config.SourceSQLite {
		src, err := storage.NewSQLiteSource(data.SQLitePath)
		if err != nil {
			return nil, nil, common.NewUserError("could not open the campaign database", err)
		}
		return src, func() {
			if closeErr := src.Close(); closeErr != nil {
				slog.Warn("Failed to close database", "error", closeErr)
			}
		}, nil
	}

	src := storage.NewCSVSource(data.Dir)
	src.EmailsFile = data.Emails
	src.OpenedFile = data.Opened
	src.ClickedFile = data.Clicked
	return src, func() {}, nil
}
