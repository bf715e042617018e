package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/click-thru/internal/cli"
	"github.com/Veraticus/click-thru/internal/tuning"
)

const topFeatureCount = 5

// TrainingLines returns the headline training results.
func TrainingLines(r *tuning.Result) []string {
	return []string{
		fmt.Sprintf("Best number of trees: %d", r.BestTrees),
		fmt.Sprintf("Cross-validated F1 (micro): %.4f", r.CVScore),
	}
}

// FormatTraining renders the grid search outcome.
func (f *Formatter) FormatTraining(r *tuning.Result) string {
	lines := TrainingLines(r)
	if f.Plain {
		return strings.Join(lines, "\n")
	}

	rows := make([][]string, 0, len(r.Grid.Scores))
	for i, s := range r.Grid.Scores {
		marker := ""
		if i == r.Grid.BestIndex {
			marker = cli.SuccessIcon
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Param),
			fmt.Sprintf("%.4f", s.Mean),
			fmt.Sprintf("%.4f", s.Std),
			marker,
		})
	}

	parts := []string{
		cli.BoldStyle.Render(lines[0]),
		cli.BoldStyle.Render(lines[1]),
		cli.SubtleStyle.Render(fmt.Sprintf("Held-out F1 (micro): %.4f on %d emails (trained on %d)", r.TestScore, r.TestRows, r.TrainRows)),
		"",
		cli.RenderTable([]string{"trees", "mean F1", "std", ""}, rows),
	}

	if len(r.TopFeatures) > 0 {
		n := min(topFeatureCount, len(r.TopFeatures))
		featureRows := make([][]string, 0, n)
		for _, fi := range r.TopFeatures[:n] {
			featureRows = append(featureRows, []string{fi.Name, fmt.Sprintf("%.3f", fi.Importance)})
		}
		parts = append(parts, "", cli.RenderTable([]string{"feature", "importance"}, featureRows))
	}

	return cli.RenderBox(cli.TreeIcon+" Random forest", strings.Join(parts, "\n"))
}
