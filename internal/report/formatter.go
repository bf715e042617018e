package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/click-thru/internal/cli"
)

// Formatter renders summaries for the terminal.
type Formatter struct {
	// Plain disables the boxed layout, leaving only the rate lines.
	Plain bool
}

// NewFormatter creates a formatter with the boxed layout.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// RateLines returns the two headline sentences.
func RateLines(s Summary) []string {
	return []string{
		fmt.Sprintf("%s of the emails were opened", Percent(s.OpenRate)),
		fmt.Sprintf("%s of the emails were clicked", Percent(s.ClickRate)),
	}
}

// FormatSummary renders the headline rates.
func (f *Formatter) FormatSummary(s Summary) string {
	lines := RateLines(s)
	if f.Plain {
		return strings.Join(lines, "\n")
	}

	details := []string{
		cli.BoldStyle.Render(lines[0]),
		cli.BoldStyle.Render(lines[1]),
		"",
		cli.SubtleStyle.Render(fmt.Sprintf("%d emails, %d opened, %d clicked", s.Total, s.Opened, s.Clicked)),
		cli.SubtleStyle.Render(fmt.Sprintf("Click-to-open rate: %s", Percent(s.ClickToOpenRate))),
	}
	return cli.RenderBox(cli.ChartIcon+" Email engagement", strings.Join(details, "\n"))
}

// FormatBreakdown renders one attribute's segments as a table.
func (f *Formatter) FormatBreakdown(b Breakdown) string {
	header := []string{b.Column, "emails", "opened", "clicked"}
	rows := make([][]string, 0, len(b.Segments))
	for _, seg := range b.Segments {
		value := seg.Value
		if value == "" {
			value = "(missing)"
		}
		rows = append(rows, []string{
			value,
			strconv.Itoa(seg.Summary.Total),
			Percent(seg.Summary.OpenRate),
			Percent(seg.Summary.ClickRate),
		})
	}

	if f.Plain {
		var sb strings.Builder
		sb.WriteString(strings.Join(header, "\t"))
		for _, row := range rows {
			sb.WriteString("\n")
			sb.WriteString(strings.Join(row, "\t"))
		}
		return sb.String()
	}
	return cli.RenderTable(header, rows)
}
