// Package report computes open and click-through rates over the encoded table.
package report

import (
	"fmt"
	"sort"

	"github.com/Veraticus/click-thru/internal/common"
	"github.com/Veraticus/click-thru/internal/model"
)

// Summary holds the aggregate rates. Rates are fractions in [0, 1].
type Summary struct {
	Total           int
	Opened          int
	Clicked         int
	OpenRate        float64
	ClickRate       float64
	ClickToOpenRate float64
}

// Segment is the rates of the emails sharing one category value.
type Segment struct {
	Value   string
	Summary Summary
}

// Breakdown is the per-value segmentation of one categorical attribute.
type Breakdown struct {
	Column   string
	Segments []Segment
}

// Compute sums the opened and clicked labels. An empty table is an error
// rather than a division by zero.
func Compute(t *model.EncodedTable) (Summary, error) {
	if t == nil || t.Len() == 0 {
		return Summary{}, common.ErrEmptyTable
	}

	rows := make([]int, t.Len())
	for i := range rows {
		rows[i] = i
	}
	return summarize(t, rows), nil
}

// ComputeBreakdown segments the table by the raw values of column. Rows with
// an empty value are grouped under "".
func ComputeBreakdown(t *model.EncodedTable, column string) (Breakdown, error) {
	if t == nil || t.Len() == 0 {
		return Breakdown{}, common.ErrEmptyTable
	}

	raw, ok := t.Raw[column]
	if !ok {
		return Breakdown{}, fmt.Errorf("%w: %q is not an encoded attribute", common.ErrMissingColumn, column)
	}

	byValue := make(map[string][]int)
	for i, v := range raw {
		byValue[v] = append(byValue[v], i)
	}

	values := make([]string, 0, len(byValue))
	for v := range byValue {
		values = append(values, v)
	}
	sort.Strings(values)

	b := Breakdown{Column: column, Segments: make([]Segment, 0, len(values))}
	for _, v := range values {
		b.Segments = append(b.Segments, Segment{
			Value:   v,
			Summary: summarize(t, byValue[v]),
		})
	}
	return b, nil
}

func summarize(t *model.EncodedTable, rows []int) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		s.Opened += t.Opened[r]
		s.Clicked += t.Clicked[r]
	}

	if s.Total > 0 {
		s.OpenRate = float64(s.Opened) / float64(s.Total)
		s.ClickRate = float64(s.Clicked) / float64(s.Total)
	}
	if s.Opened > 0 {
		s.ClickToOpenRate = float64(s.Clicked) / float64(s.Opened)
	}
	return s
}

// Percent renders a fraction as a percentage with two decimals.
func Percent(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}
