// Package features turns the loaded tables into a one-hot encoded feature table.
package features

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/Veraticus/click-thru/internal/common"
	"github.com/Veraticus/click-thru/internal/model"
)

// Encoder one-hot encodes categorical email attributes and overlays the
// opened/clicked labels from the event tables.
//
// The join is an inner overlay keyed by identifier: every email row is kept,
// event rows whose identifier has no email are discarded and counted.
type Encoder struct {
	IDColumn     string
	Categoricals []model.Categorical
}

// NewEncoder creates an encoder for the default email schema.
func NewEncoder() *Encoder {
	return &Encoder{
		IDColumn:     model.ColumnEmailID,
		Categoricals: model.DefaultCategoricals(),
	}
}

// Encode builds the feature table. Numeric descriptive columns come first in
// source order, followed by the indicator columns of each categorical
// attribute with category values sorted.
func (e *Encoder) Encode(ctx context.Context, ds *model.Dataset) (*model.EncodedTable, error) {
	if ds == nil || ds.Emails == nil || ds.Opened == nil || ds.Clicked == nil {
		return nil, fmt.Errorf("%w: dataset is incomplete", common.ErrNotFound)
	}

	emails := ds.Emails
	ids, err := e.identifiers(emails)
	if err != nil {
		return nil, err
	}

	categoricalIdx := make([]int, len(e.Categoricals))
	skip := map[int]bool{}
	idIdx, _ := emails.ColumnIndex(e.IDColumn)
	skip[idIdx] = true
	for i, c := range e.Categoricals {
		idx, err := emails.ColumnIndex(c.Column)
		if err != nil {
			return nil, err
		}
		categoricalIdx[i] = idx
		skip[idx] = true
	}

	numericIdx := numericColumns(emails, skip)

	// Sorted distinct values per categorical column.
	levels := make([][]string, len(e.Categoricals))
	for i, idx := range categoricalIdx {
		levels[i] = distinctValues(emails, idx)
	}

	features := make([]string, 0, len(numericIdx))
	for _, idx := range numericIdx {
		features = append(features, emails.Columns[idx])
	}
	offsets := make([]int, len(e.Categoricals))
	for i, c := range e.Categoricals {
		offsets[i] = len(features)
		for _, v := range levels[i] {
			features = append(features, c.IndicatorName(v))
		}
	}

	table := model.NewEncodedTable(ids, features)

	for i, c := range e.Categoricals {
		group := make([]int, len(levels[i]))
		for j := range group {
			group[j] = offsets[i] + j
		}
		table.Groups[c.Column] = group
		table.Raw[c.Column] = make([]string, emails.Len())
	}

	for r, row := range emails.Rows {
		values := table.Values[r]
		for f, idx := range numericIdx {
			// Already checked to parse.
			values[f], _ = strconv.ParseFloat(row[idx], 64)
		}

		for i, c := range e.Categoricals {
			v := row[categoricalIdx[i]]
			table.Raw[c.Column][r] = v
			if v == "" {
				continue
			}
			pos := sort.SearchStrings(levels[i], v)
			values[offsets[i]+pos] = 1
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table.UnmatchedOpened, err = e.overlay(table, ds.Opened, table.Opened)
	if err != nil {
		return nil, err
	}
	table.UnmatchedClicked, err = e.overlay(table, ds.Clicked, table.Clicked)
	if err != nil {
		return nil, err
	}

	if table.UnmatchedOpened > 0 || table.UnmatchedClicked > 0 {
		slog.Warn("Discarded events with no matching email",
			"opened", table.UnmatchedOpened,
			"clicked", table.UnmatchedClicked)
	}

	slog.Debug("Encoded email table",
		"rows", table.Len(),
		"features", len(table.Features),
		"numeric", len(numericIdx))

	return table, nil
}

func (e *Encoder) identifiers(emails *model.Table) ([]string, error) {
	ids, err := emails.Column(e.IDColumn)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(ids))
	for i, id := range ids {
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %s %q on rows %d and %d", common.ErrDuplicateID, e.IDColumn, id, prev+1, i+1)
		}
		seen[id] = i
	}
	return ids, nil
}

// overlay sets label[row] = 1 for every event identifier present in the
// table and returns how many event rows matched no email.
func (e *Encoder) overlay(table *model.EncodedTable, events *model.Table, label []int) (int, error) {
	ids, err := events.Column(e.IDColumn)
	if err != nil {
		return 0, err
	}

	unmatched := 0
	for _, id := range ids {
		row, ok := table.Row(id)
		if !ok {
			unmatched++
			continue
		}
		label[row] = 1
	}
	return unmatched, nil
}

// numericColumns returns the columns outside skip whose every value parses
// as a finite number. NaN and infinities keep a column descriptive.
func numericColumns(t *model.Table, skip map[int]bool) []int {
	var out []int
	for idx := range t.Columns {
		if skip[idx] || t.Len() == 0 {
			continue
		}

		numeric := true
		for _, row := range t.Rows {
			v, err := strconv.ParseFloat(row[idx], 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				numeric = false
				break
			}
		}
		if numeric {
			out = append(out, idx)
		}
	}
	return out
}

func distinctValues(t *model.Table, idx int) []string {
	set := make(map[string]struct{})
	for _, row := range t.Rows {
		if row[idx] != "" {
			set[row[idx]] = struct{}{}
		}
	}

	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
