package model

import (
	"fmt"

	"github.com/Veraticus/click-thru/internal/common"
)

// Column names shared by the three source tables.
const (
	ColumnEmailID      = "email_id"
	ColumnEmailText    = "email_text"
	ColumnEmailVersion = "email_version"
	ColumnWeekday      = "weekday"
	ColumnUserCountry  = "user_country"
)

// Table is a delimited table held in memory with its header.
// Cells keep the textual form they were read with.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q in table %s", common.ErrMissingColumn, name, t.Name)
}

// Column returns every value of the named column in row order.
func (t *Table) Column(name string) ([]string, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}

	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Dataset groups the three tables the analysis reads.
type Dataset struct {
	Emails  *Table
	Opened  *Table
	Clicked *Table
}
