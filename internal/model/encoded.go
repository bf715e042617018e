package model

// Label column names appended by the encoder.
const (
	LabelOpened  = "opened"
	LabelClicked = "clicked"
)

// EncodedTable is the feature table produced from a Dataset.
// Rows follow the email table order; one row per email identifier.
type EncodedTable struct {
	index map[string]int

	// Raw keeps each row's category value per categorical column, used by
	// per-category reporting.
	Raw map[string][]string

	// Groups maps a categorical column to the indices of its indicator
	// columns within Features.
	Groups map[string][]int

	IDs      []string
	Features []string
	Values   [][]float64
	Opened   []int
	Clicked  []int

	// Events whose identifier had no matching email.
	UnmatchedOpened  int
	UnmatchedClicked int
}

// NewEncodedTable creates an empty table for the given identifiers.
func NewEncodedTable(ids []string, features []string) *EncodedTable {
	t := &EncodedTable{
		index:    make(map[string]int, len(ids)),
		Raw:      make(map[string][]string),
		Groups:   make(map[string][]int),
		IDs:      ids,
		Features: features,
		Values:   make([][]float64, len(ids)),
		Opened:   make([]int, len(ids)),
		Clicked:  make([]int, len(ids)),
	}
	for i, id := range ids {
		t.index[id] = i
		t.Values[i] = make([]float64, len(features))
	}
	return t
}

// Row returns the position of id, or false when the table has no such row.
func (t *EncodedTable) Row(id string) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

// Len returns the number of rows.
func (t *EncodedTable) Len() int {
	return len(t.IDs)
}

// FeatureIndex returns the position of a feature column, or -1.
func (t *EncodedTable) FeatureIndex(name string) int {
	for i, f := range t.Features {
		if f == name {
			return i
		}
	}
	return -1
}
