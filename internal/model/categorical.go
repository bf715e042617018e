package model

// Categorical names a column to one-hot encode and the prefix used for its
// indicator columns.
type Categorical struct {
	Column string
	Prefix string
}

// DefaultCategoricals returns the attributes encoded by default.
func DefaultCategoricals() []Categorical {
	return []Categorical{
		{Column: ColumnEmailText, Prefix: "text"},
		{Column: ColumnEmailVersion, Prefix: "version"},
		{Column: ColumnWeekday, Prefix: "weekday"},
		{Column: ColumnUserCountry, Prefix: "country"},
	}
}

// IndicatorName returns the column name for one category value.
func (c Categorical) IndicatorName(value string) string {
	return c.Prefix + "_" + value
}
