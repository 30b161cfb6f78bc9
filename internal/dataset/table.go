// Package dataset loads labelled expression and methylation tables through
// DuckDB and serves them to the grouping engine.
package dataset

import (
	"math"
	"sort"
)

// Table is an immutable column-oriented sample table: one label column per
// dimension and one numeric column per gene. Missing values are NaN.
type Table struct {
	n        int
	labels   map[string][]string
	values   map[string][]float64
	features []string
}

// NewTable returns an empty table of n rows.
func NewTable(n int) *Table {
	return &Table{
		n:      n,
		labels: make(map[string][]string),
		values: make(map[string][]float64),
	}
}

// SetLabels attaches a dimension column. It must only be called while the
// table is being built.
func (t *Table) SetLabels(column string, labels []string) {
	t.labels[column] = labels
}

// SetValues attaches a feature column. It must only be called while the
// table is being built.
func (t *Table) SetValues(feature string, values []float64) {
	if _, ok := t.values[feature]; !ok {
		t.features = append(t.features, feature)
	}
	t.values[feature] = values
}

func (t *Table) Len() int { return t.n }

func (t *Table) Label(row int, column string) string {
	col, ok := t.labels[column]
	if !ok || row < 0 || row >= len(col) {
		return ""
	}
	return col[row]
}

func (t *Table) Value(row int, feature string) (float64, bool) {
	col, ok := t.values[feature]
	if !ok || row < 0 || row >= len(col) {
		return 0, false
	}
	v := col[row]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func (t *Table) HasFeature(feature string) bool {
	_, ok := t.values[feature]
	return ok
}

func (t *Table) HasColumn(column string) bool {
	_, ok := t.labels[column]
	return ok
}

// Features returns the feature names in column order.
func (t *Table) Features() []string {
	return append([]string(nil), t.features...)
}

// SortedFeatures returns the feature names sorted.
func (t *Table) SortedFeatures() []string {
	out := t.Features()
	sort.Strings(out)
	return out
}
