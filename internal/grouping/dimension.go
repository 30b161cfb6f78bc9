// Package grouping turns a labelled sample table into ordered, colored groups
// of measurement values for box plots.
package grouping

import "strings"

// Dimension is a categorical axis of the sample table with a fixed display
// order over its legal values.
type Dimension struct {
	Name   string
	Column string
	Order  []string
}

var (
	Age = Dimension{Name: "Age", Column: "AGE", Order: []string{"Young", "Adult", "Old"}}
	Sex = Dimension{Name: "Sex", Column: "SEX", Order: []string{"Female", "Male"}}
	// CellLine is labelled LINE in the source tables.
	CellLine = Dimension{Name: "CellLine", Column: "LINE", Order: []string{"Astrocytes", "Neurons", "Microglia"}}
	// Compartment only exists in methylation tables. It splits results into
	// panels and is never filtered.
	Compartment = Dimension{Name: "CompartmentType", Column: "COMP", Order: []string{"modCG", "mCG", "hmCG"}}
)

// KeyDimensions lists the dimensions that can take part in a composite key,
// in key order.
var KeyDimensions = []Dimension{Age, Sex, CellLine}

// Rank returns the position of value in the dimension order. Values outside
// the order rank after every legal value.
func (d Dimension) Rank(value string) int {
	for i, v := range d.Order {
		if v == value {
			return i
		}
	}
	return len(d.Order)
}

// Legal reports whether value is one of the dimension's declared values.
func (d Dimension) Legal(value string) bool {
	return d.Rank(value) < len(d.Order)
}

// DimensionByName resolves a dimension from its name or column label,
// case-insensitively.
func DimensionByName(name string) (Dimension, bool) {
	for _, d := range []Dimension{Age, Sex, CellLine, Compartment} {
		if strings.EqualFold(d.Name, name) || strings.EqualFold(d.Column, name) {
			return d, true
		}
	}
	return Dimension{}, false
}
