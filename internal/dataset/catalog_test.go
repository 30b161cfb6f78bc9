package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogSuggest(t *testing.T) {
	c := NewCatalog([]string{"Shh", "Gfap", "Gad1", "Gad2", "Olig2", "Aldh1l1", " ", "Gfap"})
	assert.Equal(t, 6, c.Len())
	assert.True(t, c.Contains("Gad1"))
	assert.False(t, c.Contains("gad1"))

	assert.Equal(t, []string{"Gad1", "Gad2"}, c.Suggest("ga", "", 10))
	assert.Equal(t, []string{"Gad2", "Olig2"}, c.Suggest("2", "ends", 10))
	assert.Equal(t, []string{"Aldh1l1", "Gad1", "Gad2", "Gfap"}, c.Suggest("A", "contains", 10))
	assert.Equal(t, []string{"Aldh1l1", "Gad1"}, c.Suggest("", "", 2))
	assert.Empty(t, c.Suggest("zzz", "", 10))
}

func TestTableAccessors(t *testing.T) {
	table := NewTable(2)
	table.SetLabels("AGE", []string{"Old", "Young"})
	table.SetValues("Shh", []float64{1, math.NaN()})
	table.SetValues("Gfap", []float64{2, 3})

	assert.Equal(t, "Young", table.Label(1, "AGE"))
	assert.Equal(t, "", table.Label(5, "AGE"))
	assert.Equal(t, "", table.Label(0, "SEX"))

	_, ok := table.Value(1, "Shh")
	assert.False(t, ok)
	v, ok := table.Value(0, "Shh")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	assert.Equal(t, []string{"Shh", "Gfap"}, table.Features())
	assert.Equal(t, []string{"Gfap", "Shh"}, table.SortedFeatures())
}
