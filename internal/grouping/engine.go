package grouping

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Dataset is the read-only sample table the engine groups. Implementations
// must be safe for concurrent reads.
type Dataset interface {
	Len() int
	// Label returns the categorical value of row for a dimension column, or
	// "" when missing.
	Label(row int, column string) string
	// Value returns the measurement of feature for row; ok is false for
	// missing values.
	Value(row int, feature string) (v float64, ok bool)
	HasFeature(feature string) bool
	HasColumn(column string) bool
}

// Colorer assigns a display color to a composite key. fallback reports that
// the key had no entry and a default color was substituted.
type Colorer interface {
	Resolve(key string) (color string, fallback bool)
}

// Filters holds the allowed values per dimension column. A dimension with no
// entry allows every legal value; an entry with no values allows none.
type Filters map[string][]string

// Set replaces the allowed values of d.
func (f Filters) Set(d Dimension, values ...string) Filters {
	f[d.Column] = append([]string{}, values...)
	return f
}

func (f Filters) allows(d Dimension, value string) bool {
	allowed, ok := f[d.Column]
	if !ok {
		return true
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// Request describes one grouping computation.
type Request struct {
	Mode    Mode
	Filters Filters
	Feature string
}

// Member is a row that survived filtering, in normalized order.
type Member struct {
	Row    int
	Key    string
	Labels []string
}

// Group is one box-plot trace.
type Group struct {
	Key           string
	Labels        []string
	Values        []float64
	Rows          []int
	Color         string
	FallbackColor bool
}

// Panel holds the groups of one compartment of a methylation table.
type Panel struct {
	Compartment string
	Groups      []Group
}

type Engine struct {
	colors Colorer
}

// NewEngine returns an engine coloring groups with c. A nil Colorer leaves
// colors empty.
func NewEngine(c Colorer) *Engine {
	return &Engine{colors: c}
}

// Filter validates req and returns the surviving rows of ds with their
// composite keys, ordered by (CellLine, Sex, Age[, CompartmentType]).
func (e *Engine) Filter(ds Dataset, req Request) ([]Member, error) {
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(req.Mode))
	}
	if !ds.HasFeature(req.Feature) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFeature, req.Feature)
	}

	active := req.Mode.Dimensions()
	members := make([]Member, 0, ds.Len())
	for _, row := range Order(ds) {
		labels := make([]string, 0, len(active))
		pass := true
		for _, d := range active {
			v := ds.Label(row, d.Column)
			if !d.Legal(v) || !req.Filters.allows(d, v) {
				pass = false
				break
			}
			labels = append(labels, v)
		}
		if pass {
			members = append(members, Member{Row: row, Key: strings.Join(labels, " "), Labels: labels})
		}
	}
	return members, nil
}

// Compute returns the groups for req in first-seen key order. Empty filter
// selections and empty results yield an empty slice, not an error.
func (e *Engine) Compute(ds Dataset, req Request) ([]Group, error) {
	members, err := e.Filter(ds, req)
	if err != nil {
		return nil, err
	}
	return e.partition(ds, req.Feature, members), nil
}

// ComputePanels splits the result by CompartmentType, one panel per
// compartment in dimension order, each partitioned on its own.
func (e *Engine) ComputePanels(ds Dataset, req Request) ([]Panel, error) {
	if !ds.HasColumn(Compartment.Column) {
		return nil, fmt.Errorf("%w: %s", ErrMissingDimension, Compartment.Column)
	}
	members, err := e.Filter(ds, req)
	if err != nil {
		return nil, err
	}
	panels := make([]Panel, 0, len(Compartment.Order))
	for _, comp := range Compartment.Order {
		subset := make([]Member, 0, len(members)/len(Compartment.Order)+1)
		for _, m := range members {
			if ds.Label(m.Row, Compartment.Column) == comp {
				subset = append(subset, m)
			}
		}
		panels = append(panels, Panel{Compartment: comp, Groups: e.partition(ds, req.Feature, subset)})
	}
	return panels, nil
}

func (e *Engine) partition(ds Dataset, feature string, members []Member) []Group {
	groups := make([]Group, 0)
	index := make(map[string]int)
	for _, m := range members {
		i, ok := index[m.Key]
		if !ok {
			g := Group{Key: m.Key, Labels: m.Labels, Values: []float64{}}
			if e.colors != nil {
				g.Color, g.FallbackColor = e.colors.Resolve(m.Key)
			}
			i = len(groups)
			index[m.Key] = i
			groups = append(groups, g)
		}
		groups[i].Rows = append(groups[i].Rows, m.Row)
		if v, ok := ds.Value(m.Row, feature); ok && !math.IsNaN(v) {
			groups[i].Values = append(groups[i].Values, v)
		}
	}
	return groups
}

// Order returns the row indices of ds sorted by CellLine, Sex, Age and, for
// methylation tables, CompartmentType, each by its declared order. The sort
// is stable so ties keep their file order.
func Order(ds Dataset) []int {
	dims := []Dimension{CellLine, Sex, Age}
	if ds.HasColumn(Compartment.Column) {
		dims = append(dims, Compartment)
	}
	n := ds.Len()
	ranks := make([][]int, n)
	idx := make([]int, n)
	for row := 0; row < n; row++ {
		idx[row] = row
		r := make([]int, len(dims))
		for j, d := range dims {
			r[j] = d.Rank(ds.Label(row, d.Column))
		}
		ranks[row] = r
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := ranks[idx[a]], ranks[idx[b]]
		for j := range ra {
			if ra[j] != rb[j] {
				return ra[j] < rb[j]
			}
		}
		return false
	})
	return idx
}
