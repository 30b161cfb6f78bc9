// Package export turns grouping results into downloadable tables and stores
// rendered artifacts.
package export

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"expression_atlas/internal/grouping"
)

// Table is the filtered sample table behind a plot: one row per surviving
// sample, in display order.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Columns lists the exported columns for mode: the active dimensions with
// LINE always kept, COMP for methylation tables, the feature, and the
// composite key column for multi-dimension modes.
func Columns(mode grouping.Mode, feature string, methylation bool) []string {
	cols := make([]string, 0, 6)
	for _, d := range grouping.KeyDimensions {
		if mode.Active(d) || d.Column == grouping.CellLine.Column {
			cols = append(cols, d.Column)
		}
	}
	if methylation {
		cols = append(cols, grouping.Compartment.Column)
	}
	cols = append(cols, feature)
	if k := mode.KeyColumn(); k != "" {
		cols = append(cols, k)
	}
	return cols
}

// Build filters ds with req and lays the surviving rows out under Columns.
// Missing measurements are written as empty cells.
func Build(e *grouping.Engine, ds grouping.Dataset, req grouping.Request) (Table, error) {
	members, err := e.Filter(ds, req)
	if err != nil {
		return Table{}, err
	}
	methylation := ds.HasColumn(grouping.Compartment.Column)
	cols := Columns(req.Mode, req.Feature, methylation)
	keyCol := req.Mode.KeyColumn()

	rows := make([][]string, 0, len(members))
	for _, m := range members {
		row := make([]string, len(cols))
		for i, c := range cols {
			switch c {
			case req.Feature:
				if v, ok := ds.Value(m.Row, c); ok && !math.IsNaN(v) {
					row[i] = strconv.FormatFloat(v, 'g', -1, 64)
				}
			case keyCol:
				row[i] = m.Key
			default:
				row[i] = ds.Label(m.Row, c)
			}
		}
		rows = append(rows, row)
	}
	return Table{Columns: cols, Rows: rows}, nil
}

// WriteCSV writes the header and rows as RFC 4180 CSV.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
