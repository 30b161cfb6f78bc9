package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expression_atlas/internal/grouping"
)

const expressionCSV = `SAMPLE,AGE,SEX,LINE,Shh,Gfap,Olig2
s1,Old,Male,Neurons,1.2,0.5,NA
s2,Old,Male,Neurons,1.4,0.6,2.0
s3,Young,Female,Astrocytes,3.0,9.5,1.0
s4,Adult,Female,Microglia,2.2,0.1,0.5
`

const methylationCSV = `AGE,SEX,LINE,COMP,Shh
Old,Male,Neurons,hmCG,80.5
Old,Male,Neurons,mCG,40.25
Young,Male,Neurons,modCG,10.0
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func openStore(t *testing.T, sources ...Source) *Store {
	t.Helper()
	s, err := Open(context.Background(), sources, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCSVLoadsWholeTable(t *testing.T) {
	path := writeFile(t, "expr.csv", expressionCSV)
	s := openStore(t, Source{Name: "expression", Path: path, Kind: KindExpression, Unit: "RPKM"})

	features, err := s.Features("expression")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gfap", "Olig2", "Shh"}, features)

	table, err := s.Table(context.Background(), "expression", "Shh")
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())
	assert.Equal(t, "Astrocytes", table.Label(2, "LINE"))
	assert.True(t, table.HasFeature("Gfap"))
	assert.False(t, table.HasFeature("SAMPLE"))

	v, ok := table.Value(2, "Shh")
	require.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)

	_, ok = table.Value(0, "Olig2")
	assert.False(t, ok, "NA must read as missing")

	src, ok := s.Source("expression")
	require.True(t, ok)
	assert.Equal(t, FormatCSV, src.Format)
}

func TestTableUnknownFeature(t *testing.T) {
	path := writeFile(t, "expr.csv", expressionCSV)
	s := openStore(t, Source{Name: "expression", Path: path, Kind: KindExpression})

	_, err := s.Table(context.Background(), "expression", "NotAGene")
	require.ErrorIs(t, err, grouping.ErrInvalidFeature)

	_, err = s.Table(context.Background(), "nope", "Shh")
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestAllMissingColumnStaysAGene(t *testing.T) {
	path := writeFile(t, "expr.csv", `SAMPLE,AGE,SEX,LINE,Shh,Empty,Ints
s1,Old,Male,Neurons,1.2,NA,3
s2,Young,Female,Astrocytes,3.0,NA,4
`)
	s := openStore(t, Source{Name: "expression", Path: path, Kind: KindExpression})

	features, err := s.Features("expression")
	require.NoError(t, err)
	assert.Equal(t, []string{"Empty", "Ints", "Shh"}, features)

	table, err := s.Table(context.Background(), "expression", "Empty")
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	for row := 0; row < table.Len(); row++ {
		_, ok := table.Value(row, "Empty")
		assert.False(t, ok)
	}
	v, ok := table.Value(1, "Ints")
	require.True(t, ok)
	assert.Equal(t, 4.0, v)
	assert.False(t, table.HasFeature("SAMPLE"))

	groups, err := grouping.NewEngine(nil).Compute(table, grouping.Request{Mode: grouping.ModeAge, Feature: "Empty"})
	require.NoError(t, err)
	for _, g := range groups {
		assert.Empty(t, g.Values)
	}
}

func TestOpenRejectsMissingDimension(t *testing.T) {
	path := writeFile(t, "expr.csv", expressionCSV)
	_, err := Open(context.Background(), []Source{{Name: "genebody", Path: path, Kind: KindMethylation}}, Options{Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMP")
}

func TestParquetReadsPrunedColumnsAndCaches(t *testing.T) {
	csvPath := writeFile(t, "expr.csv", expressionCSV)
	parquetPath := filepath.Join(t.TempDir(), "expr.parquet")

	var lookups []bool
	s, err := Open(context.Background(), nil, Options{
		Logger:        zerolog.Nop(),
		OnCacheLookup: func(_ string, hit bool) { lookups = append(lookups, hit) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.db.Exec(fmt.Sprintf("COPY (SELECT * FROM read_csv_auto(%s, nullstr = 'NA')) TO %s (FORMAT PARQUET)",
		quoteLiteral(csvPath), quoteLiteral(parquetPath)))
	require.NoError(t, err)

	require.NoError(t, s.load(context.Background(), Source{Name: "expression", Path: parquetPath, Kind: KindExpression}))
	src, _ := s.Source("expression")
	assert.Equal(t, FormatParquet, src.Format)

	table, err := s.Table(context.Background(), "expression", "Gfap")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gfap"}, table.Features())
	assert.True(t, table.HasColumn("AGE"))
	v, ok := table.Value(2, "Gfap")
	require.True(t, ok)
	assert.InDelta(t, 9.5, v, 1e-9)

	again, err := s.Table(context.Background(), "expression", "Gfap")
	require.NoError(t, err)
	assert.Same(t, table, again)
	assert.Equal(t, []bool{false, true}, lookups)
}

func TestMethylationTableCarriesCompartment(t *testing.T) {
	path := writeFile(t, "gb.csv", methylationCSV)
	s := openStore(t, Source{Name: "genebody", Path: path, Kind: KindMethylation, Unit: "% methylation"})

	table, err := s.Table(context.Background(), "genebody", "Shh")
	require.NoError(t, err)
	assert.True(t, table.HasColumn("COMP"))

	panels, err := grouping.NewEngine(nil).ComputePanels(table, grouping.Request{Mode: grouping.ModeAge, Feature: "Shh"})
	require.NoError(t, err)
	require.Len(t, panels, 3)
	assert.Equal(t, "Young", panels[0].Groups[0].Key)
	assert.Equal(t, []float64{40.25}, panels[1].Groups[0].Values)
}

func TestLoadCatalogAndDefault(t *testing.T) {
	exprPath := writeFile(t, "expr.csv", expressionCSV)
	s := openStore(t, Source{Name: "expression", Path: exprPath, Kind: KindExpression})

	catPath := writeFile(t, "genes.csv", "gene\nShh\ngfap\nOlig2\nShh\n")
	cat, err := s.LoadCatalog(context.Background(), catPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"gfap", "Olig2", "Shh"}, cat.Genes())

	def := s.DefaultCatalog()
	assert.Equal(t, []string{"Gfap", "Olig2", "Shh"}, def.Genes())
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatParquet, FormatOf("/data/a.parquet"))
	assert.Equal(t, FormatParquet, FormatOf("A.PQ"))
	assert.Equal(t, FormatCSV, FormatOf("ALL_RPKM_LABELED_SUBSET.csv"))
}
