package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"

	"expression_atlas/internal/grouping"
)

// Kind separates expression tables from methylation tables, which carry a
// COMP column.
type Kind string

const (
	KindExpression  Kind = "expression"
	KindMethylation Kind = "methylation"
)

// Format is how a source file is read: CSV files are loaded whole at start,
// Parquet files are read per gene with only the needed columns.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ErrUnknownSource is returned for dataset names that were not configured.
var ErrUnknownSource = errors.New("dataset: unknown source")

// Source describes one configured table.
type Source struct {
	Name   string `json:"name"`
	Path   string `json:"-"`
	Kind   Kind   `json:"kind"`
	Unit   string `json:"unit"`
	Format Format `json:"format"`
}

// FormatOf infers the read format from the file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return FormatCSV
	}
}

// DimensionColumns lists the label columns a source of kind k must carry.
func DimensionColumns(k Kind) []string {
	cols := []string{grouping.Age.Column, grouping.Sex.Column, grouping.CellLine.Column}
	if k == KindMethylation {
		cols = append(cols, grouping.Compartment.Column)
	}
	return cols
}

// Options tunes Open.
type Options struct {
	// DatabasePath is handed to DuckDB; empty means in-memory.
	DatabasePath string
	CacheSize    int
	Logger       zerolog.Logger
	// OnCacheLookup is called for each Parquet column lookup.
	OnCacheLookup func(source string, hit bool)
}

type loaded struct {
	Source
	table    *Table
	features map[string]bool
	ordered  []string
	// casts holds features typed as text because every value is missing.
	casts map[string]bool
}

// Store owns the DuckDB handle and the loaded sources. It is safe for
// concurrent use; tables it hands out must not be modified.
type Store struct {
	db      *sql.DB
	cache   *lru.Cache[string, *Table]
	sources map[string]*loaded
	names   []string
	opts    Options
}

// Open connects to DuckDB and loads every source: CSV sources are read in
// full, Parquet sources only have their schema inspected.
func Open(ctx context.Context, sources []Source, opts Options) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	db, err := sql.Open("duckdb", opts.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	cache, err := lru.New[string, *Table](opts.CacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, cache: cache, sources: make(map[string]*loaded), opts: opts}
	for _, src := range sources {
		if err := s.load(ctx, src); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("load %s: %w", src.Name, err)
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) load(ctx context.Context, src Source) error {
	if src.Format == "" {
		src.Format = FormatOf(src.Path)
	}
	if _, dup := s.sources[src.Name]; dup {
		return fmt.Errorf("duplicate source name %q", src.Name)
	}
	columns, err := s.describe(ctx, src)
	if err != nil {
		return err
	}
	dims := make(map[string]bool)
	for _, col := range DimensionColumns(src.Kind) {
		dims[col] = true
		if _, ok := columns[col]; !ok {
			return fmt.Errorf("missing required column %s", col)
		}
	}

	l := &loaded{Source: src, features: make(map[string]bool), casts: make(map[string]bool)}
	var text []string
	for name, typ := range columns {
		switch {
		case dims[name] || name == grouping.Compartment.Column:
		case isNumericType(typ):
			l.features[name] = true
			l.ordered = append(l.ordered, name)
		default:
			text = append(text, name)
		}
	}
	empty, err := s.emptyColumns(ctx, src, text)
	if err != nil {
		return err
	}
	for _, name := range empty {
		l.features[name] = true
		l.casts[name] = true
		l.ordered = append(l.ordered, name)
	}
	sort.Strings(l.ordered)

	if src.Format == FormatCSV {
		table, err := s.query(ctx, l.selectQuery(l.ordered...), src.Kind)
		if err != nil {
			return err
		}
		l.table = table
	}

	s.sources[src.Name] = l
	s.names = append(s.names, src.Name)
	s.opts.Logger.Info().
		Str("source", src.Name).
		Str("format", string(src.Format)).
		Int("features", len(l.ordered)).
		Msg("dataset loaded")
	return nil
}

// emptyColumns returns the columns among names that hold no value at all.
// DuckDB types such columns as text, but they are genes without data.
func (s *Store) emptyColumns(ctx context.Context, src Source, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	counts := make([]string, 0, len(names))
	for _, name := range names {
		counts = append(counts, fmt.Sprintf("count(%s)", quoteIdent(name)))
	}
	row := make([]interface{}, len(names))
	rowPointers := make([]interface{}, len(names))
	for i := range row {
		rowPointers[i] = &row[i]
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(counts, ", "), scanExpr(src))
	if err := s.db.QueryRowContext(ctx, query).Scan(rowPointers...); err != nil {
		return nil, fmt.Errorf("count values: %w", err)
	}
	var empty []string
	for i, name := range names {
		if asFloat(row[i]) == 0 {
			empty = append(empty, name)
		}
	}
	return empty, nil
}

// selectQuery reads the dimension columns plus features, casting empty text
// columns to DOUBLE.
func (l *loaded) selectQuery(features ...string) string {
	dims := DimensionColumns(l.Kind)
	cols := make([]string, 0, len(dims)+len(features))
	for _, c := range dims {
		cols = append(cols, quoteIdent(c))
	}
	for _, f := range features {
		if l.casts[f] {
			cols = append(cols, fmt.Sprintf("CAST(%s AS DOUBLE) AS %s", quoteIdent(f), quoteIdent(f)))
			continue
		}
		cols = append(cols, quoteIdent(f))
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), scanExpr(l.Source))
}

// describe returns column name → DuckDB type for the source file.
func (s *Store) describe(ctx context.Context, src Source) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("DESCRIBE SELECT * FROM %s", scanExpr(src)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for rows.Next() {
		row := make([]interface{}, len(columns))
		rowPointers := make([]interface{}, len(columns))
		for i := range row {
			rowPointers[i] = &row[i]
		}
		if err := rows.Scan(rowPointers...); err != nil {
			return nil, err
		}
		out[asString(row[0])] = strings.ToUpper(asString(row[1]))
	}
	return out, rows.Err()
}

// query runs sql and builds a Table: dimension columns become labels, every
// other numeric column becomes a feature.
func (s *Store) query(ctx context.Context, query string, kind Kind) (*Table, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	isDim := make(map[string]bool)
	for _, col := range DimensionColumns(kind) {
		isDim[col] = true
	}

	labels := make(map[int][]string)
	values := make(map[int][]float64)
	for i, col := range columns {
		switch {
		case isDim[col]:
			labels[i] = nil
		case isNumericType(types[i].DatabaseTypeName()):
			values[i] = nil
		}
	}

	n := 0
	for rows.Next() {
		row := make([]interface{}, len(columns))
		rowPointers := make([]interface{}, len(columns))
		for i := range row {
			rowPointers[i] = &row[i]
		}
		if err := rows.Scan(rowPointers...); err != nil {
			return nil, err
		}
		for i := range labels {
			labels[i] = append(labels[i], asString(row[i]))
		}
		for i := range values {
			values[i] = append(values[i], asFloat(row[i]))
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	table := NewTable(n)
	for i, col := range columns {
		if l, ok := labels[i]; ok {
			if l == nil {
				l = []string{}
			}
			table.SetLabels(col, l)
		}
		if v, ok := values[i]; ok {
			if v == nil {
				v = []float64{}
			}
			table.SetValues(col, v)
		}
	}
	return table, nil
}

// Sources returns the configured sources in load order.
func (s *Store) Sources() []Source {
	out := make([]Source, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.sources[name].Source)
	}
	return out
}

// Source returns the named source.
func (s *Store) Source(name string) (Source, bool) {
	l, ok := s.sources[name]
	if !ok {
		return Source{}, false
	}
	return l.Source, true
}

// Features returns the sorted gene columns of a source.
func (s *Store) Features(name string) ([]string, error) {
	l, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return append([]string(nil), l.ordered...), nil
}

// Table returns a table holding at least feature. CSV sources return the
// shared full table; Parquet sources read only the dimension columns and the
// feature, caching the result.
func (s *Store) Table(ctx context.Context, name, feature string) (*Table, error) {
	l, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	if !l.features[feature] {
		return nil, fmt.Errorf("%w: %q", grouping.ErrInvalidFeature, feature)
	}
	if l.table != nil {
		return l.table, nil
	}

	key := name + "\x00" + feature
	if t, ok := s.cache.Get(key); ok {
		s.observe(name, true)
		return t, nil
	}
	s.observe(name, false)

	t, err := s.query(ctx, l.selectQuery(feature), l.Kind)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", feature, name, err)
	}
	s.cache.Add(key, t)
	return t, nil
}

func (s *Store) observe(name string, hit bool) {
	if s.opts.OnCacheLookup != nil {
		s.opts.OnCacheLookup(name, hit)
	}
}

func scanExpr(src Source) string {
	if src.Format == FormatParquet {
		return fmt.Sprintf("read_parquet(%s)", quoteLiteral(src.Path))
	}
	return fmt.Sprintf("read_csv_auto(%s, header = true, nullstr = 'NA')", quoteLiteral(src.Path))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func isNumericType(t string) bool {
	t = strings.ToUpper(t)
	if strings.HasPrefix(t, "DECIMAL") {
		return true
	}
	switch t {
	case "DOUBLE", "FLOAT", "REAL", "FLOAT4", "FLOAT8",
		"TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT":
		return true
	}
	return false
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func asFloat(v interface{}) float64 {
	switch x := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case int16:
		return float64(x)
	case int8:
		return float64(x)
	case uint64:
		return float64(x)
	case uint32:
		return float64(x)
	case uint16:
		return float64(x)
	case uint8:
		return float64(x)
	case interface{ Float64() float64 }:
		return x.Float64()
	default:
		f, err := strconv.ParseFloat(asString(x), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
}
