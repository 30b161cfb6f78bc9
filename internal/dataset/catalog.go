package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Catalog is the list of gene names offered for selection.
type Catalog struct {
	genes []string
	set   map[string]bool
}

// NewCatalog deduplicates genes and sorts them case-insensitively.
func NewCatalog(genes []string) *Catalog {
	c := &Catalog{set: make(map[string]bool, len(genes))}
	for _, g := range genes {
		g = strings.TrimSpace(g)
		if g == "" || c.set[g] {
			continue
		}
		c.set[g] = true
		c.genes = append(c.genes, g)
	}
	sort.Slice(c.genes, func(i, j int) bool {
		a, b := strings.ToLower(c.genes[i]), strings.ToLower(c.genes[j])
		if a != b {
			return a < b
		}
		return c.genes[i] < c.genes[j]
	})
	return c
}

func (c *Catalog) Genes() []string {
	return append([]string(nil), c.genes...)
}

func (c *Catalog) Contains(gene string) bool {
	return c.set[gene]
}

func (c *Catalog) Len() int {
	return len(c.genes)
}

// Suggest returns up to limit genes matching input case-insensitively.
// filterType is "contains", "ends" or anything else for prefix matching.
func (c *Catalog) Suggest(input, filterType string, limit int) []string {
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(input)
	out := []string{}
	for _, g := range c.genes {
		if len(out) == limit {
			break
		}
		lower := strings.ToLower(g)
		var match bool
		switch {
		case needle == "":
			match = true
		case filterType == "contains":
			match = strings.Contains(lower, needle)
		case filterType == "ends":
			match = strings.HasSuffix(lower, needle)
		default:
			match = strings.HasPrefix(lower, needle)
		}
		if match {
			out = append(out, g)
		}
	}
	return out
}

// LoadCatalog reads a one-column gene list (with a header row) through
// DuckDB.
func (s *Store) LoadCatalog(ctx context.Context, path string) (*Catalog, error) {
	query := fmt.Sprintf("SELECT * FROM read_csv_auto(%s, header = true, all_varchar = true)", quoteLiteral(path))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read gene catalog: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var genes []string
	for rows.Next() {
		row := make([]interface{}, len(columns))
		rowPointers := make([]interface{}, len(columns))
		for i := range row {
			rowPointers[i] = &row[i]
		}
		if err := rows.Scan(rowPointers...); err != nil {
			return nil, err
		}
		genes = append(genes, asString(row[0]))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewCatalog(genes), nil
}

// DefaultCatalog unions the gene columns of every source.
func (s *Store) DefaultCatalog() *Catalog {
	var genes []string
	for _, name := range s.names {
		genes = append(genes, s.sources[name].ordered...)
	}
	return NewCatalog(genes)
}
