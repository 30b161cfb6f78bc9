package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"expression_atlas/internal/dataset"
	"expression_atlas/internal/grouping"
	"expression_atlas/internal/render"
)

const defaultDataset = "expression"

// filterParams maps query parameters to the dimensions they filter.
var filterParams = map[string]grouping.Dimension{
	"age":  grouping.Age,
	"sex":  grouping.Sex,
	"line": grouping.CellLine,
}

// plotRequest is the parsed form of the common query parameters.
type plotRequest struct {
	source dataset.Source
	table  *dataset.Table
	req    grouping.Request
	theme  render.Theme
}

func (p plotRequest) methylation() bool {
	return p.source.Kind == dataset.KindMethylation
}

// httpError carries the status a handler should answer with.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func badRequest(format string, args ...interface{}) error {
	return &httpError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

// parseFilters reads age, sex and line. Values may repeat or be comma
// separated. A parameter that is present but empty clears its dimension.
func parseFilters(c *gin.Context) grouping.Filters {
	f := grouping.Filters{}
	for param, dim := range filterParams {
		raw, ok := c.GetQueryArray(param)
		if !ok {
			continue
		}
		values := make([]string, 0, len(raw))
		for _, r := range raw {
			for _, v := range strings.Split(r, ",") {
				if v = strings.TrimSpace(v); v != "" {
					values = append(values, v)
				}
			}
		}
		f.Set(dim, values...)
	}
	return f
}

// parsePlotRequest validates the common parameters, checks the gene against
// the catalog and loads the table holding it.
func (a *app) parsePlotRequest(c *gin.Context) (plotRequest, error) {
	var p plotRequest

	name := c.DefaultQuery("dataset", defaultDataset)
	src, ok := a.store.Source(name)
	if !ok {
		return p, badRequest("unknown dataset %q", name)
	}
	mode, err := grouping.ParseMode(c.Query("grouping"))
	if err != nil {
		return p, badRequest("%v", err)
	}
	theme, err := render.ParseTheme(c.Query("theme"))
	if err != nil {
		return p, badRequest("%v", err)
	}
	gene := strings.TrimSpace(c.DefaultQuery("gene", a.defaultGene))
	if !a.catalog.Contains(gene) {
		return p, &httpError{status: http.StatusNotFound, err: fmt.Errorf("no such gene %q", gene)}
	}

	table, err := a.store.Table(c.Request.Context(), name, gene)
	switch {
	case errors.Is(err, grouping.ErrInvalidFeature):
		return p, &httpError{status: http.StatusNotFound, err: fmt.Errorf("no such gene %q in %s", gene, name)}
	case err != nil:
		return p, err
	}

	p.source = src
	p.table = table
	p.theme = theme
	p.req = grouping.Request{Mode: mode, Filters: parseFilters(c), Feature: gene}
	return p, nil
}

// abortWithError answers with the status carried by err, or 500 for
// anything unexpected.
func (a *app) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var he *httpError
	if errors.As(err, &he) {
		status = he.status
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
