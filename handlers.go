package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"expression_atlas/internal/dataset"
	"expression_atlas/internal/export"
	"expression_atlas/internal/grouping"
	"expression_atlas/internal/metrics"
	"expression_atlas/internal/render"
)

type app struct {
	store       *dataset.Store
	catalog     *dataset.Catalog
	engine      *grouping.Engine
	exports     *export.Service
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	defaultGene string
}

// result holds either flat groups or, for methylation tables, one panel per
// compartment.
type result struct {
	groups []grouping.Group
	panels []grouping.Panel
}

func (a *app) compute(p plotRequest) (result, error) {
	start := time.Now()
	var (
		res result
		err error
	)
	if p.methylation() {
		res.panels, err = a.engine.ComputePanels(p.table, p.req)
	} else {
		res.groups, err = a.engine.Compute(p.table, p.req)
	}
	if err != nil {
		if errors.Is(err, grouping.ErrInvalidMode) || errors.Is(err, grouping.ErrInvalidFeature) {
			return res, badRequest("%v", err)
		}
		return res, err
	}

	fallbacks := countFallbacks(res.groups)
	for _, panel := range res.panels {
		fallbacks += countFallbacks(panel.Groups)
	}
	a.metrics.ObserveGrouping(p.req.Mode.String(), time.Since(start), fallbacks)
	return res, nil
}

func countFallbacks(groups []grouping.Group) int {
	n := 0
	for _, g := range groups {
		if g.FallbackColor {
			n++
		}
	}
	return n
}

// ------------------------------------------------------------------
// Catalog
// ------------------------------------------------------------------

type dimensionInfo struct {
	Name   string   `json:"name"`
	Column string   `json:"column"`
	Order  []string `json:"order"`
}

type datasetInfo struct {
	dataset.Source
	Dimensions []dimensionInfo `json:"dimensions"`
	Genes      int             `json:"genes"`
}

type modeInfo struct {
	ID        int    `json:"id"`
	Slug      string `json:"slug"`
	Label     string `json:"label"`
	KeyColumn string `json:"key_column,omitempty"`
}

func (a *app) datasetsHandler(c *gin.Context) {
	out := make([]datasetInfo, 0)
	for _, src := range a.store.Sources() {
		features, err := a.store.Features(src.Name)
		if err != nil {
			a.abortWithError(c, err)
			return
		}
		dims := make([]dimensionInfo, 0, 4)
		for _, col := range dataset.DimensionColumns(src.Kind) {
			d, _ := grouping.DimensionByName(col)
			dims = append(dims, dimensionInfo{Name: d.Name, Column: d.Column, Order: d.Order})
		}
		out = append(out, datasetInfo{Source: src, Dimensions: dims, Genes: len(features)})
	}

	modes := make([]modeInfo, 0, 7)
	for _, m := range grouping.Modes() {
		modes = append(modes, modeInfo{ID: int(m), Slug: m.String(), Label: m.Label(), KeyColumn: m.KeyColumn()})
	}
	c.JSON(http.StatusOK, gin.H{"datasets": out, "groupings": modes, "default_grouping": int(grouping.DefaultMode)})
}

func (a *app) genesHandler(c *gin.Context) {
	name, ok := c.GetQuery("dataset")
	if !ok {
		c.JSON(http.StatusOK, gin.H{"genes": a.catalog.Genes()})
		return
	}
	features, err := a.store.Features(name)
	if errors.Is(err, dataset.ErrUnknownSource) {
		a.abortWithError(c, badRequest("unknown dataset %q", name))
		return
	}
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"genes": dataset.NewCatalog(features).Genes()})
}

func (a *app) geneSuggestionsHandler(c *gin.Context) {
	suggestions := a.catalog.Suggest(c.Query("input"), c.Query("filterType"), 10)
	if suggestions == nil {
		suggestions = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// ------------------------------------------------------------------
// Groups & figures
// ------------------------------------------------------------------

type groupBody struct {
	Key           string         `json:"key"`
	Labels        []string       `json:"labels"`
	Color         string         `json:"color"`
	FallbackColor bool           `json:"fallback_color"`
	Values        []float64      `json:"values"`
	Samples       int            `json:"samples"`
	Summary       render.Summary `json:"summary"`
}

type panelBody struct {
	Compartment string      `json:"compartment"`
	Groups      []groupBody `json:"groups"`
}

func groupBodies(groups []grouping.Group) []groupBody {
	out := make([]groupBody, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupBody{
			Key:           g.Key,
			Labels:        g.Labels,
			Color:         g.Color,
			FallbackColor: g.FallbackColor,
			Values:        g.Values,
			Samples:       len(g.Rows),
			Summary:       render.Summarize(g.Values),
		})
	}
	return out
}

func (a *app) groupsHandler(c *gin.Context) {
	p, err := a.parsePlotRequest(c)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	res, err := a.compute(p)
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	body := gin.H{
		"dataset":  p.source.Name,
		"gene":     p.req.Feature,
		"grouping": p.req.Mode.String(),
		"unit":     p.source.Unit,
	}
	if p.methylation() {
		panels := make([]panelBody, 0, len(res.panels))
		for _, panel := range res.panels {
			panels = append(panels, panelBody{Compartment: panel.Compartment, Groups: groupBodies(panel.Groups)})
		}
		body["panels"] = panels
	} else {
		body["groups"] = groupBodies(res.groups)
	}
	c.JSON(http.StatusOK, body)
}

func (a *app) figureHandler(c *gin.Context) {
	p, err := a.parsePlotRequest(c)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	res, err := a.compute(p)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	if p.methylation() {
		c.JSON(http.StatusOK, render.PanelFigure(p.req.Feature, p.source.Unit, res.panels, p.theme))
		return
	}
	c.JSON(http.StatusOK, render.BoxFigure(p.req.Feature, p.source.Unit, res.groups, p.theme))
}

// ------------------------------------------------------------------
// Downloads & exports
// ------------------------------------------------------------------

func (a *app) tableCSV(p plotRequest) ([]byte, error) {
	tbl, err := export.Build(a.engine, p.table, p.req)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tbl.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *app) plotImage(p plotRequest, format render.ImageFormat) ([]byte, error) {
	res, err := a.compute(p)
	if err != nil {
		return nil, err
	}
	spec := render.ImageSpec{Gene: p.req.Feature, Unit: p.source.Unit, Theme: p.theme}
	if p.methylation() {
		spec.Panels = render.Panels(res.panels)
		yr := render.MethylationRange
		spec.YRange = &yr
	} else {
		spec.Panels = render.SinglePanel(res.groups)
	}
	var buf bytes.Buffer
	if err := render.WriteImage(&buf, format, spec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}

func (a *app) downloadDataHandler(c *gin.Context) {
	p, err := a.parsePlotRequest(c)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	start := time.Now()
	body, err := a.tableCSV(p)
	a.metrics.Observe(c.Request.Context(), "download_data", err == nil, time.Since(start))
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	attachment(c, "out_data.csv", "text/csv; charset=utf-8", body)
}

func (a *app) downloadPlotHandler(c *gin.Context) {
	format, err := render.ParseImageFormat(c.Query("format"))
	if err != nil {
		a.abortWithError(c, badRequest("%v", err))
		return
	}
	p, err := a.parsePlotRequest(c)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	start := time.Now()
	body, err := a.plotImage(p, format)
	a.metrics.Observe(c.Request.Context(), "download_plot", err == nil, time.Since(start))
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	attachment(c, "out_plot."+format.Extension(), format.ContentType(), body)
}

// createExportHandler renders the requested artifacts (include=data,plot,
// both by default) and stores them under a new export id.
func (a *app) createExportHandler(c *gin.Context) {
	format, err := render.ParseImageFormat(c.Query("format"))
	if err != nil {
		a.abortWithError(c, badRequest("%v", err))
		return
	}
	include := map[string]bool{"data": true, "plot": true}
	if raw, ok := c.GetQuery("include"); ok {
		include = map[string]bool{}
		for _, part := range strings.Split(raw, ",") {
			switch part = strings.TrimSpace(strings.ToLower(part)); part {
			case "data", "plot":
				include[part] = true
			case "":
			default:
				a.abortWithError(c, badRequest("unknown export part %q", part))
				return
			}
		}
		if len(include) == 0 {
			a.abortWithError(c, badRequest("include must name data and/or plot"))
			return
		}
	}
	p, err := a.parsePlotRequest(c)
	if err != nil {
		a.abortWithError(c, err)
		return
	}

	start := time.Now()
	meta := map[string]string{"dataset": p.source.Name, "gene": p.req.Feature, "grouping": p.req.Mode.String()}
	var files []export.File
	if include["data"] {
		body, err := a.tableCSV(p)
		if err != nil {
			a.abortWithError(c, err)
			return
		}
		files = append(files, export.File{Name: "out_data.csv", ContentType: "text/csv", Body: body, Metadata: meta})
	}
	if include["plot"] {
		body, err := a.plotImage(p, format)
		if err != nil {
			a.abortWithError(c, err)
			return
		}
		files = append(files, export.File{Name: "out_plot." + format.Extension(), ContentType: format.ContentType(), Body: body, Metadata: meta})
	}

	id, artifacts, err := a.exports.Save(c.Request.Context(), files)
	a.metrics.Observe(c.Request.Context(), "export", err == nil, time.Since(start))
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "artifacts": artifacts})
}

func (a *app) listExportHandler(c *gin.Context) {
	artifacts, err := a.exports.List(c.Request.Context(), c.Param("id"))
	if errors.Is(err, export.ErrNotFound) {
		a.abortWithError(c, &httpError{status: http.StatusNotFound, err: err})
		return
	}
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "artifacts": artifacts})
}

func (a *app) getExportHandler(c *gin.Context) {
	info, rc, err := a.exports.Open(c.Request.Context(), c.Param("id"), c.Param("file"))
	if errors.Is(err, export.ErrNotFound) {
		a.abortWithError(c, &httpError{status: http.StatusNotFound, err: err})
		return
	}
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.Param("file")))
	c.DataFromReader(http.StatusOK, info.Size, contentType, rc, nil)
}
