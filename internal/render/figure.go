// Package render describes grouped box plots as Plotly figures and draws
// them as PNG or SVG images.
package render

import (
	"expression_atlas/internal/grouping"
)

// Box point placement is fixed: every point shown, centered on its box.
const (
	BoxPoints = "all"
	Jitter    = 0.5
	PointPos  = 0.0
)

// MethylationRange is the shared y range of methylation panels.
var MethylationRange = [2]float64{0, 100}

type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Trace struct {
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Y         []float64 `json:"y"`
	BoxPoints string    `json:"boxpoints"`
	Jitter    float64   `json:"jitter"`
	PointPos  float64   `json:"pointpos"`
	Marker    Marker    `json:"marker"`
	XAxis     string    `json:"xaxis,omitempty"`
	YAxis     string    `json:"yaxis,omitempty"`
}

type Marker struct {
	Color string `json:"color,omitempty"`
}

type Font struct {
	Size     int    `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
	Weight   string `json:"weight,omitempty"`
	TextCase string `json:"textcase,omitempty"`
}

type Title struct {
	Text string `json:"text"`
	Font *Font  `json:"font,omitempty"`
}

type Axis struct {
	Title     *Title    `json:"title,omitempty"`
	Range     []float64 `json:"range,omitempty"`
	Domain    []float64 `json:"domain,omitempty"`
	Anchor    string    `json:"anchor,omitempty"`
	Matches   string    `json:"matches,omitempty"`
	GridColor string    `json:"gridcolor,omitempty"`
}

type Annotation struct {
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	XRef      string  `json:"xref"`
	YRef      string  `json:"yref"`
	XAnchor   string  `json:"xanchor"`
	YAnchor   string  `json:"yanchor"`
	ShowArrow bool    `json:"showarrow"`
}

type Layout struct {
	Title        Title        `json:"title"`
	ShowLegend   bool         `json:"showlegend"`
	PlotBgColor  string       `json:"plot_bgcolor"`
	PaperBgColor string       `json:"paper_bgcolor"`
	Font         Font         `json:"font"`
	XAxis        *Axis        `json:"xaxis,omitempty"`
	XAxis2       *Axis        `json:"xaxis2,omitempty"`
	XAxis3       *Axis        `json:"xaxis3,omitempty"`
	YAxis        *Axis        `json:"yaxis,omitempty"`
	YAxis2       *Axis        `json:"yaxis2,omitempty"`
	YAxis3       *Axis        `json:"yaxis3,omitempty"`
	Annotations  []Annotation `json:"annotations,omitempty"`
}

// BoxFigure builds a single-panel figure with one box trace per group.
func BoxFigure(gene, unit string, groups []grouping.Group, theme Theme) Figure {
	fig := Figure{Data: traces(groups, "", ""), Layout: baseLayout(gene, theme)}
	fig.Layout.XAxis = &Axis{Title: &Title{Text: ""}, GridColor: theme.Grid}
	fig.Layout.YAxis = &Axis{Title: &Title{Text: unit}, GridColor: theme.Grid}
	return fig
}

// PanelFigure lays out up to three panels side by side sharing the
// methylation y range. Panels beyond the third are ignored.
func PanelFigure(gene, unit string, panels []grouping.Panel, theme Theme) Figure {
	if len(panels) > 3 {
		panels = panels[:3]
	}
	fig := Figure{Data: []Trace{}, Layout: baseLayout(gene, theme)}
	n := float64(len(panels))
	const gap = 0.04
	yRange := []float64{MethylationRange[0], MethylationRange[1]}

	for i, p := range panels {
		suffix := ""
		if i > 0 {
			suffix = string(rune('1' + i))
		}
		xName, yName := "x"+suffix, "y"+suffix
		start := float64(i) / n
		end := float64(i+1) / n
		if i > 0 {
			start += gap / 2
		}
		if i < len(panels)-1 {
			end -= gap / 2
		}

		x := &Axis{Domain: []float64{start, end}, Anchor: yName, GridColor: theme.Grid}
		y := &Axis{Range: yRange, Anchor: xName, GridColor: theme.Grid}
		if i == 0 {
			y.Title = &Title{Text: unit}
		} else {
			y.Matches = "y"
		}
		switch i {
		case 0:
			fig.Layout.XAxis, fig.Layout.YAxis = x, y
		case 1:
			fig.Layout.XAxis2, fig.Layout.YAxis2 = x, y
		case 2:
			fig.Layout.XAxis3, fig.Layout.YAxis3 = x, y
		}

		fig.Data = append(fig.Data, traces(p.Groups, xName, yName)...)
		fig.Layout.Annotations = append(fig.Layout.Annotations, Annotation{
			Text:    p.Compartment,
			X:       (start + end) / 2,
			Y:       1,
			XRef:    "paper",
			YRef:    "paper",
			XAnchor: "center",
			YAnchor: "bottom",
		})
	}
	return fig
}

func baseLayout(gene string, theme Theme) Layout {
	return Layout{
		Title: Title{
			Text: gene,
			Font: &Font{Size: 24, Weight: "bold", TextCase: "upper"},
		},
		ShowLegend:   false,
		PlotBgColor:  theme.PlotBg,
		PaperBgColor: theme.PaperBg,
		Font:         Font{Color: theme.Font},
	}
}

func traces(groups []grouping.Group, xAxis, yAxis string) []Trace {
	out := make([]Trace, 0, len(groups))
	for _, g := range groups {
		t := Trace{
			Type:      "box",
			Name:      g.Key,
			Y:         g.Values,
			BoxPoints: BoxPoints,
			Jitter:    Jitter,
			PointPos:  PointPos,
			Marker:    Marker{Color: g.Color},
		}
		if xAxis != "x" {
			t.XAxis = xAxis
		}
		if yAxis != "y" {
			t.YAxis = yAxis
		}
		out = append(out, t)
	}
	return out
}
