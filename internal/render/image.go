package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"expression_atlas/internal/grouping"
	"expression_atlas/internal/palette"
)

// ImageFormat selects the encoder used by WriteImage.
type ImageFormat string

const (
	FormatPNG ImageFormat = "png"
	FormatSVG ImageFormat = "svg"
)

// ErrInvalidImageFormat is returned by ParseImageFormat for unknown names.
var ErrInvalidImageFormat = errors.New("render: invalid image format")

func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "svg":
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidImageFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f ImageFormat) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Extension returns the file extension of the format, without the dot.
func (f ImageFormat) Extension() string {
	return string(f)
}

// ImagePanel is one plot area of an image.
type ImagePanel struct {
	Title  string
	Groups []grouping.Group
}

// ImageSpec describes the image to draw. YRange, when set, fixes the y axis
// of every panel.
type ImageSpec struct {
	Gene   string
	Unit   string
	Panels []ImagePanel
	Theme  Theme
	YRange *[2]float64
	Width  int
	Height int
}

const (
	defaultWidth  = 900
	defaultHeight = 500
	boxHalfWidth  = 0.3
)

// SinglePanel wraps groups as the only panel of an image.
func SinglePanel(groups []grouping.Group) []ImagePanel {
	return []ImagePanel{{Groups: groups}}
}

// Panels converts methylation panels for image rendering.
func Panels(panels []grouping.Panel) []ImagePanel {
	out := make([]ImagePanel, 0, len(panels))
	for _, p := range panels {
		out = append(out, ImagePanel{Title: p.Compartment, Groups: p.Groups})
	}
	return out
}

// WriteImage draws the panels side by side, one chart per panel. Panels without
// any values are drawn as empty placeholders.
func WriteImage(w io.Writer, format ImageFormat, spec ImageSpec) error {
	if spec.Width <= 0 {
		spec.Width = defaultWidth
	}
	if spec.Height <= 0 {
		spec.Height = defaultHeight
	}
	if len(spec.Panels) == 0 {
		spec.Panels = []ImagePanel{{}}
	}
	panelWidth := spec.Width / len(spec.Panels)

	switch format {
	case FormatPNG:
		return writePNG(w, spec, panelWidth)
	case FormatSVG:
		return writeSVG(w, spec, panelWidth)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidImageFormat, format)
	}
}

func writePNG(w io.Writer, spec ImageSpec, panelWidth int) error {
	canvas := image.NewRGBA(image.Rect(0, 0, panelWidth*len(spec.Panels), spec.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{palette.ToDrawing(spec.Theme.PaperBg)}, image.Point{}, draw.Src)

	for i, p := range spec.Panels {
		c, ok := panelChart(spec, p, i, panelWidth)
		if !ok {
			continue
		}
		buf := &bytes.Buffer{}
		if err := c.Render(chart.PNG, buf); err != nil {
			return fmt.Errorf("render panel %d: %w", i, err)
		}
		img, err := png.Decode(buf)
		if err != nil {
			return err
		}
		offset := image.Pt(i*panelWidth, 0)
		draw.Draw(canvas, img.Bounds().Add(offset), img, img.Bounds().Min, draw.Src)
	}
	return png.Encode(w, canvas)
}

func writeSVG(w io.Writer, spec ImageSpec, panelWidth int) error {
	total := panelWidth * len(spec.Panels)
	b := &strings.Builder{}
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`, total, spec.Height)
	fmt.Fprintf(b, `<rect width="100%%" height="100%%" fill="%s"/>`, spec.Theme.PaperBg)
	for i, p := range spec.Panels {
		c, ok := panelChart(spec, p, i, panelWidth)
		if !ok {
			fmt.Fprintf(b, `<text x="%d" y="%d" fill="%s" text-anchor="middle">no data</text>`,
				i*panelWidth+panelWidth/2, spec.Height/2, spec.Theme.Font)
			continue
		}
		buf := &bytes.Buffer{}
		if err := c.Render(chart.SVG, buf); err != nil {
			return fmt.Errorf("render panel %d: %w", i, err)
		}
		inner := buf.String()
		if strings.HasPrefix(inner, "<?xml") {
			if end := strings.Index(inner, "?>"); end >= 0 {
				inner = inner[end+2:]
			}
		}
		fmt.Fprintf(b, `<g transform="translate(%d,0)">%s</g>`, i*panelWidth, inner)
	}
	b.WriteString("</svg>")
	_, err := io.WriteString(w, b.String())
	return err
}

// panelChart builds the go-chart chart of one panel. ok is false when the
// panel has no values to draw.
func panelChart(spec ImageSpec, p ImagePanel, index, width int) (chart.Chart, bool) {
	yr, ok := yRange(spec, p)
	if !ok {
		return chart.Chart{}, false
	}

	fontColor := palette.ToDrawing(spec.Theme.Font)
	axisStyle := chart.Style{FontColor: fontColor, StrokeColor: fontColor}
	gridStyle := chart.Style{StrokeColor: palette.ToDrawing(spec.Theme.Grid), StrokeWidth: 1}

	// Blank ticks at the range ends keep the tick span non-zero for a
	// single group.
	xMax := float64(len(p.Groups)) + 0.5
	ticks := make([]chart.Tick, 0, len(p.Groups)+2)
	ticks = append(ticks, chart.Tick{Value: 0.5})
	series := make([]chart.Series, 0, len(p.Groups)*4)
	for i, g := range p.Groups {
		x := float64(i + 1)
		ticks = append(ticks, chart.Tick{Value: x, Label: g.Key})
		series = append(series, boxSeries(x, g)...)
	}
	ticks = append(ticks, chart.Tick{Value: xMax})

	title := p.Title
	if index == 0 {
		title = strings.TrimSpace(strings.ToUpper(spec.Gene) + " " + p.Title)
	}
	yName := ""
	if index == 0 {
		yName = spec.Unit
	}

	return chart.Chart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: fontColor, FontSize: 16},
		Width:      width,
		Height:     spec.Height,
		Background: chart.Style{
			FillColor: palette.ToDrawing(spec.Theme.PaperBg),
			Padding:   chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 24},
		},
		Canvas: chart.Style{FillColor: palette.ToDrawing(spec.Theme.PlotBg)},
		XAxis: chart.XAxis{
			Style:     axisStyle,
			TickStyle: chart.Style{FontColor: fontColor, TextRotationDegrees: 30},
			Range:     &chart.ContinuousRange{Min: 0.5, Max: xMax},
			Ticks:     ticks,
		},
		YAxis: chart.YAxis{
			Name:           yName,
			NameStyle:      chart.Style{FontColor: fontColor},
			Style:          axisStyle,
			Range:          yr,
			GridMajorStyle: gridStyle,
		},
		Series: series,
	}, true
}

func yRange(spec ImageSpec, p ImagePanel) (*chart.ContinuousRange, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, g := range p.Groups {
		for _, v := range g.Values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return nil, false
	}
	if spec.YRange != nil {
		return &chart.ContinuousRange{Min: spec.YRange[0], Max: spec.YRange[1]}, true
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}, true
}

// boxSeries draws one box: outline, median, whiskers and every point with a
// deterministic horizontal jitter.
func boxSeries(x float64, g grouping.Group) []chart.Series {
	if len(g.Values) == 0 {
		return nil
	}
	s := Summarize(g.Values)
	col := palette.ToDrawing(g.Color)
	line := chart.Style{StrokeColor: col, StrokeWidth: 2}
	l, r := x-boxHalfWidth, x+boxHalfWidth

	px := make([]float64, len(g.Values))
	for j := range g.Values {
		_, frac := math.Modf(float64(j) * 0.6180339887)
		px[j] = x + PointPos + Jitter*boxHalfWidth*(2*frac-1)
	}

	return []chart.Series{
		chart.ContinuousSeries{
			Name:    g.Key,
			Style:   line,
			XValues: []float64{l, r, r, l, l},
			YValues: []float64{s.Q1, s.Q1, s.Q3, s.Q3, s.Q1},
		},
		chart.ContinuousSeries{
			Style:   chart.Style{StrokeColor: col, StrokeWidth: 3},
			XValues: []float64{l, r},
			YValues: []float64{s.Median, s.Median},
		},
		chart.ContinuousSeries{
			Style:   line,
			XValues: []float64{x, x},
			YValues: []float64{s.Q3, s.UpperFence},
		},
		chart.ContinuousSeries{
			Style:   line,
			XValues: []float64{x, x},
			YValues: []float64{s.LowerFence, s.Q1},
		},
		chart.ContinuousSeries{
			Style:   pointStyle(col),
			XValues: px,
			YValues: append([]float64(nil), g.Values...),
		},
	}
}

// pointStyle renders points only, no connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: drawing.Color{R: 255, G: 255, B: 255, A: 0},
		DotWidth:    3,
		DotColor:    col.WithAlpha(180),
	}
}
