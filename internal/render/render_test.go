package render

import (
	"bytes"
	"encoding/json"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expression_atlas/internal/grouping"
)

func sampleGroups() []grouping.Group {
	return []grouping.Group{
		{Key: "Young Female", Values: []float64{3.0, 2.5, 4.1}, Color: "#1f77b4"},
		{Key: "Old Male", Values: []float64{1.2, 1.4}, Color: "#d62728"},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{7, 1, 3, 5, 100})
	assert.Equal(t, 5, s.N)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 100.0, s.Max)
	assert.Equal(t, 3.0, s.Q1)
	assert.Equal(t, 5.0, s.Median)
	assert.Equal(t, 7.0, s.Q3)
	assert.InDelta(t, 23.2, s.Mean, 1e-9)
	assert.Equal(t, 1.0, s.LowerFence)
	assert.Equal(t, 7.0, s.UpperFence, "100 lies beyond 1.5 IQR")

	s = Summarize([]float64{1, 2})
	assert.Equal(t, 1.25, s.Q1)
	assert.Equal(t, 1.5, s.Median)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestParseTheme(t *testing.T) {
	th, err := ParseTheme("")
	require.NoError(t, err)
	assert.Equal(t, Light, th)
	th, err = ParseTheme("DARK")
	require.NoError(t, err)
	assert.Equal(t, Dark, th)
	_, err = ParseTheme("solarized")
	assert.ErrorIs(t, err, ErrInvalidTheme)
}

func TestBoxFigure(t *testing.T) {
	fig := BoxFigure("Shh", "RPKM", sampleGroups(), Light)
	require.Len(t, fig.Data, 2)
	tr := fig.Data[1]
	assert.Equal(t, "box", tr.Type)
	assert.Equal(t, "Old Male", tr.Name)
	assert.Equal(t, "all", tr.BoxPoints)
	assert.Equal(t, 0.5, tr.Jitter)
	assert.Equal(t, 0.0, tr.PointPos)
	assert.Equal(t, "#d62728", tr.Marker.Color)
	assert.Empty(t, tr.XAxis)

	assert.Equal(t, "Shh", fig.Layout.Title.Text)
	assert.Equal(t, "upper", fig.Layout.Title.Font.TextCase)
	assert.False(t, fig.Layout.ShowLegend)
	assert.Equal(t, "#f0f0f0", fig.Layout.PlotBgColor)
	assert.Equal(t, "RPKM", fig.Layout.YAxis.Title.Text)

	raw, err := json.Marshal(fig)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"plot_bgcolor":"#f0f0f0"`)
	assert.NotContains(t, string(raw), "xaxis2")
}

func TestPanelFigureSharesRange(t *testing.T) {
	panels := []grouping.Panel{
		{Compartment: "modCG", Groups: sampleGroups()[:1]},
		{Compartment: "mCG", Groups: sampleGroups()},
		{Compartment: "hmCG", Groups: nil},
	}
	fig := PanelFigure("Shh", "% methylation", panels, Dark)
	require.Len(t, fig.Data, 3)
	assert.Empty(t, fig.Data[0].XAxis)
	assert.Equal(t, "x2", fig.Data[1].XAxis)
	assert.Equal(t, "y2", fig.Data[2].YAxis)

	for _, y := range []*Axis{fig.Layout.YAxis, fig.Layout.YAxis2, fig.Layout.YAxis3} {
		require.NotNil(t, y)
		assert.Equal(t, []float64{0, 100}, y.Range)
	}
	assert.Equal(t, "y", fig.Layout.YAxis3.Matches)
	require.Len(t, fig.Layout.Annotations, 3)
	assert.Equal(t, "hmCG", fig.Layout.Annotations[2].Text)
	assert.Less(t, fig.Layout.XAxis.Domain[1], fig.Layout.XAxis2.Domain[0])
	assert.Equal(t, "#111111", fig.Layout.PaperBgColor)
}

func TestWriteImagePNG(t *testing.T) {
	buf := &bytes.Buffer{}
	err := WriteImage(buf, FormatPNG, ImageSpec{Gene: "Shh", Unit: "RPKM", Panels: SinglePanel(sampleGroups()), Theme: Light, Width: 600, Height: 400})
	require.NoError(t, err)
	img, err := png.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())
}

func TestWriteImagePanelsAndPlaceholder(t *testing.T) {
	panels := Panels([]grouping.Panel{
		{Compartment: "modCG", Groups: sampleGroups()},
		{Compartment: "mCG"},
		{Compartment: "hmCG", Groups: sampleGroups()[1:]},
	})
	buf := &bytes.Buffer{}
	err := WriteImage(buf, FormatPNG, ImageSpec{Gene: "Shh", Panels: panels, Theme: Dark, YRange: &MethylationRange, Width: 900, Height: 300})
	require.NoError(t, err)
	img, err := png.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 900, img.Bounds().Dx())

	buf.Reset()
	require.NoError(t, WriteImage(buf, FormatPNG, ImageSpec{Theme: Light}))
	img, err = png.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, defaultWidth, img.Bounds().Dx())
}

func TestWriteImageSVG(t *testing.T) {
	buf := &bytes.Buffer{}
	err := WriteImage(buf, FormatSVG, ImageSpec{Gene: "Shh", Panels: SinglePanel(sampleGroups()), Theme: Light})
	require.NoError(t, err)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.True(t, strings.HasSuffix(out, "</svg>"))

	buf.Reset()
	require.NoError(t, WriteImage(buf, FormatSVG, ImageSpec{Theme: Dark}))
	assert.Contains(t, buf.String(), "no data")
}

func TestParseImageFormat(t *testing.T) {
	f, err := ParseImageFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)
	f, err = ParseImageFormat("SVG")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", f.ContentType())
	_, err = ParseImageFormat("gif")
	assert.ErrorIs(t, err, ErrInvalidImageFormat)
}

func TestWriteImageSingleGroup(t *testing.T) {
	single := []grouping.Group{{Key: "Neurons", Values: []float64{1.2, 1.4}, Color: "#9467bd"}}
	lone := []grouping.Group{{Key: "Old Male", Values: []float64{1.2}, Color: "#d62728"}}

	for _, groups := range [][]grouping.Group{single, lone} {
		buf := &bytes.Buffer{}
		require.NoError(t, WriteImage(buf, FormatPNG, ImageSpec{Gene: "Shh", Unit: "RPKM", Panels: SinglePanel(groups), Theme: Light}))
		_, err := png.Decode(buf)
		require.NoError(t, err)

		buf.Reset()
		require.NoError(t, WriteImage(buf, FormatSVG, ImageSpec{Gene: "Shh", Unit: "RPKM", Panels: SinglePanel(groups), Theme: Dark}))
		assert.NotContains(t, buf.String(), "no data")
	}

	panels := Panels([]grouping.Panel{
		{Compartment: "modCG", Groups: lone},
		{Compartment: "mCG", Groups: single},
		{Compartment: "hmCG"},
	})
	buf := &bytes.Buffer{}
	require.NoError(t, WriteImage(buf, FormatPNG, ImageSpec{Gene: "Shh", Panels: panels, Theme: Light, YRange: &MethylationRange}))
}
