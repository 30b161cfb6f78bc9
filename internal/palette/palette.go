// Package palette maps composite group keys to display colors.
package palette

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"expression_atlas/internal/grouping"
)

// BaseColors holds one color per legal dimension value. Composite keys take
// the color of their first component, lightened by the position of the
// remaining components.
var BaseColors = map[string]string{
	"Young":      "#1f77b4",
	"Adult":      "#ff7f0e",
	"Old":        "#d62728",
	"Female":     "#e377c2",
	"Male":       "#17becf",
	"Astrocytes": "#2ca02c",
	"Neurons":    "#9467bd",
	"Microglia":  "#8c564b",
}

// Colorway is the qualitative sequence used for keys with no table entry.
var Colorway = []string{
	"#636efa", "#ef553b", "#00cc96", "#ab63fa", "#ffa15a",
	"#19d3f3", "#ff6692", "#b6e880", "#ff97ff", "#fecb52",
}

// maxLighten bounds how far shaded variants move toward white.
const maxLighten = 0.6

type Palette struct {
	colors map[string]string
}

// New builds the color table for every key the grouping modes can produce
// and applies overrides on top of it.
func New(overrides map[string]string) *Palette {
	p := &Palette{colors: make(map[string]string)}
	for _, m := range grouping.Modes() {
		p.generate(m.Dimensions())
	}
	for k, v := range overrides {
		p.colors[k] = v
	}
	return p
}

// Default returns the generated table without overrides.
func Default() *Palette {
	return New(nil)
}

func (p *Palette) generate(dims []grouping.Dimension) {
	rest := dims[1:]
	combos := 1
	for _, d := range rest {
		combos *= len(d.Order)
	}
	for _, first := range dims[0].Order {
		base := BaseColors[first]
		for i := 0; i < combos; i++ {
			parts := make([]string, len(dims))
			parts[0] = first
			n := i
			for j := len(rest) - 1; j >= 0; j-- {
				size := len(rest[j].Order)
				parts[j+1] = rest[j].Order[n%size]
				n /= size
			}
			p.colors[strings.Join(parts, " ")] = shade(base, i, combos)
		}
	}
}

// Lookup returns the table entry for key.
func (p *Palette) Lookup(key string) (string, bool) {
	c, ok := p.colors[key]
	return c, ok
}

// Resolve returns the color for key, or a deterministic fallback picked by
// hashing the key. fallback reports which one was returned.
func (p *Palette) Resolve(key string) (color string, fallback bool) {
	if c, ok := p.colors[key]; ok {
		return c, false
	}
	return Fallback(key), true
}

// Keys returns every key in the table, sorted.
func (p *Palette) Keys() []string {
	out := make([]string, 0, len(p.colors))
	for k := range p.colors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fallback picks a Colorway entry for key.
func Fallback(key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return Colorway[h.Sum32()%uint32(len(Colorway))]
}

// ToDrawing converts a #rrggbb string to a go-chart color. Malformed input
// yields opaque black.
func ToDrawing(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return drawing.Color{A: 255}
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return drawing.Color{A: 255}
	}
	return drawing.Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// ToHex formats c as #rrggbb, dropping alpha.
func ToHex(c drawing.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func shade(hex string, i, n int) string {
	if i == 0 || n <= 1 {
		return hex
	}
	t := maxLighten * float64(i) / float64(n)
	c := ToDrawing(hex)
	lift := func(v uint8) uint8 {
		return v + uint8(float64(255-v)*t)
	}
	return ToHex(drawing.Color{R: lift(c.R), G: lift(c.G), B: lift(c.B), A: 255})
}
