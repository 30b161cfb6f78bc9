package palette

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expression_atlas/internal/grouping"
)

func product(dims []grouping.Dimension) []string {
	keys := []string{""}
	for _, d := range dims {
		next := make([]string, 0, len(keys)*len(d.Order))
		for _, k := range keys {
			for _, v := range d.Order {
				next = append(next, strings.TrimSpace(k+" "+v))
			}
		}
		keys = next
	}
	return keys
}

func TestEveryModeKeyHasColor(t *testing.T) {
	p := Default()
	for _, m := range grouping.Modes() {
		for _, key := range product(m.Dimensions()) {
			c, ok := p.Lookup(key)
			require.True(t, ok, "mode %s key %q", m, key)
			assert.Regexp(t, `^#[0-9a-f]{6}$`, c)
		}
	}
	// 3 + 2 + 3 + 6 + 9 + 6 + 18
	assert.Len(t, p.Keys(), 47)
}

func TestSingleValuesUseBaseColors(t *testing.T) {
	p := Default()
	for value, base := range BaseColors {
		c, ok := p.Lookup(value)
		require.True(t, ok)
		assert.Equal(t, base, c)
	}
}

func TestCompositeShadesStayDistinct(t *testing.T) {
	p := Default()
	seen := map[string]string{}
	for _, key := range product(grouping.ModeAll.Dimensions()) {
		c, _ := p.Lookup(key)
		if other, dup := seen[c]; dup {
			t.Fatalf("%q and %q share color %s", key, other, c)
		}
		seen[c] = key
	}
	c, _ := p.Lookup("Old Female Astrocytes")
	assert.Equal(t, BaseColors["Old"], c)
}

func TestResolveFallbackIsDeterministic(t *testing.T) {
	p := Default()
	c1, fallback := p.Resolve("Ancient Male")
	require.True(t, fallback)
	c2, _ := p.Resolve("Ancient Male")
	assert.Equal(t, c1, c2)
	assert.Contains(t, Colorway, c1)

	c, fallback := p.Resolve("Neurons")
	assert.False(t, fallback)
	assert.Equal(t, BaseColors["Neurons"], c)
}

func TestOverrides(t *testing.T) {
	p := New(map[string]string{"Old Male": "#000001", "Ancient": "#000002"})
	c, _ := p.Lookup("Old Male")
	assert.Equal(t, "#000001", c)
	c, fallback := p.Resolve("Ancient")
	assert.False(t, fallback)
	assert.Equal(t, "#000002", c)
}

func TestHexRoundTrip(t *testing.T) {
	c := ToDrawing("#9467bd")
	assert.Equal(t, uint8(0x94), c.R)
	assert.Equal(t, uint8(0x67), c.G)
	assert.Equal(t, uint8(0xbd), c.B)
	assert.Equal(t, "#9467bd", ToHex(c))
	assert.Equal(t, uint8(255), ToDrawing("nope").A)
}
