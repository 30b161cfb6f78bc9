package render

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTheme is returned by ParseTheme for unknown names.
var ErrInvalidTheme = errors.New("render: invalid theme")

// Theme holds the colors a figure is drawn with. It is chosen per request.
type Theme struct {
	Name    string
	PlotBg  string
	PaperBg string
	Font    string
	Grid    string
}

var (
	Light = Theme{Name: "light", PlotBg: "#f0f0f0", PaperBg: "#ffffff", Font: "#2a3f5f", Grid: "#ffffff"}
	Dark  = Theme{Name: "dark", PlotBg: "#222222", PaperBg: "#111111", Font: "#f2f5fa", Grid: "#444444"}
)

// ParseTheme resolves "light" (also the empty string) or "dark".
func ParseTheme(s string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "light":
		return Light, nil
	case "dark":
		return Dark, nil
	default:
		return Theme{}, fmt.Errorf("%w: %q", ErrInvalidTheme, s)
	}
}
