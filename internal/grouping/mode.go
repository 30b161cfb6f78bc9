package grouping

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects which of Age, Sex and CellLine are combined into group keys.
// The numbering matches the grouping selector of the dashboards.
type Mode int

const (
	ModeAge Mode = iota + 1
	ModeSex
	ModeCellLine
	ModeAgeSex
	ModeAgeCellLine
	ModeSexCellLine
	ModeAll
)

// DefaultMode is the grouping shown before the user picks one.
const DefaultMode = ModeAll

type modeSpec struct {
	slug      string
	label     string
	dims      []Dimension
	keyColumn string
}

var modes = map[Mode]modeSpec{
	ModeAge:         {slug: "age", label: "Age", dims: []Dimension{Age}},
	ModeSex:         {slug: "sex", label: "Sex", dims: []Dimension{Sex}},
	ModeCellLine:    {slug: "line", label: "Cell Line", dims: []Dimension{CellLine}},
	ModeAgeSex:      {slug: "age_sex", label: "Age and Sex", dims: []Dimension{Age, Sex}, keyColumn: "AGE_SEX"},
	ModeAgeCellLine: {slug: "age_line", label: "Age and Cell Line", dims: []Dimension{Age, CellLine}, keyColumn: "AGE_LINE"},
	ModeSexCellLine: {slug: "sex_line", label: "Sex and Cell Line", dims: []Dimension{Sex, CellLine}, keyColumn: "LINE_SEX"},
	ModeAll:         {slug: "all", label: "Age, Sex, and Cell Line", dims: []Dimension{Age, Sex, CellLine}, keyColumn: "ALL"},
}

// Modes returns every grouping mode in selector order.
func Modes() []Mode {
	return []Mode{ModeAge, ModeSex, ModeCellLine, ModeAgeSex, ModeAgeCellLine, ModeSexCellLine, ModeAll}
}

// ParseMode accepts either the selector number ("1".."7") or a slug such as
// "age_sex". An empty string yields DefaultMode.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultMode, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		m := Mode(n)
		if !m.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrInvalidMode, n)
		}
		return m, nil
	}
	norm := strings.NewReplacer("+", "_", "-", "_", " ", "_").Replace(strings.ToLower(s))
	for m, spec := range modes {
		if spec.slug == norm {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m Mode) Valid() bool {
	_, ok := modes[m]
	return ok
}

// Dimensions returns the active dimensions in key order (Age, Sex, CellLine).
func (m Mode) Dimensions() []Dimension {
	return modes[m].dims
}

// Active reports whether d takes part in the mode's keys and filters.
func (m Mode) Active(d Dimension) bool {
	for _, a := range modes[m].dims {
		if a.Column == d.Column {
			return true
		}
	}
	return false
}

// KeyColumn is the column name that carries composite keys in exported
// tables. Single-dimension modes have none; the dimension column is the key.
func (m Mode) KeyColumn() string {
	return modes[m].keyColumn
}

func (m Mode) Label() string {
	return modes[m].label
}

func (m Mode) String() string {
	if spec, ok := modes[m]; ok {
		return spec.slug
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}
