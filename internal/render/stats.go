package render

import (
	"math"
	"sort"
)

// Summary is the five-number summary drawn for one box, plus the mean and
// the whisker ends (most extreme values within 1.5 IQR of the box).
type Summary struct {
	N          int     `json:"n"`
	Min        float64 `json:"min"`
	Q1         float64 `json:"q1"`
	Median     float64 `json:"median"`
	Q3         float64 `json:"q3"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	LowerFence float64 `json:"lower_fence"`
	UpperFence float64 `json:"upper_fence"`
}

// Summarize computes a Summary with linearly interpolated quartiles. An
// empty input yields the zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	s := Summary{
		N:      len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q1:     quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q3:     quantile(sorted, 0.75),
		Mean:   sum / float64(len(sorted)),
	}
	iqr := s.Q3 - s.Q1
	lo, hi := s.Q1-1.5*iqr, s.Q3+1.5*iqr
	s.LowerFence, s.UpperFence = s.Min, s.Max
	for _, v := range sorted {
		if v >= lo {
			s.LowerFence = v
			break
		}
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i] <= hi {
			s.UpperFence = sorted[i]
			break
		}
	}
	return s
}

func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lower := math.Floor(pos)
	upper := math.Ceil(pos)
	if lower == upper {
		return sorted[int(pos)]
	}
	frac := pos - lower
	return sorted[int(lower)]*(1-frac) + sorted[int(upper)]*frac
}
