package statistic

import (
	"fmt"
	"math"

	"github.com/couchcryptid/forecast-verification-service/internal/climatology"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

const (
	seepsNone = iota - 1
	seepsDry
	seepsLight
	seepsHeavy
)

// seepsCategory classifies a precipitation value. A value exactly at the dry
// threshold and below the wet threshold falls in no category.
func seepsCategory(v, wet float64) int {
	switch {
	case v < climatology.DryThreshold:
		return seepsDry
	case v >= wet:
		return seepsHeavy
	case v > climatology.DryThreshold:
		return seepsLight
	default:
		return seepsNone
	}
}

// SEEPSPenalty returns the score for a forecast and observed category given
// the annual dry fraction p1 of the cell.
func SEEPSPenalty(fcstCat, obsCat int, p1 float64) float64 {
	matrix := [3][3]float64{
		{0, 1 / (1 - p1), 4 / (1 - p1)},
		{1 / p1, 0, 3 / (1 - p1)},
		{1/p1 + 3/(2+p1), 3 / (2 + p1), 0},
	}
	return 0.5 * matrix[fcstCat][obsCat]
}

func seeps(in *Inputs) (*grid.Cube, error) {
	s := in.SEEPS
	if s == nil {
		return nil, nil
	}
	if len(s.P1) != in.Obs.NCell() {
		return nil, fmt.Errorf("seeps climatology has %d cells, data %d", len(s.P1), in.Obs.NCell())
	}

	out := in.Obs.Like(in.meta(true))
	nCell := in.Obs.NCell()
	for l := range in.Obs.Leads {
		for ti, t := range in.Obs.Times {
			day := climatology.DayOfYear(t)
			base := in.Obs.Index(l, ti, 0, 0)
			for cell := range nCell {
				p := base + cell
				f, o := fcstAt(in.Fcst, p), in.Obs.Data[p]
				wet, p1 := s.WetThreshold.At(day, cell), s.P1[cell]
				if math.IsNaN(f) || math.IsNaN(o) || math.IsNaN(wet) || math.IsNaN(p1) {
					continue
				}
				fc, oc := seepsCategory(f, wet), seepsCategory(o, wet)
				if fc == seepsNone || oc == seepsNone {
					out.Data[p] = 0
					continue
				}
				out.Data[p] = SEEPSPenalty(fc, oc, p1)
			}
		}
	}
	return out, nil
}
