package statistic

import (
	"math"
	"slices"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"gonum.org/v1/gonum/integrate"
)

// presentMembers returns the non-missing member values of point p.
func presentMembers(c *grid.Cube, p int, buf []float64) []float64 {
	buf = buf[:0]
	for _, v := range c.Point(p) {
		if !math.IsNaN(v) {
			buf = append(buf, v)
		}
	}
	return buf
}

func crps(in *Inputs) (*grid.Cube, error) {
	if in.Fcst.Meta.ProbType == grid.Quantile {
		return crpsQuantile(in)
	}
	out := in.Obs.Like(in.meta(false))
	buf := make([]float64, 0, in.Fcst.NMember())
	for p := range out.Data {
		y := in.Obs.Data[p]
		members := presentMembers(in.Fcst, p, buf)
		if math.IsNaN(y) || len(members) == 0 {
			continue
		}
		out.Data[p] = CRPSEnsemble(members, y)
	}
	return out, nil
}

// CRPSEnsemble scores an ensemble against an observation:
// mean|x_i - y| - 1/2 mean|x_i - x_j|. members is sorted in place.
func CRPSEnsemble(members []float64, y float64) float64 {
	m := float64(len(members))
	slices.Sort(members)
	skill, spread := 0.0, 0.0
	for i, x := range members {
		skill += math.Abs(x - y)
		spread += (2*float64(i) - m + 1) * x
	}
	return skill/m - spread/(m*m)
}

func crpsQuantile(in *Inputs) (*grid.Cube, error) {
	levels := in.Fcst.Members
	if !slices.IsSorted(levels) {
		return nil, nil
	}
	out := in.Obs.Like(in.meta(false))
	qs := make([]float64, 0, len(levels))
	scores := make([]float64, 0, len(levels))
	for p := range out.Data {
		y := in.Obs.Data[p]
		if math.IsNaN(y) {
			continue
		}
		qs, scores = qs[:0], scores[:0]
		for k, f := range in.Fcst.Point(p) {
			if math.IsNaN(f) {
				continue
			}
			qs = append(qs, levels[k])
			scores = append(scores, quantileScore(f-y, levels[k]))
		}
		if len(qs) < 2 {
			continue
		}
		out.Data[p] = integrate.Trapezoidal(qs, scores)
	}
	return out, nil
}

// quantileScore is twice the pinball loss of a quantile forecast error.
func quantileScore(diff, q float64) float64 {
	return 2 * (indicator(diff > 0) - q) * diff
}

func brier(in *Inputs) (*grid.Cube, error) {
	if err := requireBins(in); err != nil {
		return nil, err
	}
	out := in.Obs.Like(in.meta(false))
	buf := make([]float64, 0, in.Fcst.NMember())
	for p := range out.Data {
		y := in.Obs.Data[p]
		members := presentMembers(in.Fcst, p, buf)
		if math.IsNaN(y) || len(members) == 0 {
			continue
		}
		events := 0.0
		for _, x := range members {
			events += indicator(Digitize(x, in.Bins) == eventCategory)
		}
		prob := events / float64(len(members))
		d := prob - indicator(Digitize(y, in.Bins) == eventCategory)
		out.Data[p] = d * d
	}
	return out, nil
}
