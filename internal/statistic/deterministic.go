package statistic

import (
	"math"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

// mapeFloor keeps the percentage error finite where the observation is zero.
const mapeFloor = 1e-10

// fcstAt returns the forecast at point p, averaging members when present.
func fcstAt(c *grid.Cube, p int) float64 {
	v := c.Point(p)
	if len(v) == 1 {
		return v[0]
	}
	sum, n := 0.0, 0
	for _, x := range v {
		if !math.IsNaN(x) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// pairwise applies fn where both forecast and observation are present.
func pairwise(in *Inputs, fn func(f, o float64) float64) *grid.Cube {
	out := in.Obs.Like(in.meta(false))
	for p := range out.Data {
		f, o := fcstAt(in.Fcst, p), in.Obs.Data[p]
		if math.IsNaN(f) || math.IsNaN(o) {
			continue
		}
		out.Data[p] = fn(f, o)
	}
	return out
}

// anomalies applies fn to forecast and observation anomalies, or reports the
// statistic unavailable when no climatology was provided.
func anomalies(in *Inputs, fn func(fa, oa float64) float64) (*grid.Cube, error) {
	if in.Climatology == nil {
		return nil, nil
	}
	clim := in.Climatology
	out := in.Obs.Like(in.meta(false))
	for p := range out.Data {
		f, o, c := fcstAt(in.Fcst, p), in.Obs.Data[p], clim.Data[p]
		if math.IsNaN(f) || math.IsNaN(o) || math.IsNaN(c) {
			continue
		}
		out.Data[p] = fn(f-c, o-c)
	}
	return out, nil
}

func obsValue(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(_, o float64) float64 { return o }), nil
}

func fcstValue(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(f, _ float64) float64 { return f }), nil
}

func squaredObs(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(_, o float64) float64 { return o * o }), nil
}

func squaredFcst(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(f, _ float64) float64 { return f * f }), nil
}

func covariance(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(f, o float64) float64 { return f * o }), nil
}

func obsAnom(in *Inputs) (*grid.Cube, error) {
	return anomalies(in, func(_, oa float64) float64 { return oa })
}

func fcstAnom(in *Inputs) (*grid.Cube, error) {
	return anomalies(in, func(fa, _ float64) float64 { return fa })
}

func squaredObsAnom(in *Inputs) (*grid.Cube, error) {
	return anomalies(in, func(_, oa float64) float64 { return oa * oa })
}

func squaredFcstAnom(in *Inputs) (*grid.Cube, error) {
	return anomalies(in, func(fa, _ float64) float64 { return fa * fa })
}

func anomCovariance(in *Inputs) (*grid.Cube, error) {
	return anomalies(in, func(fa, oa float64) float64 { return fa * oa })
}

func nValid(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(_, _ float64) float64 { return 1 }), nil
}

func mae(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(f, o float64) float64 { return math.Abs(f - o) }), nil
}

func mse(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(f, o float64) float64 { return (f - o) * (f - o) }), nil
}

func bias(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(f, o float64) float64 { return f - o }), nil
}

func mape(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(f, o float64) float64 {
		return math.Abs(f-o) / math.Max(math.Abs(o), mapeFloor)
	}), nil
}

func smape(in *Inputs) (*grid.Cube, error) {
	return pairwise(in, func(f, o float64) float64 {
		denom := math.Abs(f) + math.Abs(o)
		if denom == 0 {
			// both zero is a perfect forecast
			return 0
		}
		return math.Abs(f-o) / denom
	}), nil
}
