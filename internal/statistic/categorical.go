package statistic

import (
	"math"
	"sort"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

// Contingency tables compare the first bin (no event) with the second (event).
// Points in higher bins count toward neither outcome.
const (
	nonEventCategory = 1
	eventCategory    = 2
)

// Digitize returns the 1-based bin index of x such that
// bins[i-1] < x <= bins[i], clamped to the first bin. Missing values stay
// missing.
func Digitize(x float64, bins []float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	return float64(max(sort.SearchFloat64s(bins, x), 1))
}

func requireBins(in *Inputs) error {
	if len(in.Bins) < 2 {
		return domain.Configf("categorical statistic requires bin edges")
	}
	return nil
}

// digitized maps each (forecast, observation) pair to bin indices and applies fn.
func digitized(in *Inputs, fn func(fd, od float64) float64) (*grid.Cube, error) {
	if err := requireBins(in); err != nil {
		return nil, err
	}
	return pairwise(in, func(f, o float64) float64 {
		return fn(Digitize(f, in.Bins), Digitize(o, in.Bins))
	}), nil
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func obsDigitized(in *Inputs) (*grid.Cube, error) {
	return digitized(in, func(_, od float64) float64 { return od })
}

func fcstDigitized(in *Inputs) (*grid.Cube, error) {
	return digitized(in, func(fd, _ float64) float64 { return fd })
}

// contingency counts the cell of the 2x2 table with the given observed and
// forecast event outcomes.
func contingency(obsEvent, fcstEvent bool) Func {
	want := func(event bool) float64 {
		if event {
			return eventCategory
		}
		return nonEventCategory
	}
	oc, fc := want(obsEvent), want(fcstEvent)
	return func(in *Inputs) (*grid.Cube, error) {
		return digitized(in, func(fd, od float64) float64 {
			return indicator(od == oc && fd == fc)
		})
	}
}

func nCorrect(in *Inputs) (*grid.Cube, error) {
	return digitized(in, func(fd, od float64) float64 { return indicator(fd == od) })
}

// binCount marks points whose forecast (or observation) falls in category.
func binCount(forecast bool, category int) Func {
	c := float64(category)
	return func(in *Inputs) (*grid.Cube, error) {
		return digitized(in, func(fd, od float64) float64 {
			if forecast {
				return indicator(fd == c)
			}
			return indicator(od == c)
		})
	}
}
