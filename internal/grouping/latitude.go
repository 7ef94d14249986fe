package grouping

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// maxSpacingStdDev bounds the spread of latitude spacing, in radians.
const maxSpacingStdDev = 0.5

// ErrNonuniformGrid is returned when latitude spacing is too irregular to
// derive cell bounds from the mean spacing.
var ErrNonuniformGrid = errors.New("nonuniform grid")

// LatitudeWeights returns per-row area weights normalised to mean 1. Each row
// is weighted by sin(upper) - sin(lower) of its latitude band.
func LatitudeWeights(lats []float64) ([]float64, error) {
	n := len(lats)
	if n == 0 {
		return nil, nil
	}
	rad := make([]float64, n)
	for i, l := range lats {
		rad[i] = l * math.Pi / 180
	}

	bounds := make([]float64, n+1)
	if floats.Min(lats) == -90 && floats.Max(lats) == 90 {
		bounds[0] = -math.Pi / 2
		bounds[n] = math.Pi / 2
	} else {
		spacing := 0.0
		if n > 1 {
			diff := make([]float64, n-1)
			for i := range diff {
				diff[i] = rad[i+1] - rad[i]
			}
			mean, std := stat.PopMeanStdDev(diff, nil)
			if std > maxSpacingStdDev {
				return nil, ErrNonuniformGrid
			}
			spacing = mean
		}
		bounds[0] = rad[0] - spacing/2
		bounds[n] = rad[n-1] + spacing/2
	}
	for i := 1; i < n; i++ {
		bounds[i] = (rad[i-1] + rad[i]) / 2
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = math.Sin(bounds[i+1]) - math.Sin(bounds[i])
	}
	mean := stat.Mean(weights, nil)
	if mean == 0 {
		// a single row has no extent; every cell counts equally
		for i := range weights {
			weights[i] = 1
		}
		return weights, nil
	}
	floats.Scale(1/mean, weights)
	return weights, nil
}
