package climatology

import (
	"math"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/montanaflynn/stats"
)

const (
	// DryThreshold is the precipitation below which a period counts as dry, in mm.
	DryThreshold = 0.25

	// wetQuantile splits non-dry periods into light and heavy.
	wetQuantile = 2.0 / 3.0

	minDryFraction = 0.03
	maxDryFraction = 0.93
)

// SEEPS holds the per-cell thresholds the SEEPS score needs.
type SEEPS struct {
	WetThreshold *Daily
	DryFraction  *Daily
	// P1 is the annual mean dry fraction per cell, missing where the climate is
	// too dry or too wet for the score to be meaningful.
	P1 []float64
}

// NewSEEPS derives SEEPS thresholds from a precipitation history.
func NewSEEPS(history *grid.Cube) (*SEEPS, error) {
	buckets, err := byDay(history)
	if err != nil {
		return nil, err
	}
	wet, err := reduce(history, buckets, func(d stats.Float64Data) (float64, error) {
		return stats.PercentileNearestRank(d, wetQuantile*100)
	})
	if err != nil {
		return nil, err
	}
	dry, err := reduce(history, buckets, func(d stats.Float64Data) (float64, error) {
		isDry := make(stats.Float64Data, len(d))
		for i, v := range d {
			if v < DryThreshold {
				isDry[i] = 1
			}
		}
		return stats.Mean(isDry)
	})
	if err != nil {
		return nil, err
	}
	return &SEEPS{WetThreshold: wet, DryFraction: dry, P1: annualDryFraction(dry)}, nil
}

func annualDryFraction(dry *Daily) []float64 {
	nCell := len(dry.Lats) * len(dry.Lons)
	p1 := make([]float64, nCell)
	for cell := range nCell {
		var days stats.Float64Data
		for day := 1; day <= Days; day++ {
			if v := dry.At(day, cell); !math.IsNaN(v) {
				days = append(days, v)
			}
		}
		mean, err := stats.Mean(days)
		if err != nil || mean <= minDryFraction || mean >= maxDryFraction {
			p1[cell] = math.NaN()
			continue
		}
		p1[cell] = mean
	}
	return p1
}
