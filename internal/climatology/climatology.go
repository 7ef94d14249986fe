// Package climatology derives day-of-year reference fields from a history of
// observations: the mean climatology used for anomalies and the SEEPS
// precipitation thresholds.
package climatology

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/montanaflynn/stats"
)

// Days is the length of the day-of-year axis, leap day included.
const Days = 366

// DayOfYear maps a date onto a leap-year calendar so a calendar date lands in
// the same slot every year.
func DayOfYear(t time.Time) int {
	return time.Date(2000, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).YearDay()
}

// Daily holds one value per day of year and cell.
type Daily struct {
	Lats   []float64
	Lons   []float64
	Values []float64 // (day-1, cell)
}

// At returns the value for a 1-based day of year and cell.
func (d *Daily) At(day, cell int) float64 {
	return d.Values[(day-1)*len(d.Lats)*len(d.Lons)+cell]
}

// Expand lays the climatology out on the given leads and valid times.
func (d *Daily) Expand(leads []time.Duration, times []time.Time) *grid.Cube {
	c := grid.NewCube(leads, times, d.Lats, d.Lons, nil)
	nCell := c.NCell()
	for l := range leads {
		for ti, t := range times {
			src := (DayOfYear(t) - 1) * nCell
			copy(c.Data[c.Index(l, ti, 0, 0):], d.Values[src:src+nCell])
		}
	}
	return c
}

// byDay collects the non-missing history values per day of year and cell.
func byDay(history *grid.Cube) ([][]float64, error) {
	if history.NMember() != 1 {
		return nil, fmt.Errorf("climatology history must be deterministic")
	}
	nCell := history.NCell()
	buckets := make([][]float64, Days*nCell)
	for ti, t := range history.Times {
		base := (DayOfYear(t) - 1) * nCell
		src := history.Index(0, ti, 0, 0)
		for cell := range nCell {
			if v := history.Data[src+cell]; !math.IsNaN(v) {
				buckets[base+cell] = append(buckets[base+cell], v)
			}
		}
	}
	return buckets, nil
}

// reduce applies fn to every bucket; empty buckets stay missing.
func reduce(history *grid.Cube, buckets [][]float64, fn func(stats.Float64Data) (float64, error)) (*Daily, error) {
	d := &Daily{Lats: history.Lats, Lons: history.Lons, Values: make([]float64, len(buckets))}
	for i, b := range buckets {
		if len(b) == 0 {
			d.Values[i] = math.NaN()
			continue
		}
		v, err := fn(b)
		if err != nil {
			return nil, err
		}
		d.Values[i] = v
	}
	return d, nil
}

// Mean computes the day-of-year mean of a history cube's first lead.
func Mean(history *grid.Cube) (*Daily, error) {
	buckets, err := byDay(history)
	if err != nil {
		return nil, err
	}
	return reduce(history, buckets, stats.Mean)
}
