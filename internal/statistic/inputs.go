// Package statistic computes the elementwise building blocks of verification
// metrics on ungrouped (lead, time, lat, lon) arrays.
package statistic

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/forecast-verification-service/internal/climatology"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

// Inputs is the prepared data bundle shared by every statistic of a metric.
// Obs and Fcst are aligned on leads, times and grid and share one null pattern.
type Inputs struct {
	Obs  *grid.Cube
	Fcst *grid.Cube
	// Sparse marks pairs whose nulls reflect genuine data unavailability.
	Sparse bool
	// Bins are the digitization edges including -Inf and +Inf; nil unless the
	// metric is categorical.
	Bins []float64
	// Climatology is aligned with Obs; nil when no climatology is available.
	Climatology *grid.Cube
	SEEPS       *climatology.SEEPS
}

func (in *Inputs) meta(sparse bool) grid.Meta {
	return grid.Meta{Sparse: in.Sparse || sparse, ProbType: in.Fcst.Meta.ProbType}
}

// Func computes one statistic. A nil cube with a nil error means the statistic
// is not available for these inputs.
type Func func(in *Inputs) (*grid.Cube, error)

// Key identifies a statistic computation for memoisation. Statistics are
// computed before any spatial reduction, so region and mask are not part of it.
type Key struct {
	Variable  string
	AggDays   int
	Forecast  string
	Truth     string
	DataKey   string
	Grid      string
	Statistic string
	Start     time.Time
	End       time.Time
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d|%s|%s|%s|%s|%s|%s|%s",
		k.Variable, k.AggDays, k.Forecast, k.Truth, k.DataKey, k.Grid, k.Statistic,
		k.Start.UTC().Format(time.DateOnly), k.End.UTC().Format(time.DateOnly))
}

// Computer produces statistics on behalf of the metric engine.
type Computer interface {
	Compute(ctx context.Context, key Key, in *Inputs) (*grid.Cube, error)
}

// Library computes statistics directly from the registry.
type Library struct{}

// Compute looks up and runs the statistic named by key.
func (Library) Compute(ctx context.Context, key Key, in *Inputs) (*grid.Cube, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fn, err := Lookup(key.Statistic)
	if err != nil {
		return nil, err
	}
	return fn(in)
}

// Bins wraps interior edges with -Inf and +Inf.
func Bins(edges []float64) []float64 {
	bins := make([]float64, 0, len(edges)+2)
	bins = append(bins, math.Inf(-1))
	bins = append(bins, edges...)
	return append(bins, math.Inf(1))
}
