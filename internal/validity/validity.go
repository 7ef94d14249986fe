// Package validity enforces the two null-handling rules of verification:
// forecast and observation share one null pattern, and a grouped value is only
// reported when nearly all of its underlying data was present.
package validity

import (
	"fmt"
	"math"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

// Threshold is the coverage fraction a group must strictly exceed to be kept.
const Threshold = 0.98

// tolerance absorbs the roundoff of latitude-weighted means, so a group at
// exactly Threshold stays invalid.
const tolerance = 1e-9

// Reconcile nulls every point where either the forecast or the observation is
// missing and returns the reconciled copies together with the shared mask.
// Probabilistic forecasts are tested on their first member.
func Reconcile(fcst, obs *grid.Cube) (*grid.Cube, *grid.Cube, []bool, error) {
	if fcst.Points() != obs.Points() {
		return nil, nil, nil, fmt.Errorf("forecast has %d points, observation %d", fcst.Points(), obs.Points())
	}
	f := fcst.Clone()
	o := obs.Clone()
	noNull := make([]bool, f.Points())
	for p := range noNull {
		fv := f.Point(p)
		ov := o.Point(p)
		noNull[p] = !math.IsNaN(fv[0]) && !math.IsNaN(ov[0])
		if noNull[p] {
			continue
		}
		grid.Fill(fv, math.NaN())
		grid.Fill(ov, math.NaN())
	}
	return f, o, noNull, nil
}

// Tracker records which groups passed the coverage check so the same groups can
// be invalidated in every statistic of a metric.
type Tracker struct {
	valid   []bool
	invalid int
}

// NewTracker compares the grouped non-null indicator with the grouped all-ones
// indicator. Both must have been reduced exactly like the statistics.
func NewTracker(nonNull, indicator *grid.Grouped) (*Tracker, error) {
	if !nonNull.SameShape(indicator) {
		return nil, fmt.Errorf("coverage indicators have mismatched shapes")
	}
	t := &Tracker{valid: make([]bool, len(nonNull.Data))}
	for i := range nonNull.Data {
		t.valid[i] = Covered(nonNull.Data[i], indicator.Data[i])
		if !t.valid[i] && indicator.Data[i] > 0 {
			t.invalid++
		}
	}
	return t, nil
}

// Covered reports whether nonNull/indicator strictly exceeds Threshold. The
// comparison is made on the weighted sums with a relative tolerance.
func Covered(nonNull, indicator float64) bool {
	if math.IsNaN(nonNull) || math.IsNaN(indicator) || indicator <= 0 {
		return false
	}
	return nonNull-Threshold*indicator > tolerance*indicator
}

// Apply nulls every group of g that failed the coverage check.
func (t *Tracker) Apply(g *grid.Grouped) error {
	if len(g.Data) != len(t.valid) {
		return fmt.Errorf("statistic has %d groups, tracker %d", len(g.Data), len(t.valid))
	}
	for i, ok := range t.valid {
		if !ok {
			g.Data[i] = math.NaN()
		}
	}
	return nil
}

// Invalid returns the number of groups that had data but failed the coverage
// check.
func (t *Tracker) Invalid() int { return t.invalid }
