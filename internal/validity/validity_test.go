package validity

import (
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func cube(members []float64, values ...float64) *grid.Cube {
	c := grid.NewCube([]time.Duration{0}, []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		[]float64{0}, make([]float64, len(values)/max(len(members), 1)), members)
	copy(c.Data, values)
	return c
}

func TestReconcile_SharedNullPattern(t *testing.T) {
	fcst := cube(nil, 1, nan, 3, 4)
	obs := cube(nil, 1, 2, nan, 4)

	f, o, mask, err := Reconcile(fcst, obs)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false, false, true}, mask)
	for p := range mask {
		assert.Equal(t, math.IsNaN(f.Data[p]), math.IsNaN(o.Data[p]), "point %d", p)
	}
	assert.Equal(t, 2.0, obs.Data[1], "inputs are not modified")
}

func TestReconcile_ProbabilisticUsesFirstMember(t *testing.T) {
	fcst := cube([]float64{0, 1}, nan, 1, 2, nan)
	obs := cube(nil, 5, 6)

	f, o, mask, err := Reconcile(fcst, obs)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true}, mask)
	assert.True(t, math.IsNaN(f.Data[1]), "every member of a missing point is nulled")
	assert.True(t, math.IsNaN(o.Data[0]))
	assert.Equal(t, 2.0, f.Data[2])
}

func TestReconcile_ShapeMismatch(t *testing.T) {
	_, _, _, err := Reconcile(cube(nil, 1, 2), cube(nil, 1))
	assert.Error(t, err)
}

func grouped(values ...float64) *grid.Grouped {
	g := grid.NewRegional([]time.Duration{0}, nil, make([]string, len(values)))
	copy(g.Data, values)
	return g
}

func TestTracker_StrictThreshold(t *testing.T) {
	nonNull := grouped(0.99, 0.98, 0.75, 1, nan, 0)
	indicator := grouped(1, 1, 1, 1, 1, 0)

	tr, err := NewTracker(nonNull, indicator)
	require.NoError(t, err)

	stat := grouped(10, 20, 30, 40, 50, 60)
	require.NoError(t, tr.Apply(stat))

	assert.Equal(t, 10.0, stat.Data[0])
	assert.True(t, math.IsNaN(stat.Data[1]), "exactly 98 percent coverage is invalid")
	assert.True(t, math.IsNaN(stat.Data[2]))
	assert.Equal(t, 40.0, stat.Data[3])
	assert.True(t, math.IsNaN(stat.Data[4]))
	assert.True(t, math.IsNaN(stat.Data[5]))
	assert.Equal(t, 3, tr.Invalid(), "groups without data are not counted")
}

func TestCovered_RoundoffAtThreshold(t *testing.T) {
	tests := []struct {
		name      string
		nonNull   float64
		indicator float64
		want      bool
	}{
		{"exact", 0.98, 1, false},
		{"one ulp above", math.Nextafter(0.98, 1), 1, false},
		{"weighted sums", 49 * 0.3, 50 * 0.3, false},
		{"just above", 0.9801, 1, true},
		{"full", 1.7, 1.7, true},
		{"no data", 0, 0, false},
		{"missing", nan, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Covered(tt.nonNull, tt.indicator))
		})
	}
}

func TestTracker_ApplyShapeMismatch(t *testing.T) {
	tr, err := NewTracker(grouped(1), grouped(1))
	require.NoError(t, err)
	assert.Error(t, tr.Apply(grouped(1, 2)))
}
