package fixture

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forecast-verification-service/internal/climatology"
	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/couchcryptid/forecast-verification-service/internal/metric"
)

var (
	lats = []float64{-45, 45}
	lons = []float64{0, 90}
	day0 = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func field(times []time.Time, cells ...float64) *grid.Cube {
	c := grid.NewCube([]time.Duration{0}, times, lats, lons, nil)
	for ti := range times {
		copy(c.Data[c.Index(0, ti, 0, 0):], cells)
	}
	return c
}

func days(from time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = from.AddDate(0, 0, i)
	}
	return out
}

func query() grid.Query {
	return grid.Query{Start: day0, End: day0.AddDate(0, 0, 3), Variable: "precip", AggDays: 1, Grid: "test"}
}

// newStore writes a small data directory: forecast "fc", truth "obs", a land
// mask and two region layers that share the region "west".
func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	file := DatasetFile("precip", "test", 1)
	write := func(v any, parts ...string) {
		require.NoError(t, WriteJSON(filepath.Join(append([]string{root}, parts...)...), v))
	}

	write(field(days(day0, 6), 2, 3, 4, 5), ForecastDir, "fc", file)
	write(field(days(day0, 6), 1, 2, 3, 4), TruthDir, "obs", file)
	write(&grid.Mask{Lats: lats, Lons: lons, Values: []float64{1, 0, 1, 0}}, MaskDir, GridFile("land", "test"))
	write(&grid.Labels{Lats: lats, Lons: lons, Values: []string{"west", "east", "west", "east"}}, RegionDir, GridFile("halves", "test"))
	write(&grid.Labels{Lats: lats, Lons: lons, Values: []string{"west", "west", "north", "north"}}, RegionDir, GridFile("zones", "test"))
	write(&grid.Labels{Lats: lats, Lons: lons, Values: []string{"a", "a", "a", "a"}}, RegionDir, GridFile("other", "coarse"))

	return New(root, discardLogger()), root
}

func TestStore_Forecast(t *testing.T) {
	s, _ := newStore(t)

	c, err := s.Forecast(context.Background(), "fc", query())
	require.NoError(t, err)
	assert.Equal(t, 4, c.NTime(), "times outside the query are dropped")
	assert.True(t, day0.Equal(c.Times[0]))
	assert.InDelta(t, 2.0, c.Data[0], 0)
	assert.Equal(t, grid.Deterministic, c.Meta.ProbType)
}

func TestStore_DatasetErrors(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		load   func() error
		target error
	}{
		{"unknown forecast", func() error { _, err := s.Forecast(ctx, "missing", query()); return err }, domain.ErrUnknownSource},
		{"unknown truth", func() error { _, err := s.Truth(ctx, "missing", query()); return err }, domain.ErrUnknownSource},
		{"missing variable", func() error {
			q := query()
			q.Variable = "tmp2m"
			_, err := s.Truth(ctx, "obs", q)
			return err
		}, domain.ErrDataUnavailable},
		{"path traversal", func() error { _, err := s.Forecast(ctx, "../truth", query()); return err }, domain.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.load(), tt.target)
		})
	}
}

func TestStore_CorruptDataset(t *testing.T) {
	s, root := newStore(t)
	path := filepath.Join(root, TruthDir, "obs", DatasetFile("precip", "test", 1))
	require.NoError(t, os.WriteFile(path, []byte(`{"lats":[0],"lons":[0],"times":[],"values":[1,2]}`), 0o600))

	_, err := s.Truth(context.Background(), "obs", query())
	require.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "decode")
}

func TestStore_CanceledContext(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Forecast(ctx, "fc", query())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Mask(t *testing.T) {
	s, _ := newStore(t)

	m, err := s.Mask(context.Background(), "land", "test")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1, 0}, m.Values)

	_, err = s.Mask(context.Background(), "ocean", "test")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestStore_Resolve(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input string
		want  metric.Level
	}{
		{"layer", "halves", metric.Level{Name: "halves", Regions: []string{"east", "west"}}},
		{"region in one layer", "east", metric.Level{Name: "halves", Regions: []string{"east"}}},
		{"region in other layer", "north", metric.Level{Name: "zones", Regions: []string{"north"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(ctx, "test", tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.Resolve(ctx, "test", "west")
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "ambiguous")

	_, err = s.Resolve(ctx, "test", "south")
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "region south not found")

	_, err = s.Resolve(ctx, "test", "a")
	assert.ErrorIs(t, err, domain.ErrConfiguration, "layers of other grids are not searched")
}

func TestStore_Layers(t *testing.T) {
	s, _ := newStore(t)

	layers, err := s.Layers("test")
	require.NoError(t, err)
	assert.Equal(t, []string{"halves", "zones"}, layers)

	empty := New(t.TempDir(), discardLogger())
	layers, err = empty.Layers("test")
	require.NoError(t, err)
	assert.Empty(t, layers)
}

func TestStore_DailyClimatology(t *testing.T) {
	s, root := newStore(t)
	ctx := context.Background()

	_, err := s.Daily(ctx, "precip", 1, "test")
	require.ErrorIs(t, err, domain.ErrNotImplemented, "no history file")

	history := field([]time.Time{
		time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC),
	}, 0, 0, 0, 0)
	for cell := range 4 {
		history.Data[history.Index(0, 0, cell, 0)] = 1
		history.Data[history.Index(0, 1, cell, 0)] = 3
	}
	path := filepath.Join(root, ClimatologyDir, DatasetFile("precip", "test", 1))
	require.NoError(t, WriteJSON(path, history))

	d, err := s.Daily(ctx, "precip", 1, "test")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d.At(climatology.DayOfYear(day0), 0), 1e-12)

	require.NoError(t, os.Remove(path))
	again, err := s.Daily(ctx, "precip", 1, "test")
	require.NoError(t, err)
	assert.Same(t, d, again, "derived climatology is kept in memory")
}

func TestStore_SEEPSClimatology(t *testing.T) {
	s, root := newStore(t)
	ctx := context.Background()

	_, err := s.SEEPS(ctx, 1, "test")
	require.ErrorIs(t, err, domain.ErrNotImplemented)

	history := field(days(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), 366), 0, 1, 5, 10)
	require.NoError(t, WriteJSON(filepath.Join(root, ClimatologyDir, DatasetFile("precip", "test", 1)), history))

	sp, err := s.SEEPS(ctx, 1, "test")
	require.NoError(t, err)
	assert.Len(t, sp.P1, 4)
	assert.Equal(t, lats, sp.WetThreshold.Lats)
}

func TestStore_Names(t *testing.T) {
	s, _ := newStore(t)

	names, err := s.Names(ForecastDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"fc"}, names)

	names, err = s.Names(ClimatologyDir)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_ServesEngine(t *testing.T) {
	s, _ := newStore(t)
	e := metric.NewEngine(metric.Deps{Data: s, Regions: s, Masks: s, Climatology: s})
	cfg := metric.Config{
		Start: day0, End: day0.AddDate(0, 0, 3),
		Variable: "precip", AggDays: 1, Forecast: "fc", Truth: "obs", Grid: "test",
	}
	ctx := context.Background()

	res, err := e.Compute(ctx, "mae", cfg)
	require.NoError(t, err)
	require.Len(t, res.Values.Data, 1)
	assert.InDelta(t, 1.0, res.Values.Data[0], 1e-12)

	cfg.Mask = "land"
	res, err = e.Compute(ctx, "bias", cfg)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Values.Data[0], 1e-12)

	cfg.Mask = ""
	cfg.Region = "east"
	res, err = e.Compute(ctx, "bias", cfg)
	require.NoError(t, err)
	// A region clips the data and the result is still reduced globally.
	assert.Equal(t, []string{"global"}, res.Values.Regions)
	assert.InDelta(t, 1.0, res.Values.Data[0], 1e-12)

	_, err = e.Compute(ctx, "acc", cfg)
	assert.ErrorIs(t, err, domain.ErrNotImplemented, "no climatology history")
}

func TestParseDatasetFile(t *testing.T) {
	tests := []struct {
		file     string
		variable string
		grid     string
		agg      int
		ok       bool
	}{
		{DatasetFile("precip", "global1_5", 7), "precip", "global1_5", 7, true},
		{"tmp2m-demo-agg1.json", "tmp2m", "demo", 1, true},
		{"precip-demo-agg0.json", "", "", 0, false},
		{"precip-demo.json", "", "", 0, false},
		{"precip-agg1.json", "", "", 0, false},
		{"precip-demo-agg1.txt", "", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			variable, gridName, agg, ok := ParseDatasetFile(tt.file)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.variable, variable)
			assert.Equal(t, tt.grid, gridName)
			assert.Equal(t, tt.agg, agg)
		})
	}
}
