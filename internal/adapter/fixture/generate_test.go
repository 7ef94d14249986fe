package fixture

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/couchcryptid/forecast-verification-service/internal/metric"
)

func smallOptions() Options {
	opts := DefaultOptions()
	opts.Days = 14
	opts.HistoryYears = 2
	opts.AggDays = []int{1}
	return opts
}

func TestGenerate_WritesLayout(t *testing.T) {
	dir := t.TempDir()
	written, err := Generate(dir, smallOptions())
	require.NoError(t, err)

	// two variables x (truth, history, four forecasts) + mask + two layers
	assert.Len(t, written, 2*6+3)
	assert.Contains(t, written, filepath.Join(dir, TruthDir, TruthName, "precip-demo-agg1.json"))
	assert.Contains(t, written, filepath.Join(dir, RegionDir, "basins-demo.json"))

	s := New(dir, discardLogger())
	names, err := s.Names(ForecastDir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"model_a", "model_b", "ensemble_c", "quantile_d"}, names)

	layers, err := s.Layers("demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"basins", "hemispheres"}, layers)
}

func TestGenerate_Deterministic(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	_, err := Generate(a, smallOptions())
	require.NoError(t, err)
	_, err = Generate(b, smallOptions())
	require.NoError(t, err)

	q := grid.Query{Start: smallOptions().Start, End: smallOptions().Start.AddDate(0, 0, 13), Variable: "tmp2m", AggDays: 1, Grid: "demo"}
	ca, err := New(a, discardLogger()).Forecast(context.Background(), "model_b", q)
	require.NoError(t, err)
	cb, err := New(b, discardLogger()).Forecast(context.Background(), "model_b", q)
	require.NoError(t, err)
	assert.Equal(t, ca.Data, cb.Data)
}

func TestGenerate_ForecastKinds(t *testing.T) {
	dir := t.TempDir()
	opts := smallOptions()
	_, err := Generate(dir, opts)
	require.NoError(t, err)
	s := New(dir, discardLogger())
	q := grid.Query{Start: opts.Start, End: opts.Start.AddDate(0, 0, opts.Days-1), Variable: "precip", AggDays: 1, Grid: "demo"}

	ens, err := s.Forecast(context.Background(), "ensemble_c", q)
	require.NoError(t, err)
	assert.Equal(t, grid.Ensemble, ens.Meta.ProbType)
	assert.Equal(t, 5, ens.NMember())
	assert.Equal(t, 3, ens.NLead())

	qf, err := s.Forecast(context.Background(), "quantile_d", q)
	require.NoError(t, err)
	assert.Equal(t, grid.Quantile, qf.Meta.ProbType)
	for p := range qf.Points() {
		values := qf.Point(p)
		assert.LessOrEqual(t, values[0], values[1])
		assert.LessOrEqual(t, values[1], values[2])
		assert.GreaterOrEqual(t, values[0], 0.0, "precipitation is never negative")
	}
}

func TestGenerate_EvaluatesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	opts := smallOptions()
	_, err := Generate(dir, opts)
	require.NoError(t, err)
	s := New(dir, discardLogger())
	e := metric.NewEngine(metric.Deps{Data: s, Regions: s, Masks: s, Climatology: s})

	cfg := metric.Config{
		Start: opts.Start, End: opts.Start.AddDate(0, 0, opts.Days-1),
		Variable: "tmp2m", AggDays: 1, Forecast: "model_a", Truth: TruthName, Grid: "demo",
	}
	ctx := context.Background()

	good, err := e.Compute(ctx, "rmse", cfg)
	require.NoError(t, err)
	require.Len(t, good.Values.Leads, 3)
	for _, v := range good.Values.Data {
		assert.False(t, math.IsNaN(v))
	}

	cfg.Forecast = "model_b"
	bad, err := e.Compute(ctx, "rmse", cfg)
	require.NoError(t, err)
	assert.Less(t, good.Values.Data[0], bad.Values.Data[0], "the noisier model scores worse")

	cfg.Forecast = "ensemble_c"
	cfg.SpaceGrouping = "hemispheres"
	crps, err := e.Compute(ctx, "crps", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"northern", "southern"}, crps.Values.Regions)

	cfg.Forecast = "model_a"
	cfg.SpaceGrouping = ""
	cfg.TimeGrouping = "day"
	acc, err := e.Compute(ctx, "acc", cfg)
	require.NoError(t, err)
	assert.Len(t, acc.Values.Groups, opts.Days)

	cfg.Variable = "precip"
	cfg.TimeGrouping = ""
	cfg.Mask = "land"
	_, err = e.Compute(ctx, "seeps", cfg)
	require.NoError(t, err)
}

func TestGenerate_InvalidOptions(t *testing.T) {
	opts := smallOptions()
	opts.Days = 0
	_, err := Generate(t.TempDir(), opts)
	require.Error(t, err)

	opts = smallOptions()
	opts.AggDays = nil
	_, err = Generate(t.TempDir(), opts)
	require.Error(t, err)
}
