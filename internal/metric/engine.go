// Package metric composes verification metrics from statistics. A metric call
// prepares aligned forecast and observation data, gathers its statistics,
// groups them over time and space with coverage checks, and composes the
// grouped statistics into the final value.
package metric

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/couchcryptid/forecast-verification-service/internal/grouping"
	"github.com/couchcryptid/forecast-verification-service/internal/statistic"
	"github.com/couchcryptid/forecast-verification-service/internal/validity"
)

const defaultWorkers = 4

// Config describes one metric evaluation.
type Config struct {
	Start         time.Time
	End           time.Time
	Variable      string
	AggDays       int
	Forecast      string
	Truth         string
	Grid          string
	Mask          string
	SpaceGrouping string
	Region        string
	TimeGrouping  grouping.TimeGrouping
	Spatial       bool
}

// Result is a composed metric for one forecast.
type Result struct {
	Metric   string
	Forecast string
	Values   *grid.Grouped
	// InvalidGroups counts groups dropped for insufficient coverage.
	InvalidGroups int
}

// Deps are the collaborators of the engine. Only Data is required.
type Deps struct {
	Data        DataSource
	Regions     RegionSource
	Masks       MaskSource
	Climatology ClimatologySource
	Statistics  statistic.Computer
	Workers     int
	Logger      *slog.Logger
}

// Engine evaluates metrics. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	deps Deps
}

// NewEngine returns an engine, filling optional dependencies with defaults.
func NewEngine(deps Deps) *Engine {
	if deps.Statistics == nil {
		deps.Statistics = statistic.Library{}
	}
	if deps.Workers <= 0 {
		deps.Workers = defaultWorkers
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{deps: deps}
}

// Compute evaluates the named metric for cfg.Forecast against cfg.Truth.
func (e *Engine) Compute(ctx context.Context, name string, cfg Config) (*Result, error) {
	start := time.Now()
	spec, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	cfg, err = normalize(cfg)
	if err != nil {
		return nil, err
	}

	r := &run{deps: e.deps, spec: spec, def: definitions[spec.Kind], cfg: cfg}
	if err := r.prepare(ctx); err != nil {
		return nil, err
	}
	cubes, err := r.gather(ctx)
	if err != nil {
		return nil, err
	}
	grouped, invalid, err := r.group(ctx, cubes)
	if err != nil {
		return nil, err
	}
	res := r.compose(grouped, invalid)

	e.deps.Logger.Debug("metric computed",
		"metric", res.Metric,
		"forecast", cfg.Forecast,
		"truth", cfg.Truth,
		"statistics", len(cubes),
		"invalid_groups", invalid,
		"duration", time.Since(start),
	)
	return res, nil
}

func normalize(cfg Config) (Config, error) {
	if cfg.AggDays < 1 {
		return cfg, domain.Configf("agg_days must be at least 1, got %d", cfg.AggDays)
	}
	if cfg.End.Before(cfg.Start) {
		return cfg, domain.Configf("end %s is before start %s", cfg.End.Format(time.DateOnly), cfg.Start.Format(time.DateOnly))
	}
	tg, err := grouping.ParseTimeGrouping(string(cfg.TimeGrouping))
	if err != nil {
		return cfg, err
	}
	cfg.TimeGrouping = tg
	if cfg.SpaceGrouping == "" {
		cfg.SpaceGrouping = Global
	}
	if cfg.Region == "" {
		cfg.Region = Global
	}
	return cfg, nil
}

// run carries the working state of a single Compute call.
type run struct {
	deps   Deps
	spec   Spec
	def    definition
	cfg    Config
	inputs *statistic.Inputs
	noNull []bool
}

func (r *run) query() grid.Query {
	return grid.Query{
		Start:    r.cfg.Start,
		End:      r.cfg.End,
		Variable: r.cfg.Variable,
		AggDays:  r.cfg.AggDays,
		Grid:     r.cfg.Grid,
	}
}

// loadForecast fetches the forecast, falling back to a truth dataset of the
// same name. A truth dataset used as a forecast is deterministic.
func (r *run) loadForecast(ctx context.Context) (*grid.Cube, bool, error) {
	fcst, err := r.deps.Data.Forecast(ctx, r.cfg.Forecast, r.query())
	if err == nil {
		return fcst, false, nil
	}
	if !errors.Is(err, domain.ErrUnknownSource) {
		return nil, false, fmt.Errorf("load forecast %q: %w", r.cfg.Forecast, err)
	}
	fcst, err = r.deps.Data.Truth(ctx, r.cfg.Forecast, r.query())
	if err != nil {
		return nil, false, fmt.Errorf("load forecast %q: %w", r.cfg.Forecast, err)
	}
	out := *fcst
	out.Meta.ProbType = grid.Deterministic
	return &out, true, nil
}

func (r *run) prepare(ctx context.Context) error {
	cfg := r.cfg
	if !r.def.allowsVariable(cfg.Variable) {
		return domain.Configf("metric %s is not valid for variable %q", r.spec, cfg.Variable)
	}

	fcst, fromTruth, err := r.loadForecast(ctx)
	if err != nil {
		return err
	}
	probabilistic := fcst.Meta.ProbType.Probabilistic()
	if r.def.probabilistic && !probabilistic {
		return domain.Configf("cannot run probabilistic metric %s on deterministic forecast %q", r.spec, cfg.Forecast)
	}
	if !r.def.probabilistic && probabilistic {
		return domain.Configf("cannot run deterministic metric %s on probabilistic forecast %q", r.spec, cfg.Forecast)
	}

	obs, err := r.deps.Data.Truth(ctx, cfg.Truth, r.query())
	if err != nil {
		return fmt.Errorf("load truth %q: %w", cfg.Truth, err)
	}
	if obs.NMember() != 1 {
		return domain.Configf("truth %q must be deterministic", cfg.Truth)
	}
	if !fromTruth && obs.NLead() == 1 {
		if obs, err = obs.BroadcastLeads(fcst.Leads); err != nil {
			return err
		}
	}
	if obs.NLead() != fcst.NLead() {
		return domain.Configf("truth %q has %d leads, forecast %q has %d", cfg.Truth, obs.NLead(), cfg.Forecast, fcst.NLead())
	}

	fcst, obs = rounded(fcst), rounded(obs)
	if !grid.SameAxis(fcst.Lats, obs.Lats) || !grid.SameAxis(fcst.Lons, obs.Lons) {
		return domain.Configf("forecast %q and truth %q are on different grids", cfg.Forecast, cfg.Truth)
	}

	fcst, obs = fcst.SliceTimes(cfg.Start, cfg.End), obs.SliceTimes(cfg.Start, cfg.End)
	ia, ib := grid.IntersectTimes(fcst.Times, obs.Times)
	if len(ia) == 0 {
		return domain.Unavailablef("forecast %q and truth %q share no valid times between %s and %s",
			cfg.Forecast, cfg.Truth, cfg.Start.Format(time.DateOnly), cfg.End.Format(time.DateOnly))
	}
	fcst, obs = fcst.SelectTimes(ia), obs.SelectTimes(ib)

	f, o, noNull, err := validity.Reconcile(fcst, obs)
	if err != nil {
		return err
	}
	r.noNull = noNull
	r.inputs = &statistic.Inputs{
		Obs:    o,
		Fcst:   f,
		Sparse: fcst.Meta.Sparse || obs.Meta.Sparse,
	}
	if r.def.categorical {
		r.inputs.Bins = statistic.Bins(r.spec.Edges)
	}

	switch r.spec.Kind {
	case ACC:
		return r.prepareClimatology(ctx)
	case SEEPS:
		return r.prepareSEEPS(ctx)
	}
	return nil
}

// rounded returns a shallow copy of c with coordinates rounded for comparison.
func rounded(c *grid.Cube) *grid.Cube {
	out := *c
	out.Lats = grid.RoundCoords(c.Lats)
	out.Lons = grid.RoundCoords(c.Lons)
	return &out
}

func (r *run) onDataGrid(lats, lons []float64) bool {
	return grid.SameAxis(grid.RoundCoords(lats), r.inputs.Obs.Lats) &&
		grid.SameAxis(grid.RoundCoords(lons), r.inputs.Obs.Lons)
}

// prepareClimatology aligns the mean climatology with the observations and
// nulls it wherever the forecast/observation pair is missing. Without a
// climatology the anomaly statistics report themselves unavailable.
func (r *run) prepareClimatology(ctx context.Context) error {
	if r.deps.Climatology == nil {
		return nil
	}
	daily, err := r.deps.Climatology.Daily(ctx, r.cfg.Variable, r.cfg.AggDays, r.cfg.Grid)
	if errors.Is(err, domain.ErrNotImplemented) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load climatology: %w", err)
	}
	if !r.onDataGrid(daily.Lats, daily.Lons) {
		return domain.Configf("climatology grid does not match grid %q", r.cfg.Grid)
	}
	obs := r.inputs.Obs
	clim := daily.Expand(obs.Leads, obs.Times)
	clim.Lats, clim.Lons = obs.Lats, obs.Lons
	for p, ok := range r.noNull {
		if !ok {
			clim.Data[p] = math.NaN()
		}
	}
	r.inputs.Climatology = clim
	return nil
}

func (r *run) prepareSEEPS(ctx context.Context) error {
	if r.deps.Climatology == nil {
		return nil
	}
	s, err := r.deps.Climatology.SEEPS(ctx, r.cfg.AggDays, r.cfg.Grid)
	if errors.Is(err, domain.ErrNotImplemented) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load seeps climatology: %w", err)
	}
	if !r.onDataGrid(s.WetThreshold.Lats, s.WetThreshold.Lons) {
		return domain.Configf("seeps climatology grid does not match grid %q", r.cfg.Grid)
	}
	r.inputs.SEEPS = s
	return nil
}

func (r *run) key(name string) statistic.Key {
	return statistic.Key{
		Variable:  r.cfg.Variable,
		AggDays:   r.cfg.AggDays,
		Forecast:  r.cfg.Forecast,
		Truth:     r.cfg.Truth,
		DataKey:   r.spec.DataKey() + r.def.keySuffix,
		Grid:      r.cfg.Grid,
		Statistic: name,
		Start:     r.cfg.Start,
		End:       r.cfg.End,
	}
}

// gather computes every statistic of the metric concurrently.
func (r *run) gather(ctx context.Context) ([]*grid.Cube, error) {
	names := r.def.statistics(r.spec)
	cubes := make([]*grid.Cube, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.deps.Workers)
	for i, name := range names {
		g.Go(func() error {
			c, err := r.deps.Statistics.Compute(gctx, r.key(name), r.inputs)
			if err != nil {
				return fmt.Errorf("statistic %s: %w", name, err)
			}
			if c == nil {
				return fmt.Errorf("%w: statistic %s is unavailable for metric %s on forecast %q",
					domain.ErrNotImplemented, name, r.spec, r.cfg.Forecast)
			}
			cubes[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cubes, nil
}

type reducer func(*grid.Grouped) (*grid.Grouped, error)

// group reduces every statistic over time and space. Coverage is measured on
// the first statistic, or on the forecast when the metric is sparse, and the
// resulting invalid groups are nulled in every statistic.
func (r *run) group(ctx context.Context, cubes []*grid.Cube) ([]*grid.Grouped, int, error) {
	spatial, err := r.spatialReducer(ctx)
	if err != nil {
		return nil, 0, err
	}
	reduce := func(c *grid.Cube) (*grid.Grouped, error) {
		g, err := grouping.ByTime(c, r.cfg.TimeGrouping, grouping.Mean)
		if err != nil {
			return nil, err
		}
		return spatial(g)
	}

	var tracker *validity.Tracker
	out := make([]*grid.Grouped, len(cubes))
	for i, c := range cubes {
		g, err := reduce(c)
		if err != nil {
			return nil, 0, err
		}
		if tracker == nil {
			src := c
			if r.def.sparse || c.Meta.Sparse {
				src = r.inputs.Fcst
			}
			nonNull, err := reduce(src.NotNull())
			if err != nil {
				return nil, 0, err
			}
			ones, err := reduce(src.Ones())
			if err != nil {
				return nil, 0, err
			}
			if tracker, err = validity.NewTracker(nonNull, ones); err != nil {
				return nil, 0, err
			}
		}
		if err := tracker.Apply(g); err != nil {
			return nil, 0, err
		}
		out[i] = g
	}
	return out, tracker.Invalid(), nil
}

// spatialReducer returns the reduction for the requested region: a cropped
// native grid when spatial, otherwise a latitude-weighted mean per region of
// the space grouping.
func (r *run) spatialReducer(ctx context.Context) (reducer, error) {
	mask, err := r.mask(ctx)
	if err != nil {
		return nil, err
	}
	inRegion := func(int) bool { return true }
	if r.cfg.Region != Global {
		region, err := r.levelLabels(ctx, r.cfg.Region)
		if err != nil {
			return nil, err
		}
		inRegion = func(cell int) bool { return region.Values[cell] != "" }
	}

	if r.cfg.Spatial {
		return func(g *grid.Grouped) (*grid.Grouped, error) {
			return grouping.Restrict(g, mask, inRegion)
		}, nil
	}

	labels, err := r.levelLabels(ctx, r.cfg.SpaceGrouping)
	if err != nil {
		return nil, err
	}
	kept := &grid.Labels{Lats: labels.Lats, Lons: labels.Lons, Values: make([]string, len(labels.Values))}
	for cell, v := range labels.Values {
		if inRegion(cell) {
			kept.Values[cell] = v
		}
	}
	mask = mask.Restrict(inRegion)
	return func(g *grid.Grouped) (*grid.Grouped, error) {
		return grouping.ByRegion(g, kept, mask, grouping.Mean, true)
	}, nil
}

func (r *run) resolve(ctx context.Context, name string) (Level, error) {
	if name == Global {
		return Level{Name: Global, Regions: []string{Global}}, nil
	}
	if r.deps.Regions == nil {
		return Level{}, domain.Configf("region %s not found", name)
	}
	return r.deps.Regions.Resolve(ctx, r.cfg.Grid, name)
}

// levelLabels resolves name and returns the labels of its layer with every
// cell outside the selected regions cleared.
func (r *run) levelLabels(ctx context.Context, name string) (*grid.Labels, error) {
	level, err := r.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	lats, lons := r.inputs.Obs.Lats, r.inputs.Obs.Lons
	if level.Name == Global {
		return grid.UniformLabels(lats, lons, Global), nil
	}

	labels, err := r.deps.Regions.Labels(ctx, r.cfg.Grid, level.Name)
	if err != nil {
		return nil, fmt.Errorf("load region layer %q: %w", level.Name, err)
	}
	if !r.onDataGrid(labels.Lats, labels.Lons) || len(labels.Values) != len(lats)*len(lons) {
		return nil, domain.Configf("region layer %q does not match grid %q", level.Name, r.cfg.Grid)
	}
	selected := make(map[string]bool, len(level.Regions))
	for _, region := range level.Regions {
		selected[region] = true
	}
	out := &grid.Labels{Lats: lats, Lons: lons, Values: make([]string, len(labels.Values))}
	for cell, v := range labels.Values {
		if selected[v] {
			out.Values[cell] = v
		}
	}
	return out, nil
}

func (r *run) mask(ctx context.Context) (*grid.Mask, error) {
	lats, lons := r.inputs.Obs.Lats, r.inputs.Obs.Lons
	if r.cfg.Mask == "" || r.cfg.Mask == "none" {
		return grid.NewMask(lats, lons), nil
	}
	if r.deps.Masks == nil {
		return nil, domain.Configf("mask %q not found", r.cfg.Mask)
	}
	m, err := r.deps.Masks.Mask(ctx, r.cfg.Mask, r.cfg.Grid)
	if err != nil {
		return nil, fmt.Errorf("load mask %q: %w", r.cfg.Mask, err)
	}
	if !r.onDataGrid(m.Lats, m.Lons) || len(m.Values) != len(lats)*len(lons) {
		return nil, domain.Configf("mask %q does not match grid %q", r.cfg.Mask, r.cfg.Grid)
	}
	return &grid.Mask{Lats: lats, Lons: lons, Values: m.Values}, nil
}

func (r *run) compose(grouped []*grid.Grouped, invalid int) *Result {
	values := grouped[0]
	if r.def.compose != nil {
		values = grid.Combine(grouped, r.def.compose(r.spec))
	}
	return &Result{
		Metric:        r.spec.String(),
		Forecast:      r.cfg.Forecast,
		Values:        values,
		InvalidGroups: invalid,
	}
}
