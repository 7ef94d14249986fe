package fixture

import (
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

// Options controls synthetic fixture generation.
type Options struct {
	Grid         string
	Start        time.Time
	Days         int
	HistoryYears int
	AggDays      []int
	Seed         uint64
}

// DefaultOptions generates a two-month evaluation period with three years of
// climatology history on a coarse 4x4 grid.
func DefaultOptions() Options {
	return Options{
		Grid:         "demo",
		Start:        time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		Days:         60,
		HistoryYears: 3,
		AggDays:      []int{1, 7},
		Seed:         42,
	}
}

// TruthName is the observation dataset written by Generate.
const TruthName = "era5"

var (
	demoLats  = []float64{-45, -15, 15, 45}
	demoLons  = []float64{0, 90, 180, 270}
	demoLeads = []time.Duration{0, 7 * 24 * time.Hour, 14 * 24 * time.Hour}

	variables = []string{"precip", "tmp2m"}
)

// synthetic forecast models. Noise grows with lead.
type model struct {
	name     string
	probType grid.ProbType
	bias     float64
	sigma    float64
	members  []float64
}

var models = []model{
	{name: "model_a", probType: grid.Deterministic, sigma: 0.5},
	{name: "model_b", probType: grid.Deterministic, bias: 1, sigma: 2},
	{name: "ensemble_c", probType: grid.Ensemble, sigma: 1.5, members: []float64{0, 1, 2, 3, 4}},
	{name: "quantile_d", probType: grid.Quantile, sigma: 1.5, members: []float64{0.1, 0.5, 0.9}},
}

type generator struct {
	opts  Options
	rng   *rand.Rand
	src   rand.Source
	daily map[string][]float64 // variable -> (day, cell)
	first time.Time
	nDays int
}

// Generate writes a synthetic data directory under dir: a truth dataset, four
// forecasts of different kinds, a land mask, two region layers and
// climatology history for every variable and aggregation. It returns the
// written paths.
func Generate(dir string, opts Options) ([]string, error) {
	if opts.Days <= 0 || opts.HistoryYears <= 0 || len(opts.AggDays) == 0 {
		return nil, fmt.Errorf("days, history years and agg days must be positive")
	}
	src := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	g := &generator{
		opts:  opts,
		rng:   rand.New(src),
		src:   src,
		daily: make(map[string][]float64),
		first: opts.Start.AddDate(-opts.HistoryYears, 0, 0),
	}
	maxAgg := 0
	for _, a := range opts.AggDays {
		maxAgg = max(maxAgg, a)
	}
	g.nDays = int(opts.Start.Sub(g.first).Hours()/24) + opts.Days + maxAgg
	for _, v := range variables {
		g.daily[v] = g.simulate(v)
	}

	var written []string
	write := func(v any, parts ...string) error {
		path := filepath.Join(append([]string{dir}, parts...)...)
		if err := WriteJSON(path, v); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	for _, v := range variables {
		for _, agg := range opts.AggDays {
			file := DatasetFile(v, opts.Grid, agg)
			truth := g.truth(v, agg, opts.Start, opts.Days)
			if err := write(truth, TruthDir, TruthName, file); err != nil {
				return nil, err
			}
			history := g.truth(v, agg, g.first, g.dayIndex(opts.Start))
			if err := write(history, ClimatologyDir, file); err != nil {
				return nil, err
			}
			for _, m := range models {
				if err := write(g.forecast(m, v, truth), ForecastDir, m.name, file); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := write(g.landMask(), MaskDir, GridFile("land", opts.Grid)); err != nil {
		return nil, err
	}
	if err := write(g.hemispheres(), RegionDir, GridFile("hemispheres", opts.Grid)); err != nil {
		return nil, err
	}
	if err := write(g.basins(), RegionDir, GridFile("basins", opts.Grid)); err != nil {
		return nil, err
	}
	return written, nil
}

func (g *generator) nCell() int { return len(demoLats) * len(demoLons) }

func (g *generator) dayIndex(t time.Time) int {
	return int(t.Sub(g.first).Hours() / 24)
}

// simulate produces a daily series per cell: a seasonal temperature cycle
// with noise, or intermittent gamma-distributed precipitation.
func (g *generator) simulate(variable string) []float64 {
	nCell := g.nCell()
	out := make([]float64, g.nDays*nCell)
	noise := distuv.Normal{Mu: 0, Sigma: 2, Src: g.src}
	rain := distuv.Gamma{Alpha: 0.8, Beta: 0.25, Src: g.src}
	for d := range g.nDays {
		day := g.first.AddDate(0, 0, d)
		season := 2 * math.Pi * float64(day.YearDay()) / 365
		for i, lat := range demoLats {
			for j := range demoLons {
				cell := i*len(demoLons) + j
				switch variable {
				case "tmp2m":
					phase := 0.0
					if lat < 0 {
						phase = math.Pi
					}
					out[d*nCell+cell] = 28 - 0.3*math.Abs(lat) - 8*math.Cos(season+phase) + noise.Rand()
				default:
					wetChance := 0.3 + 0.1*float64(j)
					if g.rng.Float64() < wetChance {
						out[d*nCell+cell] = rain.Rand()
					}
				}
			}
		}
	}
	return out
}

// truth aggregates the daily series over aggDays starting on each valid time.
func (g *generator) truth(variable string, aggDays int, from time.Time, days int) *grid.Cube {
	times := make([]time.Time, days)
	for i := range times {
		times[i] = from.AddDate(0, 0, i)
	}
	c := grid.NewCube([]time.Duration{0}, times, demoLats, demoLons, nil)
	series := g.daily[variable]
	nCell := g.nCell()
	base := g.dayIndex(from)
	for ti := range times {
		for cell := range nCell {
			sum := 0.0
			for k := range aggDays {
				sum += series[(base+ti+k)*nCell+cell]
			}
			c.Data[c.Index(0, ti, cell, 0)] = sum / float64(aggDays)
		}
	}
	return c
}

// forecast perturbs the truth at every lead.
func (g *generator) forecast(m model, variable string, truth *grid.Cube) *grid.Cube {
	c := grid.NewCube(demoLeads, truth.Times, truth.Lats, truth.Lons, m.members)
	c.Meta.ProbType = m.probType
	nonNegative := variable == "precip"
	for l := range demoLeads {
		sigma := m.sigma * (1 + float64(l))
		noise := distuv.Normal{Mu: m.bias, Sigma: sigma, Src: g.src}
		for ti := range truth.Times {
			for cell := range truth.NCell() {
				obs := truth.Data[truth.Index(0, ti, cell, 0)]
				center := obs + noise.Rand()
				for mi := range c.NMember() {
					v := center
					switch m.probType {
					case grid.Ensemble:
						v = obs + noise.Rand()
					case grid.Quantile:
						std := distuv.UnitNormal
						v = center + sigma*std.Quantile(m.members[mi])
					}
					if nonNegative {
						v = math.Max(v, 0)
					}
					c.Data[c.Index(l, ti, cell, mi)] = v
				}
			}
		}
	}
	return c
}

// landMask keeps the two western longitudes.
func (g *generator) landMask() *grid.Mask {
	m := grid.NewMask(demoLats, demoLons)
	for cell := range m.Values {
		if demoLons[cell%len(demoLons)] >= 180 {
			m.Values[cell] = 0
		}
	}
	return m
}

func (g *generator) hemispheres() *grid.Labels {
	l := grid.UniformLabels(demoLats, demoLons, "")
	for cell := range l.Values {
		if demoLats[cell/len(demoLons)] < 0 {
			l.Values[cell] = "southern"
		} else {
			l.Values[cell] = "northern"
		}
	}
	return l
}

func (g *generator) basins() *grid.Labels {
	names := map[float64]string{0: "atlantic", 90: "indian", 180: "pacific"}
	l := grid.UniformLabels(demoLats, demoLons, "")
	for cell := range l.Values {
		l.Values[cell] = names[demoLons[cell%len(demoLons)]]
	}
	return l
}
