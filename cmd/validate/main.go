// Command validate checks the integrity of a verification data directory:
// every dataset decodes, forecasts share coordinates with the truth they are
// scored against, masks and region layers match their grid, climatology
// history exists, and a smoke metric runs against each truth dataset.
//
// Usage:
//
//	go run ./cmd/validate -data data
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-verification-service/internal/adapter/fixture"
	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/couchcryptid/forecast-verification-service/internal/metric"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// dataset is one decoded forecast or truth file.
type dataset struct {
	kind     string
	name     string
	file     string
	variable string
	grid     string
	aggDays  int
	cube     *grid.Cube
}

func (d dataset) String() string {
	return fmt.Sprintf("%s/%s/%s", d.kind, d.name, d.file)
}

func main() {
	dataDir := flag.String("data", "data", "data directory to validate")
	flag.Parse()

	if code := run(*dataDir); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir string) int {
	fmt.Println("=== Verification Data Integrity Validation ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := fixture.New(dataDir, logger)

	decode := &phase{name: "Datasets decode"}
	forecasts := loadDatasets(store, dataDir, fixture.ForecastDir, decode)
	truths := loadDatasets(store, dataDir, fixture.TruthDir, decode)
	if len(truths) == 0 {
		decode.errorf("no truth datasets under %s", filepath.Join(dataDir, fixture.TruthDir))
	}

	phases := []*phase{
		decode,
		validateAlignment(forecasts, truths),
		validateGridFixtures(dataDir, truths),
		validateClimatology(dataDir, truths),
		validateSmoke(store, forecasts, truths),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Datasets: %d forecast files, %d truth files\n", len(forecasts), len(truths))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadDatasets(store *fixture.Store, dataDir, kind string, p *phase) []dataset {
	names, err := store.Names(kind)
	if err != nil {
		p.errorf("list %s: %v", kind, err)
		return nil
	}
	var out []dataset
	for _, name := range names {
		entries, err := os.ReadDir(filepath.Join(dataDir, kind, name))
		if err != nil {
			p.errorf("%s/%s: %v", kind, name, err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			d := dataset{kind: kind, name: name, file: e.Name()}
			var ok bool
			d.variable, d.grid, d.aggDays, ok = fixture.ParseDatasetFile(e.Name())
			if !ok {
				p.errorf("%s: file name does not match <variable>-<grid>-agg<N>.json", d)
				continue
			}
			var c grid.Cube
			if err := readJSON(filepath.Join(dataDir, kind, name, e.Name()), &c); err != nil {
				p.errorf("%s: %v", d, err)
				continue
			}
			if c.NCell() == 0 || c.NTime() == 0 {
				p.errorf("%s: empty cube (%d times, %d cells)", d, c.NTime(), c.NCell())
				continue
			}
			d.cube = &c
			out = append(out, d)
		}
	}
	return out
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ── Validation phases ──

// validateAlignment checks every forecast against the truth files of the same
// variable, grid and aggregation.
func validateAlignment(forecasts, truths []dataset) *phase {
	p := &phase{name: "Forecasts align with truth"}
	for _, f := range forecasts {
		matched := false
		for _, t := range truths {
			if t.file != f.file {
				continue
			}
			matched = true
			if !grid.SameAxis(f.cube.Lats, t.cube.Lats) || !grid.SameAxis(f.cube.Lons, t.cube.Lons) {
				p.errorf("%s: coordinates differ from %s", f, t)
			}
			if ia, _ := grid.IntersectTimes(f.cube.Times, t.cube.Times); len(ia) == 0 {
				p.errorf("%s: no valid times shared with %s", f, t)
			}
		}
		if !matched {
			p.errorf("%s: no truth dataset for %s grid %s agg %d", f, f.variable, f.grid, f.aggDays)
		}
		if f.cube.Meta.ProbType.Probabilistic() && f.cube.NMember() < 2 {
			p.errorf("%s: %s forecast has %d members", f, f.cube.Meta.ProbType, f.cube.NMember())
		}
		if f.cube.Meta.ProbType == grid.Quantile && !quantileLevels(f.cube.Members) {
			p.errorf("%s: quantile levels %v must be increasing within (0, 1)", f, f.cube.Members)
		}
	}
	return p
}

func quantileLevels(levels []float64) bool {
	for i, q := range levels {
		if q <= 0 || q >= 1 || (i > 0 && q <= levels[i-1]) {
			return false
		}
	}
	return true
}

// validateGridFixtures checks that masks and region layers share coordinates
// with a truth dataset on the same grid.
func validateGridFixtures(dataDir string, truths []dataset) *phase {
	p := &phase{name: "Masks and regions match grid"}
	check := func(dir string, decode func(path string) (lats, lons []float64, n int, err error)) {
		entries, err := os.ReadDir(filepath.Join(dataDir, dir))
		if err != nil {
			if !os.IsNotExist(err) {
				p.errorf("%s: %v", dir, err)
			}
			return
		}
		for _, e := range entries {
			base, ok := strings.CutSuffix(e.Name(), ".json")
			i := strings.LastIndex(base, "-")
			if e.IsDir() || !ok || i < 1 {
				p.errorf("%s/%s: file name does not match <name>-<grid>.json", dir, e.Name())
				continue
			}
			gridName := base[i+1:]
			lats, lons, n, err := decode(filepath.Join(dataDir, dir, e.Name()))
			if err != nil {
				p.errorf("%s/%s: %v", dir, e.Name(), err)
				continue
			}
			if n != len(lats)*len(lons) {
				p.errorf("%s/%s: %d values for %d cells", dir, e.Name(), n, len(lats)*len(lons))
			}
			idx := slices.IndexFunc(truths, func(t dataset) bool { return t.grid == gridName })
			if idx < 0 {
				p.errorf("%s/%s: no truth dataset on grid %s", dir, e.Name(), gridName)
				continue
			}
			t := truths[idx]
			if !grid.SameAxis(lats, t.cube.Lats) || !grid.SameAxis(lons, t.cube.Lons) {
				p.errorf("%s/%s: coordinates differ from %s", dir, e.Name(), t)
			}
		}
	}

	check(fixture.MaskDir, func(path string) ([]float64, []float64, int, error) {
		var m grid.Mask
		err := readJSON(path, &m)
		return m.Lats, m.Lons, len(m.Values), err
	})
	check(fixture.RegionDir, func(path string) ([]float64, []float64, int, error) {
		var l grid.Labels
		err := readJSON(path, &l)
		return l.Lats, l.Lons, len(l.Values), err
	})
	return p
}

// validateClimatology checks that history exists for every truth file and
// starts before the truth period.
func validateClimatology(dataDir string, truths []dataset) *phase {
	p := &phase{name: "Climatology history present"}
	seen := make(map[string]bool)
	for _, t := range truths {
		if seen[t.file] {
			continue
		}
		seen[t.file] = true
		var h grid.Cube
		if err := readJSON(filepath.Join(dataDir, fixture.ClimatologyDir, t.file), &h); err != nil {
			p.errorf("%s/%s: %v", fixture.ClimatologyDir, t.file, err)
			continue
		}
		if h.NTime() == 0 || !h.Times[0].Before(t.cube.Times[0]) {
			p.errorf("%s/%s: history does not precede %s", fixture.ClimatologyDir, t.file, t)
		}
	}
	return p
}

// validateSmoke runs one metric per forecast file through the engine.
func validateSmoke(store *fixture.Store, forecasts, truths []dataset) *phase {
	p := &phase{name: "Smoke evaluation"}
	engine := metric.NewEngine(metric.Deps{
		Data:        store,
		Regions:     store,
		Masks:       store,
		Climatology: store,
		Logger:      slog.New(slog.DiscardHandler),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, f := range forecasts {
		idx := slices.IndexFunc(truths, func(t dataset) bool { return t.file == f.file })
		if idx < 0 {
			continue
		}
		t := truths[idx]
		name := "mae"
		if f.cube.Meta.ProbType.Probabilistic() {
			name = "crps"
		}
		_, err := engine.Compute(ctx, name, metric.Config{
			Start:    t.cube.Times[0],
			End:      t.cube.Times[t.cube.NTime()-1],
			Variable: f.variable,
			AggDays:  f.aggDays,
			Forecast: f.name,
			Truth:    t.name,
			Grid:     f.grid,
		})
		if err != nil {
			p.errorf("%s %s vs %s: %s: %v", name, f, t.name, domain.Classify(err), err)
		}
	}
	return p
}
