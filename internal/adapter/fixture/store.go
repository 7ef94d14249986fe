// Package fixture serves datasets, masks, region layers and climatologies from
// JSON files under a data directory:
//
//	forecasts/<name>/<variable>-<grid>-agg<N>.json   forecast cubes
//	truth/<name>/<variable>-<grid>-agg<N>.json       observation cubes
//	masks/<name>-<grid>.json                         masks
//	regions/<layer>-<grid>.json                      region labels
//	climatology/<variable>-<grid>-agg<N>.json        observation history
package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/forecast-verification-service/internal/climatology"
	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/couchcryptid/forecast-verification-service/internal/metric"
)

// Directory names under the data root.
const (
	ForecastDir    = "forecasts"
	TruthDir       = "truth"
	MaskDir        = "masks"
	RegionDir      = "regions"
	ClimatologyDir = "climatology"
)

// Store reads fixtures from a data directory. Derived climatologies are kept
// in memory after the first request.
type Store struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	daily map[string]*climatology.Daily
	seeps map[string]*climatology.SEEPS
}

// New creates a store rooted at dir.
func New(dir string, logger *slog.Logger) *Store {
	return &Store{
		root:   dir,
		logger: logger,
		daily:  make(map[string]*climatology.Daily),
		seeps:  make(map[string]*climatology.SEEPS),
	}
}

// DatasetFile returns the file name of a dataset for the given query.
func DatasetFile(variable, gridName string, aggDays int) string {
	return fmt.Sprintf("%s-%s-agg%d.json", variable, gridName, aggDays)
}

// ParseDatasetFile splits a dataset file name produced by DatasetFile.
func ParseDatasetFile(file string) (variable, gridName string, aggDays int, ok bool) {
	base, found := strings.CutSuffix(file, ".json")
	if !found {
		return "", "", 0, false
	}
	i := strings.LastIndex(base, "-agg")
	if i < 0 {
		return "", "", 0, false
	}
	n, err := strconv.Atoi(base[i+len("-agg"):])
	if err != nil || n < 1 {
		return "", "", 0, false
	}
	variable, gridName, found = strings.Cut(base[:i], "-")
	if !found || variable == "" || gridName == "" {
		return "", "", 0, false
	}
	return variable, gridName, n, true
}

// GridFile returns the file name of a per-grid fixture such as a mask.
func GridFile(name, gridName string) string {
	return fmt.Sprintf("%s-%s.json", name, gridName)
}

func checkName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return domain.Configf("invalid %s name %q", kind, name)
	}
	return nil
}

// Forecast loads a forecast. Names without a forecast directory are reported
// as unknown so callers can fall back to truth datasets.
func (s *Store) Forecast(ctx context.Context, name string, q grid.Query) (*grid.Cube, error) {
	return s.dataset(ctx, ForecastDir, name, q)
}

// Truth loads an observation dataset.
func (s *Store) Truth(ctx context.Context, name string, q grid.Query) (*grid.Cube, error) {
	return s.dataset(ctx, TruthDir, name, q)
}

func (s *Store) dataset(ctx context.Context, kind, name string, q grid.Query) (*grid.Cube, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkName(kind, name); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, kind, name)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s %q", domain.ErrUnknownSource, kind, name)
	}

	var c grid.Cube
	path := filepath.Join(dir, DatasetFile(q.Variable, q.Grid, q.AggDays))
	if err := readJSON(path, &c); err != nil {
		return nil, err
	}
	s.logger.Debug("dataset loaded", "kind", kind, "name", name, "path", path, "times", c.NTime())
	return c.SliceTimes(q.Start, q.End), nil
}

// Mask loads a named mask. The names "" and "none" select every cell and need
// no file, so the engine never asks for them.
func (s *Store) Mask(ctx context.Context, name, gridName string) (*grid.Mask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkName("mask", name); err != nil {
		return nil, err
	}
	var m grid.Mask
	path := filepath.Join(s.root, MaskDir, GridFile(name, gridName))
	if err := readJSON(path, &m); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.Configf("mask %q not found for grid %q", name, gridName)
		}
		return nil, err
	}
	return &m, nil
}

// Layers lists the region layers available on a grid in sorted order.
func (s *Store) Layers(gridName string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, RegionDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Unavailablef("list region layers: %v", err)
	}
	suffix := "-" + gridName + ".json"
	var layers []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), suffix); ok && !e.IsDir() {
			layers = append(layers, name)
		}
	}
	slices.Sort(layers)
	return layers, nil
}

// Labels loads the region labels of a layer.
func (s *Store) Labels(ctx context.Context, gridName, layer string) (*grid.Labels, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkName("region layer", layer); err != nil {
		return nil, err
	}
	var l grid.Labels
	if err := readJSON(filepath.Join(s.root, RegionDir, GridFile(layer, gridName)), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Resolve returns a layer with all of its regions when name is a layer, or the
// layer holding a single region. A region name found in more than one layer
// is ambiguous.
func (s *Store) Resolve(ctx context.Context, gridName, name string) (metric.Level, error) {
	layers, err := s.Layers(gridName)
	if err != nil {
		return metric.Level{}, err
	}
	all := make(map[string]*grid.Labels, len(layers))
	for _, layer := range layers {
		l, err := s.Labels(ctx, gridName, layer)
		if err != nil {
			return metric.Level{}, err
		}
		if layer == name {
			return metric.Level{Name: layer, Regions: l.Names()}, nil
		}
		all[layer] = l
	}

	var found []string
	for _, layer := range layers {
		if all[layer].Contains(name) {
			found = append(found, layer)
		}
	}
	switch len(found) {
	case 0:
		return metric.Level{}, domain.Configf("region %s not found", name)
	case 1:
		return metric.Level{Name: found[0], Regions: []string{name}}, nil
	default:
		return metric.Level{}, domain.Configf("region %s is ambiguous, found in layers %s", name, strings.Join(found, ", "))
	}
}

// Daily returns the day-of-year mean climatology derived from the history file.
func (s *Store) Daily(ctx context.Context, variable string, aggDays int, gridName string) (*climatology.Daily, error) {
	file := DatasetFile(variable, gridName, aggDays)
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.daily[file]; ok {
		return d, nil
	}
	history, err := s.history(ctx, file)
	if err != nil {
		return nil, err
	}
	d, err := climatology.Mean(history)
	if err != nil {
		return nil, fmt.Errorf("derive climatology %s: %w", file, err)
	}
	s.daily[file] = d
	return d, nil
}

// SEEPS returns the SEEPS thresholds derived from the precipitation history.
func (s *Store) SEEPS(ctx context.Context, aggDays int, gridName string) (*climatology.SEEPS, error) {
	file := DatasetFile("precip", gridName, aggDays)
	s.mu.Lock()
	defer s.mu.Unlock()
	if sp, ok := s.seeps[file]; ok {
		return sp, nil
	}
	history, err := s.history(ctx, file)
	if err != nil {
		return nil, err
	}
	sp, err := climatology.NewSEEPS(history)
	if err != nil {
		return nil, fmt.Errorf("derive seeps thresholds %s: %w", file, err)
	}
	s.seeps[file] = sp
	s.logger.Info("seeps climatology derived", "file", file, "times", history.NTime())
	return sp, nil
}

func (s *Store) history(ctx context.Context, file string) (*grid.Cube, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.root, ClimatologyDir, file)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no climatology history %s", domain.ErrNotImplemented, file)
	}
	var c grid.Cube
	if err := readJSON(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Names lists the dataset names of a kind (ForecastDir or TruthDir).
func (s *Store) Names(kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, kind))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Unavailablef("list %s: %v", kind, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %w", domain.ErrDataUnavailable, path, err)
	}
	return nil
}

// WriteJSON writes a fixture file, creating parent directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
