package grid

import (
	"math"
	"slices"
	"time"
)

// Mask is a (lat, lon) weight grid, 1 for cells that participate and 0 otherwise.
type Mask struct {
	Lats   []float64
	Lons   []float64
	Values []float64
}

// NewMask returns a mask that keeps every cell.
func NewMask(lats, lons []float64) *Mask {
	m := &Mask{Lats: lats, Lons: lons, Values: make([]float64, len(lats)*len(lons))}
	Fill(m.Values, 1)
	return m
}

// Weight returns the mask weight of a cell, treating NaN as excluded.
func (m *Mask) Weight(cell int) float64 {
	v := m.Values[cell]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Labels assigns a region name to each (lat, lon) cell. An empty label means
// the cell belongs to no region.
type Labels struct {
	Lats   []float64
	Lons   []float64
	Values []string
}

// UniformLabels labels every cell with the same name.
func UniformLabels(lats, lons []float64, name string) *Labels {
	l := &Labels{Lats: lats, Lons: lons, Values: make([]string, len(lats)*len(lons))}
	for i := range l.Values {
		l.Values[i] = name
	}
	return l
}

// Names returns the distinct non-empty labels in sorted order.
func (l *Labels) Names() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, v := range l.Values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		names = append(names, v)
	}
	slices.Sort(names)
	return names
}

// Contains reports whether any cell carries the given label.
func (l *Labels) Contains(name string) bool {
	return slices.Contains(l.Values, name)
}

// Query selects a slice of a dataset.
type Query struct {
	Start    time.Time
	End      time.Time
	Variable string
	AggDays  int
	Grid     string
}
