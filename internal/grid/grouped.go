package grid

import (
	"math"
	"time"
)

// Grouped is a reduced array over (lead, time group, cell). Cells are either a
// native lat/lon grid or a list of named regions.
type Grouped struct {
	Leads []time.Duration
	// Groups holds the time-group labels; nil when the time axis was collapsed.
	Groups  []string
	Lats    []float64
	Lons    []float64
	Regions []string
	Data    []float64
	Meta    Meta
}

// NewGrouped allocates a NaN-filled grouped array over a native grid.
func NewGrouped(leads []time.Duration, groups []string, lats, lons []float64) *Grouped {
	g := &Grouped{Leads: leads, Groups: groups, Lats: lats, Lons: lons}
	g.Data = make([]float64, g.Len())
	Fill(g.Data, math.NaN())
	return g
}

// NewRegional allocates a NaN-filled grouped array over named regions.
func NewRegional(leads []time.Duration, groups []string, regions []string) *Grouped {
	g := &Grouped{Leads: leads, Groups: groups, Regions: regions}
	g.Data = make([]float64, g.Len())
	Fill(g.Data, math.NaN())
	return g
}

// Regional reports whether cells are named regions.
func (g *Grouped) Regional() bool { return g.Regions != nil }

// NGroup returns the size of the time-group axis, 1 when collapsed.
func (g *Grouped) NGroup() int {
	if g.Groups == nil {
		return 1
	}
	return len(g.Groups)
}

// NCell returns the number of cells per (lead, group).
func (g *Grouped) NCell() int {
	if g.Regional() {
		return len(g.Regions)
	}
	return len(g.Lats) * len(g.Lons)
}

// Len returns the number of elements.
func (g *Grouped) Len() int {
	return len(g.Leads) * g.NGroup() * g.NCell()
}

// Index returns the flat offset of (lead, group, cell).
func (g *Grouped) Index(lead, group, cell int) int {
	return (lead*g.NGroup()+group)*g.NCell() + cell
}

// At returns the value at (lead, group, cell).
func (g *Grouped) At(lead, group, cell int) float64 {
	return g.Data[g.Index(lead, group, cell)]
}

// Like allocates a NaN-filled array on the same axes.
func (g *Grouped) Like() *Grouped {
	out := *g
	out.Data = make([]float64, len(g.Data))
	Fill(out.Data, math.NaN())
	return &out
}

// SameShape reports whether other has identical axis sizes.
func (g *Grouped) SameShape(other *Grouped) bool {
	return len(g.Leads) == len(other.Leads) &&
		g.NGroup() == other.NGroup() &&
		g.NCell() == other.NCell() &&
		g.Regional() == other.Regional()
}

// Combine applies fn elementwise across aligned grouped arrays. The values
// slice passed to fn follows the order of inputs and is reused between calls.
func Combine(inputs []*Grouped, fn func(values []float64) float64) *Grouped {
	out := inputs[0].Like()
	values := make([]float64, len(inputs))
	for i := range out.Data {
		for k, in := range inputs {
			values[k] = in.Data[i]
		}
		out.Data[i] = fn(values)
	}
	return out
}

// Valid counts the non-NaN elements.
func (g *Grouped) Valid() int {
	n := 0
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
