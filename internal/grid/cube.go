// Package grid models the gridded arrays that flow through verification:
// ungrouped forecast/observation cubes, grouped results, masks and region labels.
package grid

import (
	"math"
	"time"
)

// ProbType describes how a forecast represents uncertainty.
type ProbType string

const (
	Deterministic ProbType = "deterministic"
	Ensemble      ProbType = "ensemble"
	Quantile      ProbType = "quantile"
)

// Probabilistic reports whether the forecast carries a member or quantile axis.
func (p ProbType) Probabilistic() bool {
	return p == Ensemble || p == Quantile
}

// Meta travels with every cube and statistic.
type Meta struct {
	// Sparse marks arrays whose nulls reflect genuine data unavailability
	// rather than only the nulls of the forecast/observation pair.
	Sparse   bool
	ProbType ProbType
}

// Cube is a dense array over (lead, time, lat, lon[, member]) in row-major order.
// Missing values are NaN.
type Cube struct {
	Leads   []time.Duration
	Times   []time.Time
	Lats    []float64
	Lons    []float64
	Members []float64 // nil for deterministic data; quantile levels for quantile forecasts
	Data    []float64
	Meta    Meta
}

// NewCube allocates a NaN-filled cube with the given coordinates.
func NewCube(leads []time.Duration, times []time.Time, lats, lons, members []float64) *Cube {
	c := &Cube{
		Leads:   leads,
		Times:   times,
		Lats:    lats,
		Lons:    lons,
		Members: members,
		Meta:    Meta{ProbType: Deterministic},
	}
	c.Data = make([]float64, c.Len())
	Fill(c.Data, math.NaN())
	return c
}

// NLead returns the number of lead times.
func (c *Cube) NLead() int { return len(c.Leads) }

// NTime returns the number of valid times.
func (c *Cube) NTime() int { return len(c.Times) }

// NCell returns the number of spatial cells.
func (c *Cube) NCell() int { return len(c.Lats) * len(c.Lons) }

// NMember returns the size of the member axis, 1 when there is none.
func (c *Cube) NMember() int {
	if len(c.Members) == 0 {
		return 1
	}
	return len(c.Members)
}

// Len returns the number of elements the coordinates describe.
func (c *Cube) Len() int {
	return c.NLead() * c.NTime() * c.NCell() * c.NMember()
}

// Points returns the number of (lead, time, cell) points, ignoring members.
func (c *Cube) Points() int {
	return c.NLead() * c.NTime() * c.NCell()
}

// Index returns the flat offset of (lead, time, cell, member).
func (c *Cube) Index(lead, t, cell, member int) int {
	return ((lead*c.NTime()+t)*c.NCell()+cell)*c.NMember() + member
}

// At returns the value at (lead, time, lat, lon, member).
func (c *Cube) At(lead, t, lat, lon, member int) float64 {
	return c.Data[c.Index(lead, t, lat*len(c.Lons)+lon, member)]
}

// Set stores v at (lead, time, lat, lon, member).
func (c *Cube) Set(lead, t, lat, lon, member int, v float64) {
	c.Data[c.Index(lead, t, lat*len(c.Lons)+lon, member)] = v
}

// Point returns the member values at flat point p (lead, time, cell order).
// The returned slice aliases the cube's storage.
func (c *Cube) Point(p int) []float64 {
	m := c.NMember()
	return c.Data[p*m : (p+1)*m]
}

// Like allocates a NaN-filled cube with the same lead/time/lat/lon axes and no
// member axis, carrying the given metadata.
func (c *Cube) Like(meta Meta) *Cube {
	out := NewCube(c.Leads, c.Times, c.Lats, c.Lons, nil)
	out.Meta = meta
	return out
}

// Clone returns a deep copy of the data with shared coordinate slices.
func (c *Cube) Clone() *Cube {
	out := *c
	out.Data = make([]float64, len(c.Data))
	copy(out.Data, c.Data)
	return &out
}

// Map returns a deterministic cube with fn applied to every point's member values.
func (c *Cube) Map(meta Meta, fn func(p int, values []float64) float64) *Cube {
	out := c.Like(meta)
	for p := range out.Data {
		out.Data[p] = fn(p, c.Point(p))
	}
	return out
}

// NotNull returns a 0/1 cube marking points whose first member is present.
func (c *Cube) NotNull() *Cube {
	return c.Map(Meta{ProbType: Deterministic}, func(_ int, v []float64) float64 {
		if math.IsNaN(v[0]) {
			return 0
		}
		return 1
	})
}

// Ones returns a cube of ones on the same axes, used as a coverage denominator.
func (c *Cube) Ones() *Cube {
	out := c.Like(Meta{ProbType: Deterministic})
	Fill(out.Data, 1)
	return out
}

// Fill sets every element of s to v.
func Fill(s []float64, v float64) {
	for i := range s {
		s[i] = v
	}
}
