package grid

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// coordDecimals is the precision coordinates are rounded to before grids are compared.
const coordDecimals = 4

// RoundCoords rounds coordinates to four decimal places so that grids produced
// by different pipelines compare equal.
func RoundCoords(xs []float64) []float64 {
	scale := math.Pow10(coordDecimals)
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Round(x*scale) / scale
	}
	return out
}

// SameAxis reports whether two coordinate vectors are identical.
func SameAxis(a, b []float64) bool {
	return slices.Equal(a, b)
}

// IntersectTimes returns the indices into a and b of the times present in both,
// in ascending time order.
func IntersectTimes(a, b []time.Time) (ia, ib []int) {
	pos := make(map[int64]int, len(b))
	for j, t := range b {
		pos[t.UnixNano()] = j
	}
	type pair struct {
		t    time.Time
		i, j int
	}
	var pairs []pair
	for i, t := range a {
		if j, ok := pos[t.UnixNano()]; ok {
			pairs = append(pairs, pair{t: t, i: i, j: j})
		}
	}
	slices.SortFunc(pairs, func(x, y pair) int { return x.t.Compare(y.t) })
	for _, p := range pairs {
		ia = append(ia, p.i)
		ib = append(ib, p.j)
	}
	return ia, ib
}

// SelectTimes returns a new cube holding only the given time indices.
func (c *Cube) SelectTimes(idx []int) *Cube {
	times := make([]time.Time, len(idx))
	for k, i := range idx {
		times[k] = c.Times[i]
	}
	out := NewCube(c.Leads, times, c.Lats, c.Lons, c.Members)
	out.Meta = c.Meta
	block := c.NCell() * c.NMember()
	for l := range c.Leads {
		for k, i := range idx {
			src := c.Index(l, i, 0, 0)
			dst := out.Index(l, k, 0, 0)
			copy(out.Data[dst:dst+block], c.Data[src:src+block])
		}
	}
	return out
}

// SliceTimes keeps the times within [start, end].
func (c *Cube) SliceTimes(start, end time.Time) *Cube {
	var idx []int
	for i, t := range c.Times {
		if !t.Before(start) && !t.After(end) {
			idx = append(idx, i)
		}
	}
	return c.SelectTimes(idx)
}

// BroadcastLeads repeats a single-lead cube across the given leads.
func (c *Cube) BroadcastLeads(leads []time.Duration) (*Cube, error) {
	if c.NLead() != 1 {
		return nil, fmt.Errorf("cannot broadcast %d leads", c.NLead())
	}
	out := NewCube(leads, c.Times, c.Lats, c.Lons, c.Members)
	out.Meta = c.Meta
	for l := range leads {
		copy(out.Data[out.Index(l, 0, 0, 0):], c.Data)
	}
	return out, nil
}

// Restrict returns a copy of the mask with cells rejected by keep set to 0.
func (m *Mask) Restrict(keep func(cell int) bool) *Mask {
	out := &Mask{Lats: m.Lats, Lons: m.Lons, Values: make([]float64, len(m.Values))}
	for i := range m.Values {
		if keep(i) {
			out.Values[i] = m.Weight(i)
		}
	}
	return out
}
