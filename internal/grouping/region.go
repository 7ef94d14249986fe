package grouping

import (
	"fmt"
	"math"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

// ByRegion reduces a native-grid array into the regions named by labels.
// Each cell is weighted by its mask value and, when weighted is set, by its
// latitude area weight. Cells whose value is missing carry no weight, so a
// mean divides only by the weight that actually contributed.
func ByRegion(g *grid.Grouped, labels *grid.Labels, mask *grid.Mask, agg Agg, weighted bool) (*grid.Grouped, error) {
	if weighted && agg == Sum {
		return nil, domain.Configf("cannot aggregate by sum with weighted averaging")
	}
	if g.Regional() {
		return nil, fmt.Errorf("array is already reduced to regions")
	}
	if err := checkGrid(g, labels.Lats, labels.Lons, len(labels.Values)); err != nil {
		return nil, fmt.Errorf("region labels: %w", err)
	}
	if err := checkGrid(g, mask.Lats, mask.Lons, len(mask.Values)); err != nil {
		return nil, fmt.Errorf("mask: %w", err)
	}

	nLon := len(g.Lons)
	latW := make([]float64, len(g.Lats))
	if weighted {
		w, err := LatitudeWeights(g.Lats)
		if err != nil {
			return nil, err
		}
		latW = w
	} else {
		grid.Fill(latW, 1)
	}

	regions := labels.Names()
	regionIdx := make(map[string]int, len(regions))
	for i, r := range regions {
		regionIdx[r] = i
	}
	cellRegion := make([]int, len(labels.Values))
	cellWeight := make([]float64, len(labels.Values))
	for cell, label := range labels.Values {
		cellRegion[cell] = -1
		if label == "" {
			continue
		}
		cellRegion[cell] = regionIdx[label]
		cellWeight[cell] = latW[cell/nLon] * mask.Weight(cell)
	}

	out := grid.NewRegional(g.Leads, g.Groups, regions)
	out.Meta = g.Meta
	nCell := g.NCell()
	sums := make([]float64, len(regions))
	weights := make([]float64, len(regions))
	for l := range g.Leads {
		for grp := range g.NGroup() {
			clear(sums)
			clear(weights)
			base := g.Index(l, grp, 0)
			for cell := range nCell {
				r := cellRegion[cell]
				w := cellWeight[cell]
				v := g.Data[base+cell]
				if r < 0 || w == 0 || math.IsNaN(v) {
					continue
				}
				sums[r] += v * w
				weights[r] += w
			}
			dst := out.Index(l, grp, 0)
			for r := range regions {
				if weights[r] == 0 {
					continue
				}
				if agg == Mean {
					out.Data[dst+r] = sums[r] / weights[r]
				} else {
					out.Data[dst+r] = sums[r]
				}
			}
		}
	}
	return out, nil
}

// Restrict keeps the native grid for spatial results. Cells outside the mask or
// rejected by keep are nulled, and the grid is cropped to the bounding box of
// the kept cells.
func Restrict(g *grid.Grouped, mask *grid.Mask, keep func(cell int) bool) (*grid.Grouped, error) {
	if g.Regional() {
		return nil, fmt.Errorf("array is already reduced to regions")
	}
	if err := checkGrid(g, mask.Lats, mask.Lons, len(mask.Values)); err != nil {
		return nil, fmt.Errorf("mask: %w", err)
	}

	nLon := len(g.Lons)
	kept := make([]bool, g.NCell())
	latLo, latHi, lonLo, lonHi := len(g.Lats), -1, nLon, -1
	for cell := range kept {
		if mask.Weight(cell) == 0 || !keep(cell) {
			continue
		}
		kept[cell] = true
		i, j := cell/nLon, cell%nLon
		latLo, latHi = min(latLo, i), max(latHi, i)
		lonLo, lonHi = min(lonLo, j), max(lonHi, j)
	}
	if latHi < 0 {
		out := grid.NewGrouped(g.Leads, g.Groups, []float64{}, []float64{})
		out.Meta = g.Meta
		return out, nil
	}

	out := grid.NewGrouped(g.Leads, g.Groups, g.Lats[latLo:latHi+1], g.Lons[lonLo:lonHi+1])
	out.Meta = g.Meta
	outLon := len(out.Lons)
	for l := range g.Leads {
		for grp := range g.NGroup() {
			src := g.Index(l, grp, 0)
			dst := out.Index(l, grp, 0)
			for i := latLo; i <= latHi; i++ {
				for j := lonLo; j <= lonHi; j++ {
					cell := i*nLon + j
					if !kept[cell] {
						continue
					}
					out.Data[dst+(i-latLo)*outLon+(j-lonLo)] = g.Data[src+cell]
				}
			}
		}
	}
	return out, nil
}

func checkGrid(g *grid.Grouped, lats, lons []float64, n int) error {
	if !grid.SameAxis(g.Lats, lats) || !grid.SameAxis(g.Lons, lons) || n != g.NCell() {
		return fmt.Errorf("grid %dx%d does not match data grid %dx%d", len(lats), len(lons), len(g.Lats), len(g.Lons))
	}
	return nil
}
