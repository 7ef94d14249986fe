// Package grouping reduces statistic cubes over time groups and spatial regions.
package grouping

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

// TimeGrouping selects how valid times are bucketed before averaging.
type TimeGrouping string

const (
	None          TimeGrouping = "none"
	DayOfYear     TimeGrouping = "day_of_year"
	MonthOfYear   TimeGrouping = "month_of_year"
	QuarterOfYear TimeGrouping = "quarter_of_year"
	Year          TimeGrouping = "year"
	Month         TimeGrouping = "month"
	Day           TimeGrouping = "day"
)

// Agg is the reduction applied within a group.
type Agg int

const (
	Mean Agg = iota
	Sum
)

func (a Agg) String() string {
	if a == Sum {
		return "sum"
	}
	return "mean"
}

// ParseTimeGrouping validates a time grouping name. The empty string means none.
func ParseTimeGrouping(s string) (TimeGrouping, error) {
	switch g := TimeGrouping(s); g {
	case "":
		return None, nil
	case None, DayOfYear, MonthOfYear, QuarterOfYear, Year, Month, Day:
		return g, nil
	default:
		return "", domain.Configf("invalid time grouping %q", s)
	}
}

// Label returns the group label for a valid time.
func (g TimeGrouping) Label(t time.Time) string {
	switch g {
	case DayOfYear:
		return fmt.Sprintf("D%03d", t.YearDay())
	case MonthOfYear:
		return fmt.Sprintf("M%02d", int(t.Month()))
	case QuarterOfYear:
		return fmt.Sprintf("Q%02d", (int(t.Month())-1)/3+1)
	case Year:
		return fmt.Sprintf("Y%04d", t.Year())
	case Month:
		return fmt.Sprintf("%04d-%02d-01", t.Year(), int(t.Month()))
	case Day:
		return t.Format(time.DateOnly)
	default:
		return ""
	}
}

// ByTime reduces a deterministic cube over its time axis. Missing values are
// skipped; a group with no present values stays missing.
func ByTime(c *grid.Cube, mode TimeGrouping, agg Agg) (*grid.Grouped, error) {
	if c.NMember() != 1 {
		return nil, fmt.Errorf("time grouping needs a deterministic array, got %d members", c.NMember())
	}

	var groups []string
	assign := make([]int, c.NTime())
	if mode != None {
		labels := make([]string, c.NTime())
		for i, t := range c.Times {
			labels[i] = mode.Label(t)
		}
		groups = slices.Clone(labels)
		slices.Sort(groups)
		groups = slices.Compact(groups)
		for i, l := range labels {
			assign[i], _ = slices.BinarySearch(groups, l)
		}
	}

	out := grid.NewGrouped(c.Leads, groups, c.Lats, c.Lons)
	out.Meta = c.Meta
	counts := make([]int, len(out.Data))
	sums := make([]float64, len(out.Data))
	nCell := c.NCell()
	for l := range c.Leads {
		for ti := range c.Times {
			src := c.Index(l, ti, 0, 0)
			dst := out.Index(l, assign[ti], 0)
			for cell := range nCell {
				v := c.Data[src+cell]
				if math.IsNaN(v) {
					continue
				}
				sums[dst+cell] += v
				counts[dst+cell]++
			}
		}
	}
	for i, n := range counts {
		if n == 0 {
			continue
		}
		if agg == Mean {
			out.Data[i] = sums[i] / float64(n)
		} else {
			out.Data[i] = sums[i]
		}
	}
	return out, nil
}
