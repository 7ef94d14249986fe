package metric

import (
	"context"

	"github.com/couchcryptid/forecast-verification-service/internal/climatology"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

// Global is the region and region layer that covers the whole grid.
const Global = "global"

// DataSource loads gridded forecasts and observations. Forecast returns an
// error wrapping domain.ErrUnknownSource when name is not a forecast, in which
// case the engine retries it as a truth dataset.
type DataSource interface {
	Forecast(ctx context.Context, name string, q grid.Query) (*grid.Cube, error)
	Truth(ctx context.Context, name string, q grid.Query) (*grid.Cube, error)
}

// Level is a region layer together with the regions selected from it.
type Level struct {
	Name    string
	Regions []string
}

// RegionSource resolves region names and provides per-cell region labels.
type RegionSource interface {
	// Resolve maps a layer name to the layer and all of its regions, or a
	// single region name to its layer and that region.
	Resolve(ctx context.Context, gridName, name string) (Level, error)
	Labels(ctx context.Context, gridName, layer string) (*grid.Labels, error)
}

// MaskSource provides named masks. The names "" and "none" mean no mask.
type MaskSource interface {
	Mask(ctx context.Context, name, gridName string) (*grid.Mask, error)
}

// ClimatologySource provides the climatologies used by ACC and SEEPS. Either
// method may return domain.ErrNotImplemented when nothing is available.
type ClimatologySource interface {
	Daily(ctx context.Context, variable string, aggDays int, gridName string) (*climatology.Daily, error)
	SEEPS(ctx context.Context, aggDays int, gridName string) (*climatology.SEEPS, error)
}
