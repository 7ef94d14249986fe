package metric

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

// Skill evaluates the metric for cfg.Forecast and for baseline and returns
// 1 - metric/baseline per group.
func (e *Engine) Skill(ctx context.Context, name string, cfg Config, baseline string) (*Result, error) {
	var m, b *Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		m, err = e.Compute(gctx, name, cfg)
		return err
	})
	g.Go(func() error {
		base := cfg
		base.Forecast = baseline
		var err error
		if b, err = e.Compute(gctx, name, base); err != nil {
			return fmt.Errorf("baseline %q: %w", baseline, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !m.Values.SameShape(b.Values) ||
		!slices.Equal(m.Values.Groups, b.Values.Groups) ||
		!slices.Equal(m.Values.Regions, b.Values.Regions) {
		return nil, domain.Configf("forecast %q and baseline %q results are not aligned", cfg.Forecast, baseline)
	}
	values := grid.Combine([]*grid.Grouped{m.Values, b.Values}, func(v []float64) float64 {
		return 1 - v[0]/v[1]
	})
	return &Result{
		Metric:        m.Metric,
		Forecast:      m.Forecast,
		Values:        values,
		InvalidGroups: m.InvalidGroups,
	}, nil
}
