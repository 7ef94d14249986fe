package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/couchcryptid/forecast-verification-service/internal/grouping"
	"github.com/couchcryptid/forecast-verification-service/internal/metric"
	"github.com/couchcryptid/forecast-verification-service/internal/observability"
)

// MetricEngine evaluates metrics for a single forecast.
type MetricEngine interface {
	Compute(ctx context.Context, name string, cfg metric.Config) (*metric.Result, error)
	Skill(ctx context.Context, name string, cfg metric.Config, baseline string) (*metric.Result, error)
}

// Evaluator implements Transformer by running a metric request through the
// engine once per forecast.
type Evaluator struct {
	engine  MetricEngine
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(engine MetricEngine, logger *slog.Logger, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{
		engine:  engine,
		logger:  logger,
		metrics: metrics,
	}
}

// Transform parses the request and evaluates it. Only a malformed request is
// an error; per-forecast failures are reported in the result.
func (e *Evaluator) Transform(ctx context.Context, raw domain.RawEvent) (domain.MetricResult, error) {
	req, err := domain.ParseRequest(raw)
	if err != nil {
		return domain.MetricResult{}, err
	}
	return e.Evaluate(ctx, req), nil
}

// Evaluate computes the requested metric for every forecast of a validated
// request.
func (e *Evaluator) Evaluate(ctx context.Context, req domain.MetricRequest) domain.MetricResult {
	result := domain.NewResult(req)
	for _, forecast := range req.Forecasts {
		result.Forecasts = append(result.Forecasts, e.evaluateForecast(ctx, req, forecast))
	}
	return result
}

func (e *Evaluator) evaluateForecast(ctx context.Context, req domain.MetricRequest, forecast string) domain.ForecastResult {
	cfg := metric.Config{
		Start:         req.Start,
		End:           req.End,
		Variable:      req.Variable,
		AggDays:       req.AggDays,
		Forecast:      forecast,
		Truth:         req.Truth,
		Grid:          req.Grid,
		Mask:          req.Mask,
		SpaceGrouping: req.SpaceGrouping,
		Region:        req.Region,
		TimeGrouping:  grouping.TimeGrouping(req.TimeGrouping),
		Spatial:       req.Spatial,
	}

	start := time.Now()
	var (
		res *metric.Result
		err error
	)
	if req.Baseline != "" {
		res, err = e.engine.Skill(ctx, req.Metric, cfg, req.Baseline)
	} else {
		res, err = e.engine.Compute(ctx, req.Metric, cfg)
	}
	status := domain.Classify(err)
	label := metricLabel(req.Metric)

	e.metrics.Evaluations.WithLabelValues(label, status).Inc()
	e.metrics.EvaluationDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	out := domain.ForecastResult{Forecast: forecast, Status: status}
	if err != nil {
		level := slog.LevelWarn
		if status == domain.StatusNotImplemented {
			level = slog.LevelInfo
		}
		e.logger.Log(ctx, level, "metric evaluation failed",
			"request_id", req.ID,
			"metric", req.Metric,
			"forecast", forecast,
			"status", status,
			"error", err,
		)
		out.Error = err.Error()
		return out
	}

	if res.InvalidGroups > 0 {
		e.metrics.InvalidGroups.WithLabelValues(label).Add(float64(res.InvalidGroups))
	}
	v := res.Values
	out.LeadHours = leadHours(v.Leads)
	out.Groups = v.Groups
	out.Regions = v.Regions
	out.Lats = v.Lats
	out.Lons = v.Lons
	out.Values = grid.Nullable(v.Data)
	out.InvalidGroups = res.InvalidGroups
	return out
}

// metricLabel bounds the metric label to the known metric kinds. Bin edges are
// dropped and unparseable names become "unknown".
func metricLabel(name string) string {
	spec, err := metric.ParseName(name)
	if err != nil {
		return "unknown"
	}
	return spec.Kind.String()
}

func leadHours(leads []time.Duration) []float64 {
	hours := make([]float64, len(leads))
	for i, l := range leads {
		hours[i] = l.Hours()
	}
	return hours
}
