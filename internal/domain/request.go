package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Defaults applied to omitted request fields.
const (
	DefaultRegion        = "global"
	DefaultSpaceGrouping = "global"
	DefaultTimeGrouping  = "none"
	DefaultAggDays       = 1
)

// ParseRequest decodes a request message, applies defaults and validates it.
func ParseRequest(raw RawEvent) (MetricRequest, error) {
	var req MetricRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return MetricRequest{}, fmt.Errorf("parse metric request: %w", err)
	}
	req = NormalizeRequest(req)
	if err := ValidateRequest(req); err != nil {
		return MetricRequest{}, err
	}
	if req.ID == "" {
		req.ID = RequestID(req)
	}
	return req, nil
}

// NormalizeRequest fills defaults and trims names.
func NormalizeRequest(req MetricRequest) MetricRequest {
	req.Metric = strings.ToLower(strings.TrimSpace(req.Metric))
	req.Variable = strings.TrimSpace(req.Variable)
	if req.AggDays == 0 {
		req.AggDays = DefaultAggDays
	}
	if req.Region == "" {
		req.Region = DefaultRegion
	}
	if req.SpaceGrouping == "" {
		req.SpaceGrouping = DefaultSpaceGrouping
	}
	if req.TimeGrouping == "" {
		req.TimeGrouping = DefaultTimeGrouping
	}
	forecasts := make([]string, 0, len(req.Forecasts))
	for _, f := range req.Forecasts {
		if f = strings.TrimSpace(f); f != "" {
			forecasts = append(forecasts, f)
		}
	}
	req.Forecasts = forecasts
	return req
}

// ValidateRequest checks the fields every metric needs.
func ValidateRequest(req MetricRequest) error {
	switch {
	case req.Metric == "":
		return Configf("metric is required")
	case req.Variable == "":
		return Configf("variable is required")
	case len(req.Forecasts) == 0:
		return Configf("at least one forecast is required")
	case req.Truth == "":
		return Configf("truth is required")
	case req.Grid == "":
		return Configf("grid is required")
	case req.Start.IsZero() || req.End.IsZero():
		return Configf("start and end are required")
	case req.End.Before(req.Start):
		return Configf("end %s is before start %s", req.End.Format(time.DateOnly), req.Start.Format(time.DateOnly))
	case req.AggDays < 0:
		return Configf("agg_days must be positive, got %d", req.AggDays)
	}
	return nil
}

// RequestID derives a deterministic identifier from the request fields.
func RequestID(req MetricRequest) string {
	input := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%s|%s|%s|%s|%t|%s|%s",
		req.Metric, req.Variable, req.AggDays, strings.Join(req.Forecasts, ","), req.Truth, req.Grid,
		req.Mask, req.SpaceGrouping, req.Region, req.TimeGrouping,
		req.Start.UTC().Format(time.RFC3339), req.Spatial, req.End.UTC().Format(time.RFC3339), req.Baseline)
	hash := sha256.Sum256([]byte(input))
	return "req-" + hex.EncodeToString(hash[:8])
}

// NewResult starts a result for the request, stamped with the current time.
func NewResult(req MetricRequest) MetricResult {
	return MetricResult{
		ID:            req.ID,
		Metric:        req.Metric,
		Variable:      req.Variable,
		AggDays:       req.AggDays,
		Truth:         req.Truth,
		Grid:          req.Grid,
		Region:        req.Region,
		SpaceGrouping: req.SpaceGrouping,
		TimeGrouping:  req.TimeGrouping,
		Spatial:       req.Spatial,
		Baseline:      req.Baseline,
		Forecasts:     make([]ForecastResult, 0, len(req.Forecasts)),
		ComputedAt:    clock.Now().UTC(),
	}
}
