package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// MetricRequest asks for a verification metric over one or more forecasts.
type MetricRequest struct {
	ID            string    `json:"id,omitempty"`
	Metric        string    `json:"metric"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Variable      string    `json:"variable"`
	AggDays       int       `json:"agg_days"`
	Forecasts     []string  `json:"forecasts"`
	Truth         string    `json:"truth"`
	Grid          string    `json:"grid"`
	Mask          string    `json:"mask,omitempty"`
	SpaceGrouping string    `json:"space_grouping,omitempty"`
	Region        string    `json:"region,omitempty"`
	TimeGrouping  string    `json:"time_grouping,omitempty"`
	Spatial       bool      `json:"spatial,omitempty"`
	// Baseline turns every forecast value into a skill score against this forecast.
	Baseline string `json:"baseline,omitempty"`
}

// ForecastResult is the outcome of one forecast within a request.
type ForecastResult struct {
	Forecast      string     `json:"forecast"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	LeadHours     []float64  `json:"lead_hours,omitempty"`
	Groups        []string   `json:"groups,omitempty"`
	Regions       []string   `json:"regions,omitempty"`
	Lats          []float64  `json:"lats,omitempty"`
	Lons          []float64  `json:"lons,omitempty"`
	Values        []*float64 `json:"values,omitempty"`
	InvalidGroups int        `json:"invalid_groups,omitempty"`
}

// MetricResult is published to the sink topic for every processed request.
type MetricResult struct {
	ID            string           `json:"id"`
	Metric        string           `json:"metric"`
	Variable      string           `json:"variable"`
	AggDays       int              `json:"agg_days"`
	Truth         string           `json:"truth"`
	Grid          string           `json:"grid"`
	Region        string           `json:"region"`
	SpaceGrouping string           `json:"space_grouping"`
	TimeGrouping  string           `json:"time_grouping"`
	Spatial       bool             `json:"spatial,omitempty"`
	Baseline      string           `json:"baseline,omitempty"`
	Forecasts     []ForecastResult `json:"forecasts"`
	ComputedAt    time.Time        `json:"computed_at"`
}
