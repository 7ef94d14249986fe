// Package datasvc loads forecast and truth cubes from a remote gridded-data
// service over HTTP.
package datasvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/couchcryptid/forecast-verification-service/internal/observability"
)

// Client implements metric.DataSource against the data service API:
//
//	GET {base}/v1/forecasts/{name}?variable=&grid=&agg_days=&start=&end=
//	GET {base}/v1/truth/{name}?...
//
// Both return a cube in the grid JSON encoding.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a data service client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Forecast fetches a forecast cube. A 404 reports the name as unknown.
func (c *Client) Forecast(ctx context.Context, name string, q grid.Query) (*grid.Cube, error) {
	return c.fetch(ctx, "forecast", "forecasts", name, q)
}

// Truth fetches an observation cube.
func (c *Client) Truth(ctx context.Context, name string, q grid.Query) (*grid.Cube, error) {
	return c.fetch(ctx, "truth", "truth", name, q)
}

func (c *Client) fetch(ctx context.Context, dataset, path, name string, q grid.Query) (*grid.Cube, error) {
	params := url.Values{
		"variable": {q.Variable},
		"grid":     {q.Grid},
		"agg_days": {strconv.Itoa(q.AggDays)},
		"start":    {q.Start.UTC().Format(time.RFC3339)},
		"end":      {q.End.UTC().Format(time.RFC3339)},
	}
	u := fmt.Sprintf("%s/v1/%s/%s?%s", c.baseURL, path, url.PathEscape(name), params.Encode())

	start := time.Now()
	cube, outcome, err := c.doRequest(ctx, u, dataset, name)
	c.metrics.DataServiceDuration.WithLabelValues(dataset).Observe(time.Since(start).Seconds())
	c.metrics.DataServiceRequests.WithLabelValues(dataset, outcome).Inc()
	if err != nil {
		c.logger.Warn("data service request failed", "dataset", dataset, "name", name, "error", err)
		return nil, err
	}
	return cube, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, dataset, name string) (*grid.Cube, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, "error", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "error", domain.Unavailablef("%s %s request: %v", dataset, name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "unknown", fmt.Errorf("%w: %s %q", domain.ErrUnknownSource, dataset, name)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "error", domain.Unavailablef("data service error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cube grid.Cube
	if err := json.NewDecoder(resp.Body).Decode(&cube); err != nil {
		return nil, "error", domain.Unavailablef("decode %s %s: %v", dataset, name, err)
	}
	return &cube, "success", nil
}
