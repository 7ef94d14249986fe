package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/forecast-verification-service/internal/adapter/http"
	"github.com/couchcryptid/forecast-verification-service/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockEvaluator struct {
	got []domain.MetricRequest
}

func (m *mockEvaluator) Evaluate(_ context.Context, req domain.MetricRequest) domain.MetricResult {
	m.got = append(m.got, req)
	res := domain.NewResult(req)
	res.Forecasts = append(res.Forecasts, domain.ForecastResult{Forecast: req.Forecasts[0], Status: domain.StatusOK})
	return res
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, nil, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

const evaluateBody = `{"metric":"mae","variable":"precip","forecasts":["salient"],"truth":"era5",` +
	`"grid":"global1_5","start":"2022-01-01T00:00:00Z","end":"2022-01-31T00:00:00Z"}`

func TestEvaluateReturnsResult(t *testing.T) {
	ev := &mockEvaluator{}
	srv := httpadapter.NewServer(":0", &mockReadiness{}, ev, slog.Default())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", strings.NewReader(evaluateBody))

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res domain.MetricResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "mae", res.Metric)
	assert.Equal(t, "global", res.Region, "defaults are applied")
	require.Len(t, res.Forecasts, 1)
	assert.Equal(t, domain.StatusOK, res.Forecasts[0].Status)

	require.Len(t, ev.got, 1)
	assert.NotEmpty(t, ev.got[0].ID)
}

func TestEvaluateRejectsInvalidRequests(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockEvaluator{}, slog.Default())

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", "{", http.StatusBadRequest},
		{"missing truth", strings.Replace(evaluateBody, `"truth":"era5",`, "", 1), http.StatusBadRequest},
		{"too large", `{"metric":"` + strings.Repeat("x", 1<<20) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluate", strings.NewReader(tt.body)))

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, domain.StatusConfiguration, body["status"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestEvaluateNotRoutedWithoutEvaluator(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluate", strings.NewReader(evaluateBody)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
