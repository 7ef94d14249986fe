package kafka

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/grid"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("key-1"),
		Value:     []byte(`{"metric":"mae"}`),
		Topic:     "metric-requests",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("scheduler")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("key-1"), raw.Key)
	assert.JSONEq(t, `{"metric":"mae"}`, string(raw.Value))
	assert.Equal(t, "metric-requests", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "scheduler", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	result := domain.MetricResult{
		ID:         "req-0011223344556677",
		Metric:     "ets-5",
		Variable:   "precip",
		AggDays:    7,
		ComputedAt: now,
		Forecasts: []domain.ForecastResult{{
			Forecast: "salient",
			Status:   domain.StatusOK,
			Regions:  []string{"global"},
			Values:   grid.Nullable([]float64{0.25, math.NaN()}),
		}},
	}

	msg, err := serializeToMessage(result)
	require.NoError(t, err)

	assert.Equal(t, []byte("req-0011223344556677"), msg.Key)
	assert.Contains(t, string(msg.Value), `"values":[0.25,null]`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "metric", msg.Headers[0].Key)
	assert.Equal(t, []byte("ets-5"), msg.Headers[0].Value)
	assert.Equal(t, "computed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded domain.MetricResult
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "salient", decoded.Forecasts[0].Forecast)
	assert.Nil(t, decoded.Forecasts[0].Values[1])
}
