package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker  = "localhost:9092"
	testServiceURL = "http://data-service:8081"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "metric-requests", cfg.KafkaSourceTopic)
	assert.Equal(t, "metric-results", cfg.KafkaSinkTopic)
	assert.Equal(t, "forecast-verifier", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, "data", cfg.DataDir)
	assert.False(t, cfg.DataServiceEnabled)
	assert.Empty(t, cfg.DataServiceURL)
	assert.Equal(t, 30*time.Second, cfg.DataServiceTimeout)
	assert.Equal(t, 256, cfg.StatisticCacheSize)
	assert.Equal(t, 4, cfg.StatisticWorkers)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("DATA_DIR", "/srv/verification")
	t.Setenv("DATA_SERVICE_URL", testServiceURL)
	t.Setenv("DATA_SERVICE_TIMEOUT", "2m")
	t.Setenv("STATISTIC_CACHE_SIZE", "64")
	t.Setenv("STATISTIC_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "/srv/verification", cfg.DataDir)
	assert.True(t, cfg.DataServiceEnabled)
	assert.Equal(t, testServiceURL, cfg.DataServiceURL)
	assert.Equal(t, 2*time.Minute, cfg.DataServiceTimeout)
	assert.Equal(t, 64, cfg.StatisticCacheSize)
	assert.Equal(t, 8, cfg.StatisticWorkers)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidDataServiceTimeout(t *testing.T) {
	t.Setenv("DATA_SERVICE_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_SERVICE_TIMEOUT")
}

func TestLoad_InvalidPositiveInts(t *testing.T) {
	for _, key := range []string{"STATISTIC_CACHE_SIZE", "STATISTIC_WORKERS"} {
		for _, v := range []string{"0", "-3", "many"} {
			t.Run(key+"="+v, func(t *testing.T) {
				t.Setenv(key, v)
				_, err := Load()
				require.Error(t, err)
				assert.Contains(t, err.Error(), key)
			})
		}
	}
}

func TestLoad_DataServiceEnabledWithoutURL(t *testing.T) {
	t.Setenv("DATA_SERVICE_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_SERVICE_URL")
}

func TestLoad_DataServiceExplicitlyDisabled(t *testing.T) {
	t.Setenv("DATA_SERVICE_URL", testServiceURL)
	t.Setenv("DATA_SERVICE_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.DataServiceEnabled)
}
