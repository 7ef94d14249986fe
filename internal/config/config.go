package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// DataDir is the root of the local dataset fixtures.
	DataDir string

	// Remote data service configuration.
	DataServiceURL     string
	DataServiceEnabled bool
	DataServiceTimeout time.Duration

	StatisticCacheSize int
	StatisticWorkers   int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	dataServiceTimeoutStr := sharedcfg.EnvOrDefault("DATA_SERVICE_TIMEOUT", "30s")
	dataServiceTimeout, err := time.ParseDuration(dataServiceTimeoutStr)
	if err != nil || dataServiceTimeout <= 0 {
		return nil, errors.New("invalid DATA_SERVICE_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("STATISTIC_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveInt("STATISTIC_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	dataServiceURL := os.Getenv("DATA_SERVICE_URL")
	dataServiceEnabled := dataServiceURL != ""
	if v := os.Getenv("DATA_SERVICE_ENABLED"); v != "" {
		dataServiceEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "metric-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "metric-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "forecast-verifier"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		DataDir: sharedcfg.EnvOrDefault("DATA_DIR", "data"),

		DataServiceURL:     dataServiceURL,
		DataServiceEnabled: dataServiceEnabled,
		DataServiceTimeout: dataServiceTimeout,

		StatisticCacheSize: cacheSize,
		StatisticWorkers:   workers,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.DataServiceEnabled && cfg.DataServiceURL == "" {
		return nil, errors.New("DATA_SERVICE_ENABLED is true but DATA_SERVICE_URL is not set")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key + ": must be a positive integer")
	}
	return n, nil
}
