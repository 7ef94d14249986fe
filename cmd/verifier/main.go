package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/forecast-verification-service/internal/adapter/datasvc"
	"github.com/couchcryptid/forecast-verification-service/internal/adapter/fixture"
	httpadapter "github.com/couchcryptid/forecast-verification-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/forecast-verification-service/internal/adapter/kafka"
	"github.com/couchcryptid/forecast-verification-service/internal/config"
	"github.com/couchcryptid/forecast-verification-service/internal/metric"
	"github.com/couchcryptid/forecast-verification-service/internal/observability"
	"github.com/couchcryptid/forecast-verification-service/internal/pipeline"
	"github.com/couchcryptid/forecast-verification-service/internal/statcache"
	"github.com/couchcryptid/forecast-verification-service/internal/statistic"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Regions, masks and climatologies always come from the local fixtures.
	store := fixture.New(cfg.DataDir, logger)

	// Gridded data switches to the remote service via DATA_SERVICE_ENABLED / DATA_SERVICE_URL.
	var data metric.DataSource = store
	if cfg.DataServiceEnabled {
		data = datasvc.NewClient(cfg.DataServiceURL, cfg.DataServiceTimeout, metrics, logger)
		metrics.DataServiceEnabled.Set(1)
		logger.Info("data service enabled", "url", cfg.DataServiceURL, "timeout", cfg.DataServiceTimeout)
	} else {
		logger.Info("serving datasets from fixtures", "dir", cfg.DataDir)
	}

	engine := metric.NewEngine(metric.Deps{
		Data:        data,
		Regions:     store,
		Masks:       store,
		Climatology: store,
		Statistics:  statcache.NewCachedComputer(statistic.Library{}, cfg.StatisticCacheSize, metrics),
		Workers:     cfg.StatisticWorkers,
		Logger:      logger,
	})
	evaluator := pipeline.NewEvaluator(engine, logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, evaluator, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, evaluator, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
