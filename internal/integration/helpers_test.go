//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/forecast-verification-service/internal/adapter/fixture"
	"github.com/couchcryptid/forecast-verification-service/internal/domain"
	"github.com/couchcryptid/forecast-verification-service/internal/metric"
	"github.com/couchcryptid/forecast-verification-service/internal/observability"
	"github.com/couchcryptid/forecast-verification-service/internal/pipeline"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("verification-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// newEvaluator generates fixtures in a temp dir and returns an evaluator over them.
func newEvaluator(t *testing.T) *pipeline.Evaluator {
	t.Helper()
	dir := t.TempDir()
	_, err := fixture.Generate(dir, fixture.DefaultOptions())
	require.NoError(t, err)

	store := fixture.New(dir, discardLogger())
	engine := metric.NewEngine(metric.Deps{
		Data:        store,
		Regions:     store,
		Masks:       store,
		Climatology: store,
		Logger:      discardLogger(),
	})
	return pipeline.NewEvaluator(engine, discardLogger(), observability.NewMetricsForTesting())
}

// sampleRequest scores the two deterministic demo models over June.
func sampleRequest(metricName string) domain.MetricRequest {
	start := fixture.DefaultOptions().Start
	return domain.MetricRequest{
		Metric:    metricName,
		Start:     start,
		End:       start.AddDate(0, 0, 29),
		Variable:  "tmp2m",
		AggDays:   1,
		Forecasts: []string{"model_a", "model_b"},
		Truth:     fixture.TruthName,
		Grid:      fixture.DefaultOptions().Grid,
	}
}
