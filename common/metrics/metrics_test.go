package metrics_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"exam-service/common/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRecordQuery(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	m, err := metrics.New(ctx, "metrics-test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	m.Database.RecordQuery(ctx, "select", "tests", 3*time.Millisecond, nil)
	m.Database.RecordQuery(ctx, "select", "tests", time.Millisecond, sql.ErrNoRows)
	m.Database.RecordQuery(ctx, "insert", "tests", time.Millisecond, errors.New("boom"))

	got := collect(t, reader)

	duration, ok := got["db.query.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range duration.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)

	failures, ok := got["db.query.errors"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, failures.DataPoints, 1)
	assert.Equal(t, int64(1), failures.DataPoints[0].Value)
}

func TestDependencyChecks(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMock()

	assert.False(t, m.Health.Available("database"))

	m.Health.RecordDependencyCheck(ctx, "database", time.Millisecond, nil)
	assert.True(t, m.Health.Available("database"))

	m.Health.RecordDependencyCheck(ctx, "database", time.Millisecond, errors.New("down"))
	assert.False(t, m.Health.Available("database"))
}

func TestMockIgnoresRecords(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMock()

	assert.NotPanics(t, func() {
		m.Database.RecordQuery(ctx, "select", "users", time.Millisecond, errors.New("x"))
		m.Messaging.RecordPublish(ctx, "exam.events", time.Millisecond, nil)
	})

	var nilDB *metrics.DatabaseMetrics
	assert.NotPanics(t, func() {
		nilDB.RecordQuery(ctx, "select", "users", time.Millisecond, nil)
	})
}
