package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newCollectableMeter(t *testing.T) (metric.Meter, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return provider.Meter("db_metrics_test"), reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// counterValue sums the data points of an int64 counter that carry all
// the given attributes.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	if !ok {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", name)

	var total int64
	for _, dp := range sum.DataPoints {
		matches := true
		for _, attr := range want {
			if v, found := dp.Attributes.Value(attr.Key); !found || v != attr.Value {
				matches = false
				break
			}
		}
		if matches {
			total += dp.Value
		}
	}
	return total
}

func TestDefaultDBMetricsConfig(t *testing.T) {
	cfg := DefaultDBMetricsConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
}

func TestNormalizeTable(t *testing.T) {
	tests := []struct {
		table    string
		expected string
	}{
		{"inventory_items", "inventory_items"},
		{"stock_batches", "stock_batches"},
		{"ledger_entries", "ledger_entries"},
		{"schema_migrations", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTable(tt.table))
		})
	}
}

func TestNewDBMetrics(t *testing.T) {
	meter, _ := newCollectableMeter(t)

	m, err := NewDBMetrics(meter, nil, DefaultDBMetricsConfig(), zap.NewNop())

	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 200*time.Millisecond, m.slowThreshold)
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	meter, reader := newCollectableMeter(t)
	m, err := NewDBMetrics(meter, nil, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "select", "inventory_items", 3*time.Millisecond)
	m.RecordQuery(ctx, "INSERT", "ledger_entries", time.Millisecond)
	m.RecordQuery(ctx, "INSERT", "ledger_entries", time.Millisecond)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), counterValue(t, rm, "db_queries_total",
		AttrDBOperation.String("SELECT"), AttrDBTable.String("inventory_items")))
	assert.Equal(t, int64(2), counterValue(t, rm, "db_queries_total",
		AttrDBOperation.String("INSERT"), AttrDBTable.String("ledger_entries")))

	hist, ok := findMetric(rm, "db_query_duration_seconds")
	require.True(t, ok)
	histData, ok := hist.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.NotEmpty(t, histData.DataPoints)
}

func TestDBMetrics_SlowQuery(t *testing.T) {
	meter, reader := newCollectableMeter(t)
	m, err := NewDBMetrics(meter, nil, DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "SELECT", "ledger_entries", 50*time.Millisecond)
	m.RecordQuery(ctx, "SELECT", "ledger_entries", time.Millisecond)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), counterValue(t, rm, "db_slow_queries_total",
		AttrDBTable.String("ledger_entries")))
	assert.Equal(t, int64(2), counterValue(t, rm, "db_queries_total"))
}

func TestDBMetrics_UnknownTableGrouped(t *testing.T) {
	meter, reader := newCollectableMeter(t)
	m, err := NewDBMetrics(meter, nil, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	m.RecordQuery(context.Background(), "SELECT", "pg_stat_activity", time.Millisecond)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), counterValue(t, rm, "db_queries_total",
		AttrDBTable.String("other")))
}

func TestDBMetrics_PoolObservation(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	meter, reader := newCollectableMeter(t)
	m, err := NewDBMetrics(meter, sqlDB, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)
	defer m.Stop()

	rm := collectMetrics(t, reader)

	_, ok := findMetric(rm, "db_pool_connections")
	assert.True(t, ok, "pool connection gauge should be observed")

	maxMetric, ok := findMetric(rm, "db_pool_connections_max")
	require.True(t, ok, "pool max gauge should be observed")
	gauge, ok := maxMetric.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.NotEmpty(t, gauge.DataPoints)
}

func TestDBMetrics_StopIdempotent(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	meter, _ := newCollectableMeter(t)
	m, err := NewDBMetrics(meter, sqlDB, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	m.Stop()
	m.Stop()
}

func newMetricsTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return db, mock
}

func TestDBMetricsPlugin_CountsQueries(t *testing.T) {
	db, mock := newMetricsTestDB(t)
	meter, reader := newCollectableMeter(t)

	m, err := NewDBMetrics(meter, nil, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Use(NewDBMetricsPlugin(m)))

	mock.ExpectQuery(`SELECT \* FROM "inventory_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var rows []map[string]any
	require.NoError(t, db.Table("inventory_items").Find(&rows).Error)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), counterValue(t, rm, "db_queries_total",
		AttrDBOperation.String("SELECT"), AttrDBTable.String("inventory_items")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDBMetrics_Disabled(t *testing.T) {
	db, _ := newMetricsTestDB(t)

	m, err := RegisterDBMetrics(db, nil, DBMetricsConfig{Enabled: false}, zap.NewNop())

	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRegisterDBMetrics_NoMeterProvider(t *testing.T) {
	db, _ := newMetricsTestDB(t)

	m, err := RegisterDBMetrics(db, nil, DefaultDBMetricsConfig(), zap.NewNop())

	require.NoError(t, err)
	assert.Nil(t, m)
}
