package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool
	// SlowQueryThreshold marks queries as slow (default 200ms).
	SlowQueryThreshold time.Duration
}

// DefaultDBMetricsConfig returns the default database metrics configuration.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

// ledgerTables are the relations this schema owns. Anything else
// (schema_migrations, ad-hoc queries) is grouped under "other" so the
// table attribute stays bounded.
var ledgerTables = map[string]struct{}{
	"inventory_items": {},
	"stock_batches":   {},
	"ledger_entries":  {},
}

func normalizeTable(table string) string {
	if _, ok := ledgerTables[table]; ok {
		return table
	}
	return "other"
}

// DBMetrics instruments the ledger database: per-operation query counts
// and latency, slow query counts, and connection pool state observed
// straight from sql.DB on every export.
type DBMetrics struct {
	queryTotal     *Counter   // db_queries_total
	queryDuration  *Histogram // db_query_duration_seconds
	slowQueryTotal *Counter   // db_slow_queries_total

	poolRegistration metric.Registration

	slowThreshold time.Duration
	logger        *zap.Logger
}

// NewDBMetrics creates database metrics on the given meter. When sqlDB is
// non-nil the connection pool is observed through an asynchronous gauge
// callback; pass nil to instrument queries only.
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}

	m := &DBMetrics{
		slowThreshold: cfg.SlowQueryThreshold,
		logger:        logger,
	}

	var err error
	m.queryTotal, err = NewCounter(
		meter,
		"db_queries_total",
		"Total number of database queries by operation and table",
		"{query}",
	)
	if err != nil {
		return nil, err
	}

	m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.slowQueryTotal, err = NewCounter(
		meter,
		"db_slow_queries_total",
		"Total number of queries over the slow query threshold",
		"{query}",
	)
	if err != nil {
		return nil, err
	}

	if sqlDB != nil {
		if err := m.observePool(meter, sqlDB); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// observePool registers asynchronous gauges that read pool statistics
// from sql.DB at export time.
func (m *DBMetrics) observePool(meter metric.Meter, sqlDB *sql.DB) error {
	open, err := meter.Int64ObservableGauge(
		"db_pool_connections",
		metric.WithDescription("Number of connections in the pool by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	maxOpen, err := meter.Int64ObservableGauge(
		"db_pool_connections_max",
		metric.WithDescription("Maximum number of open connections in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	m.poolRegistration, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			stats := sqlDB.Stats()
			o.ObserveInt64(open, int64(stats.Idle),
				metric.WithAttributes(AttrDBState.String("idle")))
			o.ObserveInt64(open, int64(stats.InUse),
				metric.WithAttributes(AttrDBState.String("in_use")))
			o.ObserveInt64(maxOpen, int64(stats.MaxOpenConnections))
			return nil
		},
		open, maxOpen,
	)
	return err
}

// Stop unregisters the pool observer. Safe to call when no pool is
// being observed.
func (m *DBMetrics) Stop() {
	if m.poolRegistration != nil {
		if err := m.poolRegistration.Unregister(); err != nil {
			m.logger.Warn("failed to unregister pool metrics", zap.Error(err))
		}
		m.poolRegistration = nil
	}
}

// RecordQuery records one completed query.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, elapsed time.Duration) {
	operation = strings.ToUpper(operation)
	attrs := []attribute.KeyValue{
		AttrDBOperation.String(operation),
		AttrDBTable.String(normalizeTable(table)),
	}

	m.queryTotal.Inc(ctx, attrs...)
	m.queryDuration.RecordDuration(ctx, elapsed, attrs...)

	if elapsed >= m.slowThreshold {
		m.slowQueryTotal.Inc(ctx, attrs...)
	}
}

// queryStartKey carries the query start time through the gorm statement
// context between the before and after callbacks.
type queryStartKey struct{}

// DBMetricsPlugin is a GORM plugin that feeds DBMetrics from the
// create, query, update, and delete callback chains. The repositories
// only issue those four operation kinds.
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

// NewDBMetricsPlugin creates the GORM metrics plugin.
func NewDBMetricsPlugin(metrics *DBMetrics) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

// Name returns the plugin name.
func (p *DBMetricsPlugin) Name() string {
	return "ledger_db_metrics"
}

// Initialize registers the callbacks on both sides of each operation.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
	}

	after := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			p.record(db, operation)
		}
	}

	callbacks := []struct {
		operation string
		register  func(before, after func(*gorm.DB)) error
	}{
		{"INSERT", func(b, a func(*gorm.DB)) error {
			if err := db.Callback().Create().Before("gorm:create").Register("ledger_metrics:before_create", b); err != nil {
				return err
			}
			return db.Callback().Create().After("gorm:create").Register("ledger_metrics:after_create", a)
		}},
		{"SELECT", func(b, a func(*gorm.DB)) error {
			if err := db.Callback().Query().Before("gorm:query").Register("ledger_metrics:before_query", b); err != nil {
				return err
			}
			return db.Callback().Query().After("gorm:query").Register("ledger_metrics:after_query", a)
		}},
		{"UPDATE", func(b, a func(*gorm.DB)) error {
			if err := db.Callback().Update().Before("gorm:update").Register("ledger_metrics:before_update", b); err != nil {
				return err
			}
			return db.Callback().Update().After("gorm:update").Register("ledger_metrics:after_update", a)
		}},
		{"DELETE", func(b, a func(*gorm.DB)) error {
			if err := db.Callback().Delete().Before("gorm:delete").Register("ledger_metrics:before_delete", b); err != nil {
				return err
			}
			return db.Callback().Delete().After("gorm:delete").Register("ledger_metrics:after_delete", a)
		}},
	}

	for _, cb := range callbacks {
		if err := cb.register(before, after(cb.operation)); err != nil {
			return err
		}
	}
	return nil
}

// record measures one finished gorm operation.
func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var elapsed time.Duration
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}

	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, elapsed)
}

// RegisterDBMetrics instruments a GORM connection: query metrics via the
// plugin and pool metrics via the observable gauges. Returns nil metrics
// when disabled. Call Stop on the returned metrics at shutdown.
func RegisterDBMetrics(db *gorm.DB, meterProvider *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("database metrics disabled")
		return nil, nil
	}
	if meterProvider == nil || !meterProvider.IsEnabled() {
		logger.Debug("meter provider not available, skipping database metrics")
		return nil, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	metrics, err := NewDBMetrics(meterProvider.Meter("db.client"), sqlDB, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := db.Use(NewDBMetricsPlugin(metrics)); err != nil {
		metrics.Stop()
		return nil, err
	}

	logger.Info("database metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold))

	return metrics, nil
}
