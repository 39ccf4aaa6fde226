package persistence

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
)

// Database holds the database connection and its instrumentation
type Database struct {
	DB      *gorm.DB
	metrics *telemetry.DBMetrics
}

// Options configures the optional instrumentation of a connection.
// The zero value opens an uninstrumented, silent connection.
type Options struct {
	// Logger routes SQL logging through zap. Nil keeps GORM silent.
	Logger *zap.Logger
	// LogLevel is the GORM log level used when Logger is set
	LogLevel gormlogger.LogLevel

	// Metrics enables query and pool instrumentation when set
	Metrics       *telemetry.MeterProvider
	MetricsConfig telemetry.DBMetricsConfig
}

// NewDatabase opens an uninstrumented connection, mostly for tools and
// tests. Production wiring goes through Open.
func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	return Open(cfg, Options{})
}

// Open connects to the database and applies the requested logging and
// metrics instrumentation.
func Open(cfg *config.DatabaseConfig, opts Options) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLoggerFor(opts),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var metrics *telemetry.DBMetrics
	if opts.Metrics != nil {
		metrics, err = telemetry.RegisterDBMetrics(db, opts.Metrics, opts.MetricsConfig, opts.Logger)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to register database metrics: %w", err)
		}
	}

	return &Database{DB: db, metrics: metrics}, nil
}

func gormLoggerFor(opts Options) gormlogger.Interface {
	if opts.Logger == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return logger.NewGormLogger(opts.Logger, logger.GormConfig{Level: opts.LogLevel})
}

// Close stops the instrumentation and closes the connection
func (d *Database) Close() error {
	if d.metrics != nil {
		d.metrics.Stop()
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	MaxIdleClosed      int64
	MaxIdleTimeClosed  int64
	MaxLifetimeClosed  int64
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.DB.Transaction(fn)
}
