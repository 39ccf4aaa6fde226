package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold flags queries the ledger workload should
// never take this long to run.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// GormConfig controls the SQL logging adapter.
type GormConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration // zero means DefaultSlowQueryThreshold
	LogNotFound   bool          // record-not-found errors are suppressed unless set
}

// GormLogger adapts zap to gormlogger.Interface. Every line carries the
// request and trace identifiers found on the query context, so SQL logs
// correlate with the movement that issued them.
type GormLogger struct {
	zl            *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	logNotFound   bool
}

// NewGormLogger creates a GORM logger backed by zap
func NewGormLogger(zl *zap.Logger, cfg GormConfig) *GormLogger {
	threshold := cfg.SlowThreshold
	if threshold == 0 {
		threshold = DefaultSlowQueryThreshold
	}
	return &GormLogger{
		zl:            zl.Named("gorm"),
		level:         cfg.Level,
		slowThreshold: threshold,
		logNotFound:   cfg.LogNotFound,
	}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.zl.Info(fmt.Sprintf(msg, args...), correlationFields(ctx)...)
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.zl.Warn(fmt.Sprintf(msg, args...), correlationFields(ctx)...)
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.zl.Error(fmt.Sprintf(msg, args...), correlationFields(ctx)...)
	}
}

// Trace implements gormlogger.Interface. Failed queries log at error,
// queries over the slow threshold at warn, everything else at debug.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := append(correlationFields(ctx),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)

	switch {
	case err != nil && l.level >= gormlogger.Error:
		if !l.logNotFound && errors.Is(err, gormlogger.ErrRecordNotFound) {
			return
		}
		l.zl.Error("query failed", append(fields, zap.Error(err))...)

	case l.slowThreshold > 0 && elapsed >= l.slowThreshold && l.level >= gormlogger.Warn:
		l.zl.Warn("slow query", append(fields, zap.Duration("threshold", l.slowThreshold))...)

	case l.level >= gormlogger.Info:
		l.zl.Debug("query", fields...)
	}
}

// correlationFields extracts the request and trace identifiers carried
// on the context, if any
func correlationFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	return fields
}

// GormLevelFromString maps a config log level onto a GORM log level
func GormLevelFromString(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
