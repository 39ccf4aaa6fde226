// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics provides business metrics for the stock ledger.
// It tracks movement throughput, rejected issues, optimistic lock
// contention, and the current valuation of stock on hand.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	movementsRecordedTotal   *Counter
	insufficientStockTotal   *Counter
	lockConflictsTotal       *Counter
	duplicateMovementsTotal  *Counter
	negativeAdjustmentsTotal *Counter

	// Gauge metrics (point-in-time values)
	stockValueByMethod *FloatGauge
	openBatchCount     *Gauge
	negativeStockCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	valuationProvider ValuationMetricsProvider
}

// ValuationMetricsProvider provides aggregate valuation data for periodic
// metrics collection. The interface keeps the telemetry layer from
// depending on the valuation domain directly.
type ValuationMetricsProvider interface {
	// GetStockValueByMethod returns the total stock value per valuation method
	GetStockValueByMethod(ctx context.Context) (map[string]float64, error)

	// GetOpenBatchCount returns the number of open cost batches across all items
	GetOpenBatchCount(ctx context.Context) (int64, error)

	// GetNegativeStockCount returns the number of items with a negative balance
	GetNegativeStockCount(ctx context.Context) (int64, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter             metric.Meter
	Logger            *zap.Logger
	CollectInterval   time.Duration // Default: 5 minutes
	ValuationProvider ValuationMetricsProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:             cfg.Meter,
		logger:            logger,
		stopChan:          make(chan struct{}),
		valuationProvider: cfg.ValuationProvider,
	}

	var err error

	lm.movementsRecordedTotal, err = NewCounter(
		cfg.Meter,
		"ledger_movements_recorded_total",
		"Total number of stock movements recorded",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	lm.insufficientStockTotal, err = NewCounter(
		cfg.Meter,
		"ledger_insufficient_stock_total",
		"Total number of movements rejected for insufficient stock",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	lm.lockConflictsTotal, err = NewCounter(
		cfg.Meter,
		"ledger_lock_conflicts_total",
		"Total number of optimistic lock conflicts during movement recording",
		"{conflicts}",
	)
	if err != nil {
		return nil, err
	}

	lm.duplicateMovementsTotal, err = NewCounter(
		cfg.Meter,
		"ledger_duplicate_movements_total",
		"Total number of movements skipped as duplicates of a source document",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	lm.negativeAdjustmentsTotal, err = NewCounter(
		cfg.Meter,
		"ledger_negative_adjustments_total",
		"Total number of adjustments that drove a balance below zero",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	lm.stockValueByMethod, err = NewFloatGauge(
		cfg.Meter,
		"ledger_stock_value",
		"Current total stock value per valuation method",
		"{currency}",
	)
	if err != nil {
		return nil, err
	}

	lm.openBatchCount, err = NewGauge(
		cfg.Meter,
		"ledger_open_batch_count",
		"Number of open cost batches across all items",
		"{batches}",
	)
	if err != nil {
		return nil, err
	}

	lm.negativeStockCount, err = NewGauge(
		cfg.Meter,
		"ledger_negative_stock_count",
		"Number of items with a negative balance",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordMovement records a successfully committed stock movement.
func (lm *LedgerMetrics) RecordMovement(ctx context.Context, movementType, method string) {
	lm.movementsRecordedTotal.Inc(ctx,
		AttrMovementType.String(movementType),
		AttrValuationMethod.String(method),
	)
}

// RecordInsufficientStock records a movement rejected for insufficient stock.
func (lm *LedgerMetrics) RecordInsufficientStock(ctx context.Context, method string) {
	lm.insufficientStockTotal.Inc(ctx,
		AttrValuationMethod.String(method),
	)
}

// RecordLockConflict records one optimistic lock conflict. A single
// movement can produce several before its retries succeed or run out.
func (lm *LedgerMetrics) RecordLockConflict(ctx context.Context) {
	lm.lockConflictsTotal.Inc(ctx)
}

// RecordDuplicateMovement records a movement skipped because its source
// document reference was already processed.
func (lm *LedgerMetrics) RecordDuplicateMovement(ctx context.Context) {
	lm.duplicateMovementsTotal.Inc(ctx)
}

// RecordNegativeAdjustment records an adjustment that left the balance
// below zero.
func (lm *LedgerMetrics) RecordNegativeAdjustment(ctx context.Context, method string) {
	lm.negativeAdjustmentsTotal.Inc(ctx,
		AttrValuationMethod.String(method),
	)
}

// RecordStockValue records the current total stock value for a method.
func (lm *LedgerMetrics) RecordStockValue(ctx context.Context, method string, value float64) {
	lm.stockValueByMethod.Record(ctx, value,
		AttrValuationMethod.String(method),
	)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go lm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	lm.collectValuationMetrics(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collectValuationMetrics(ctx)
		}
	}
}

// collectValuationMetrics collects the valuation gauge metrics.
func (lm *LedgerMetrics) collectValuationMetrics(ctx context.Context) {
	if lm.valuationProvider == nil {
		lm.logger.Debug("No valuation provider configured, skipping metrics collection")
		return
	}

	valueByMethod, err := lm.valuationProvider.GetStockValueByMethod(ctx)
	if err != nil {
		lm.logger.Warn("Failed to get stock value by method", zap.Error(err))
	} else {
		for method, value := range valueByMethod {
			lm.RecordStockValue(ctx, method, value)
		}
	}

	openBatches, err := lm.valuationProvider.GetOpenBatchCount(ctx)
	if err != nil {
		lm.logger.Warn("Failed to get open batch count", zap.Error(err))
	} else {
		lm.openBatchCount.Record(ctx, openBatches)
	}

	negativeItems, err := lm.valuationProvider.GetNegativeStockCount(ctx)
	if err != nil {
		lm.logger.Warn("Failed to get negative stock count", zap.Error(err))
	} else {
		lm.negativeStockCount.Record(ctx, negativeItems)
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
