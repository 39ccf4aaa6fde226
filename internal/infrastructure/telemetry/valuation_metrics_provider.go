// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormValuationMetricsProvider implements ValuationMetricsProvider using GORM.
// It queries the valuation tables directly for aggregated metrics.
type GormValuationMetricsProvider struct {
	db *gorm.DB
}

// NewGormValuationMetricsProvider creates a new GormValuationMetricsProvider.
func NewGormValuationMetricsProvider(db *gorm.DB) *GormValuationMetricsProvider {
	return &GormValuationMetricsProvider{db: db}
}

// GetStockValueByMethod returns the total stock value per valuation method.
func (p *GormValuationMetricsProvider) GetStockValueByMethod(ctx context.Context) (map[string]float64, error) {
	type result struct {
		Method string  `gorm:"column:method"`
		Total  float64 `gorm:"column:total"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("inventory_items").
		Select("method, COALESCE(SUM(stock_value), 0) as total").
		Group("method").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]float64, len(results))
	for _, r := range results {
		m[r.Method] = r.Total
	}

	return m, nil
}

// GetOpenBatchCount returns the number of open cost batches across all items.
func (p *GormValuationMetricsProvider) GetOpenBatchCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("stock_batches").
		Where("closed = ?", false).
		Count(&count).Error

	return count, err
}

// GetNegativeStockCount returns the number of items with a negative balance.
func (p *GormValuationMetricsProvider) GetNegativeStockCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("inventory_items").
		Where("quantity_on_hand < 0").
		Count(&count).Error

	return count, err
}

// Ensure GormValuationMetricsProvider implements ValuationMetricsProvider
var _ ValuationMetricsProvider = (*GormValuationMetricsProvider)(nil)

// RegisterLedgerMetrics builds the business metrics backed by a GORM
// valuation provider and starts periodic gauge collection. Returns nil
// metrics when the meter provider is not enabled. Call Stop on the
// returned metrics at shutdown.
func RegisterLedgerMetrics(ctx context.Context, db *gorm.DB, meterProvider *MeterProvider, interval time.Duration, logger *zap.Logger) (*LedgerMetrics, error) {
	if meterProvider == nil || !meterProvider.IsEnabled() {
		if logger != nil {
			logger.Debug("meter provider not available, skipping ledger metrics")
		}
		return nil, nil
	}

	lm, err := NewLedgerMetrics(LedgerMetricsConfig{
		Meter:             meterProvider.Meter("ledger"),
		Logger:            logger,
		CollectInterval:   interval,
		ValuationProvider: NewGormValuationMetricsProvider(db),
	})
	if err != nil {
		return nil, err
	}

	lm.StartPeriodicCollection(ctx, interval)
	return lm, nil
}
