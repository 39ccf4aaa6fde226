package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stockledger/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func TestNewLedgerMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, lm)
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, lm)
	assert.Equal(t, "NewLedgerMetrics: meter cannot be nil", err.Error())
}

func TestLedgerMetrics_RecordMovement(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	lm.RecordMovement(ctx, "PURCHASE_IN", "FIFO")
	lm.RecordMovement(ctx, "SALE_OUT", "WEIGHTED_AVERAGE")
}

func TestLedgerMetrics_RecordInsufficientStock(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	lm.RecordInsufficientStock(ctx, "FIFO")
	lm.RecordInsufficientStock(ctx, "LIFO")
}

func TestLedgerMetrics_RecordLockConflict(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	lm.RecordLockConflict(ctx)
	lm.RecordDuplicateMovement(ctx)
	lm.RecordNegativeAdjustment(ctx, "MOVING_AVERAGE")
}

func TestLedgerMetrics_RecordStockValue(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Should not panic
	lm.RecordStockValue(ctx, "FIFO", 12500.50)
	lm.RecordStockValue(ctx, "WEIGHTED_AVERAGE", 900.00)
}

// stubValuationProvider is a test double for ValuationMetricsProvider
type stubValuationProvider struct {
	values   map[string]float64
	batches  int64
	negative int64
}

func (s *stubValuationProvider) GetStockValueByMethod(ctx context.Context) (map[string]float64, error) {
	return s.values, nil
}

func (s *stubValuationProvider) GetOpenBatchCount(ctx context.Context) (int64, error) {
	return s.batches, nil
}

func (s *stubValuationProvider) GetNegativeStockCount(ctx context.Context) (int64, error) {
	return s.negative, nil
}

func TestLedgerMetrics_PeriodicCollection(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	provider := &stubValuationProvider{
		values:  map[string]float64{"FIFO": 1600, "WEIGHTED_AVERAGE": 900},
		batches: 5,
	}

	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:             meter,
		Logger:            zap.NewNop(),
		ValuationProvider: provider,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collection runs immediately on start and should not panic
	lm.StartPeriodicCollection(ctx, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	lm.Stop()
	// Stop is idempotent
	lm.Stop()
}
