package valuation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/valuation"
)

// Simulator answers "what would this issue cost" questions without
// committing anything. It runs the same outbound computation as the
// engine against a point-in-time snapshot and discards the outcome, so
// the preview can never drift from what a real movement would do.
type Simulator struct {
	itemRepo  valuation.ItemRepository
	batchRepo valuation.BatchRepository
	logger    *zap.Logger
}

// NewSimulator creates a new COGS simulator
func NewSimulator(itemRepo valuation.ItemRepository, batchRepo valuation.BatchRepository, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		itemRepo:  itemRepo,
		batchRepo: batchRepo,
		logger:    logger,
	}
}

// SimulateCOGS computes the cost of goods sold if the given quantity were
// issued right now. An infeasible issue (insufficient stock) is a normal
// answer, not an error: the result reports Feasible=false together with
// what is actually available.
func (s *Simulator) SimulateCOGS(ctx context.Context, itemID uuid.UUID, quantity decimal.Decimal) (*SimulationResult, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidMovement.WithDetails("simulated quantity must be positive")
	}

	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var openBatches []valuation.StockBatch
	if item.IsBatchTracked() {
		openBatches, err = s.batchRepo.FindOpenByItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
	}

	available := item.QuantityOnHand
	if item.IsBatchTracked() {
		available = valuation.OpenQuantity(openBatches)
	}

	outcome, err := valuation.ComputeOutbound(item, openBatches, quantity, false)
	if errors.Is(err, shared.ErrInsufficientStock) {
		return &SimulationResult{
			ItemID:            itemID,
			Feasible:          false,
			RequestedQuantity: quantity,
			AvailableQuantity: available,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &SimulationResult{
		ItemID:            itemID,
		Feasible:          true,
		RequestedQuantity: quantity,
		AvailableQuantity: available,
		COGSIfIssued:      outcome.TotalCost,
		AverageRateUsed:   outcome.UnitCost,
	}
	if outcome.Consumption != nil {
		for _, slice := range outcome.Consumption.Slices {
			result.Batches = append(result.Batches, SimulatedBatchUse{
				BatchID:   slice.BatchID,
				LotNumber: slice.LotNumber,
				Quantity:  slice.Quantity,
				UnitRate:  slice.UnitRate,
				SliceCost: slice.SliceCost,
			})
		}
	}

	s.logger.Debug("simulated issue",
		zap.String("item_id", itemID.String()),
		zap.String("quantity", quantity.String()),
		zap.Bool("feasible", result.Feasible),
		zap.String("cogs", result.COGSIfIssued.String()))

	return result, nil
}
