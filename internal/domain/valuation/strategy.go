package valuation

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// MovementOutcome is the computed effect of applying one movement to an
// item snapshot. It carries everything needed to persist the movement
// (new running fields, batch changes) and everything needed to report it
// (cost figures), but applies nothing itself: both the engine and the
// COGS simulator run on the same outcome, the simulator just discards it.
type MovementOutcome struct {
	UnitCost       decimal.Decimal    // Per-unit cost used for the ledger entry
	TotalCost      decimal.Decimal    // Total cost impact of the movement
	NewQuantity    decimal.Decimal    // Quantity on hand after the movement
	NewAverageCost decimal.Decimal    // Blended unit cost after the movement
	NewValue       decimal.Decimal    // Stock value after the movement
	NewBatch       *StockBatch        // Batch to open (inbound, batch-tracked only)
	Consumption    *ConsumptionResult // Slices to apply (outbound, batch-tracked only)
	BatchesTouched int                // Number of batches created or consumed from
}

// ComputeInbound computes the effect of receiving quantity at unitCost.
// For FIFO/LIFO a new batch is opened; for the averaging methods the
// blended unit cost is recomputed. The item and batches are not mutated.
func ComputeInbound(
	item *InventoryItem,
	quantity, unitCost decimal.Decimal,
	receivedAt time.Time,
	lotNumber string,
	expiryDate *time.Time,
) (*MovementOutcome, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidMovement.WithDetails("inbound quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.ErrInvalidMovement.WithDetails("unit cost cannot be negative")
	}

	totalCost := quantity.Mul(unitCost)
	newQuantity := item.QuantityOnHand.Add(quantity)
	newValue := item.StockValue.Add(totalCost)

	switch item.Method {
	case MethodFIFO, MethodLIFO:
		batch := NewStockBatch(item.ID, quantity, unitCost, receivedAt, lotNumber, expiryDate)
		newAverage := decimal.Zero
		if newQuantity.GreaterThan(decimal.Zero) {
			newAverage = newValue.Div(newQuantity).Round(4)
		}
		return &MovementOutcome{
			UnitCost:       unitCost,
			TotalCost:      totalCost,
			NewQuantity:    newQuantity,
			NewAverageCost: newAverage,
			NewValue:       newValue,
			NewBatch:       batch,
			BatchesTouched: 1,
		}, nil

	case MethodWeightedAverage, MethodMovingAverage:
		return &MovementOutcome{
			UnitCost:       unitCost,
			TotalCost:      totalCost,
			NewQuantity:    newQuantity,
			NewAverageCost: item.recalculateAverage(quantity, unitCost),
			NewValue:       newValue,
		}, nil

	default:
		return nil, shared.ErrInvalidState.WithDetails("item %s has unknown valuation method %q", item.ID, item.Method)
	}
}

// ComputeOutbound computes the effect of issuing quantity. The cost is
// always derived from current state: batch slices in receipt order for
// FIFO/LIFO, the blended unit cost for the averaging methods. The item
// and batches are not mutated.
//
// allowNegative permits the balance to go below zero; any shortfall
// beyond the open batches is costed at the item's current average so the
// value recurrence still holds.
func ComputeOutbound(
	item *InventoryItem,
	batches []StockBatch,
	quantity decimal.Decimal,
	allowNegative bool,
) (*MovementOutcome, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidMovement.WithDetails("outbound quantity must be positive")
	}

	switch item.Method {
	case MethodFIFO, MethodLIFO:
		result, err := Consume(quantity, batches, item.Method.ConsumptionOrder())
		if err != nil {
			return nil, err
		}
		if !result.FullyFulfilled && !allowNegative {
			return nil, shared.ErrInsufficientStock.WithDetails(
				"requested %s, open batches hold %s", quantity, OpenQuantity(batches))
		}

		totalCost := result.TotalCost
		if result.Shortfall.GreaterThan(decimal.Zero) {
			totalCost = totalCost.Add(result.Shortfall.Mul(item.AverageUnitCost))
		}

		newQuantity := item.QuantityOnHand.Sub(quantity)
		newValue := item.StockValue.Sub(totalCost)
		newAverage := item.AverageUnitCost
		if newQuantity.GreaterThan(decimal.Zero) {
			newAverage = newValue.Div(newQuantity).Round(4)
		}

		return &MovementOutcome{
			UnitCost:       totalCost.Div(quantity).Round(4),
			TotalCost:      totalCost,
			NewQuantity:    newQuantity,
			NewAverageCost: newAverage,
			NewValue:       newValue,
			Consumption:    result,
			BatchesTouched: len(result.Slices),
		}, nil

	case MethodWeightedAverage, MethodMovingAverage:
		if !item.HasSufficientStock(quantity) && !allowNegative {
			return nil, shared.ErrInsufficientStock.WithDetails(
				"requested %s, on hand %s", quantity, item.QuantityOnHand)
		}

		totalCost := quantity.Mul(item.AverageUnitCost)
		return &MovementOutcome{
			UnitCost:       item.AverageUnitCost,
			TotalCost:      totalCost,
			NewQuantity:    item.QuantityOnHand.Sub(quantity),
			NewAverageCost: item.AverageUnitCost,
			NewValue:       item.StockValue.Sub(totalCost),
		}, nil

	default:
		return nil, shared.ErrInvalidState.WithDetails("item %s has unknown valuation method %q", item.ID, item.Method)
	}
}

// ApplyOutcome installs a computed outcome on the aggregate and applies
// batch changes to the passed entities. This is the commit half of the
// compute/apply split; the simulator never calls it.
func ApplyOutcome(item *InventoryItem, batches []*StockBatch, outcome *MovementOutcome) error {
	if outcome == nil {
		return shared.ErrInvalidState.WithDetails("movement outcome cannot be nil")
	}

	if outcome.Consumption != nil {
		if err := ApplyConsumption(batches, outcome.Consumption); err != nil {
			return err
		}
	}

	item.applyState(outcome.NewQuantity, outcome.NewAverageCost, outcome.NewValue)
	return nil
}
