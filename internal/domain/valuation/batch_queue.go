package valuation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ConsumptionOrder defines the direction a batch queue is walked
type ConsumptionOrder string

const (
	// OldestFirst walks batches in ascending receipt order (FIFO)
	OldestFirst ConsumptionOrder = "OLDEST_FIRST"
	// NewestFirst walks batches in descending receipt order (LIFO)
	NewestFirst ConsumptionOrder = "NEWEST_FIRST"
)

// BatchSlice records one slice taken from a single batch during consumption
type BatchSlice struct {
	BatchID          uuid.UUID       // ID of the batch
	LotNumber        string          // Lot number for display
	Quantity         decimal.Decimal // Quantity taken from this batch
	UnitRate         decimal.Decimal // Unit rate of this batch
	SliceCost        decimal.Decimal // Quantity * UnitRate
	RemainingInBatch decimal.Decimal // Remaining quantity in batch after the slice
	FullyConsumed    bool            // True if the slice empties the batch
}

// ConsumptionResult is the complete outcome of consuming quantity from a
// batch queue. It is computed against a snapshot and applies nothing.
type ConsumptionResult struct {
	Slices              []BatchSlice    // Slices in consumption order
	TotalConsumed       decimal.Decimal // Total quantity consumed
	TotalCost           decimal.Decimal // Total cost of the consumed slices
	WeightedAverageRate decimal.Decimal // TotalCost / TotalConsumed, rounded to 4 places
	Shortfall           decimal.Decimal // Requested quantity that could not be fulfilled
	FullyFulfilled      bool            // True if Shortfall is zero
	BatchesClosed       []uuid.UUID     // Batches the consumption would empty
	BatchesPartial      []uuid.UUID     // Batches the consumption would leave partially filled
}

// SortQueue returns a copy of the open batches in consumption order.
// Receipt time decides the order; creation time breaks ties so two lots
// received in the same instant still consume deterministically.
func SortQueue(batches []StockBatch, order ConsumptionOrder) []StockBatch {
	open := make([]StockBatch, 0, len(batches))
	for _, b := range batches {
		if b.IsOpen() {
			open = append(open, b)
		}
	}

	sort.Slice(open, func(i, j int) bool {
		if !open[i].ReceivedAt.Equal(open[j].ReceivedAt) {
			if order == NewestFirst {
				return open[i].ReceivedAt.After(open[j].ReceivedAt)
			}
			return open[i].ReceivedAt.Before(open[j].ReceivedAt)
		}
		if order == NewestFirst {
			return open[i].CreatedAt.After(open[j].CreatedAt)
		}
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})

	return open
}

// Consume computes which slices would satisfy the requested quantity,
// walking the queue strictly in the given order without skipping batches.
// The function is pure: input batches are never mutated, so the same code
// path serves both committed movements and read-only COGS previews.
func Consume(requested decimal.Decimal, batches []StockBatch, order ConsumptionOrder) (*ConsumptionResult, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidMovement.WithDetails("requested quantity must be positive, got %s", requested)
	}

	sorted := SortQueue(batches, order)

	slices := make([]BatchSlice, 0, len(sorted))
	batchesClosed := make([]uuid.UUID, 0)
	batchesPartial := make([]uuid.UUID, 0)
	remaining := requested
	totalConsumed := decimal.Zero
	totalCost := decimal.Zero

	for _, batch := range sorted {
		if remaining.IsZero() {
			break
		}

		take := decimal.Min(remaining, batch.QuantityRemaining)
		remainingInBatch := batch.QuantityRemaining.Sub(take)
		fullyConsumed := remainingInBatch.IsZero()
		sliceCost := take.Mul(batch.UnitRate)

		slices = append(slices, BatchSlice{
			BatchID:          batch.ID,
			LotNumber:        batch.LotNumber,
			Quantity:         take,
			UnitRate:         batch.UnitRate,
			SliceCost:        sliceCost,
			RemainingInBatch: remainingInBatch,
			FullyConsumed:    fullyConsumed,
		})

		totalConsumed = totalConsumed.Add(take)
		totalCost = totalCost.Add(sliceCost)
		remaining = remaining.Sub(take)

		if fullyConsumed {
			batchesClosed = append(batchesClosed, batch.ID)
		} else {
			batchesPartial = append(batchesPartial, batch.ID)
		}
	}

	var weightedAvgRate decimal.Decimal
	if totalConsumed.GreaterThan(decimal.Zero) {
		weightedAvgRate = totalCost.Div(totalConsumed).Round(4)
	}

	return &ConsumptionResult{
		Slices:              slices,
		TotalConsumed:       totalConsumed,
		TotalCost:           totalCost,
		WeightedAverageRate: weightedAvgRate,
		Shortfall:           remaining,
		FullyFulfilled:      remaining.IsZero(),
		BatchesClosed:       batchesClosed,
		BatchesPartial:      batchesPartial,
	}, nil
}

// ApplyConsumption applies a computed result to the real batch entities.
// Every slice must deduct exactly; a mismatch means the result was
// computed against a different snapshot than the batches passed in.
func ApplyConsumption(batches []*StockBatch, result *ConsumptionResult) error {
	if result == nil {
		return shared.ErrInvalidState.WithDetails("consumption result cannot be nil")
	}

	batchMap := make(map[uuid.UUID]*StockBatch, len(batches))
	for _, batch := range batches {
		batchMap[batch.ID] = batch
	}

	for _, slice := range result.Slices {
		batch, exists := batchMap[slice.BatchID]
		if !exists {
			return shared.ErrInvalidState.WithDetails("batch not found: %s", slice.BatchID)
		}

		deducted := batch.Deduct(slice.Quantity)
		if !deducted.Equal(slice.Quantity) {
			return shared.ErrConcurrencyConflict.WithDetails(
				"batch %s holds less than the computed slice", slice.BatchID)
		}
	}

	return nil
}

// OpenQuantity returns the total remaining quantity across open batches
func OpenQuantity(batches []StockBatch) decimal.Decimal {
	total := decimal.Zero
	for _, b := range batches {
		if b.IsOpen() {
			total = total.Add(b.QuantityRemaining)
		}
	}
	return total
}

// OpenValue returns the total remaining value across open batches
func OpenValue(batches []StockBatch) decimal.Decimal {
	total := decimal.Zero
	for _, b := range batches {
		if b.IsOpen() {
			total = total.Add(b.RemainingValue())
		}
	}
	return total
}
