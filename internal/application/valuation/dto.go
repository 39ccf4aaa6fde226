package valuation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/valuation"
)

// RegisterItemRequest creates an item with a fixed valuation method
type RegisterItemRequest struct {
	SKU    string `json:"sku" validate:"required,max=50"`
	Name   string `json:"name" validate:"required,max=200"`
	Method string `json:"method" validate:"required"`
}

// RecordMovementRequest is the input for recording one stock movement.
// Exactly one of QuantityIn and QuantityOut must be positive. UnitCost is
// required for inbound movements and must be absent for outbound ones;
// outbound cost is always derived from current state.
type RecordMovementRequest struct {
	ItemID             uuid.UUID        `json:"item_id" validate:"required"`
	MovementType       string           `json:"movement_type" validate:"required"`
	QuantityIn         decimal.Decimal  `json:"quantity_in"`
	QuantityOut        decimal.Decimal  `json:"quantity_out"`
	UnitCost           *decimal.Decimal `json:"unit_cost,omitempty"`
	LotNumber          string           `json:"lot_number" validate:"max=50"`
	ExpiryDate         *time.Time       `json:"expiry_date,omitempty"`
	ReferenceType      string           `json:"reference_type" validate:"max=30"`
	ReferenceID        string           `json:"reference_id" validate:"max=50"`
	Reason             string           `json:"reason" validate:"max=255"`
	OccurredAt         *time.Time       `json:"occurred_at,omitempty"`
	AllowNegativeStock bool             `json:"allow_negative_stock"`
}

// MovementResult reports the full cost effect of a committed movement
type MovementResult struct {
	LedgerEntryID   uuid.UUID       `json:"ledger_entry_id"`
	ItemID          uuid.UUID       `json:"item_id"`
	MovementType    string          `json:"movement_type"`
	Method          string          `json:"method"`
	StockBefore     decimal.Decimal `json:"stock_before"`
	StockAfter      decimal.Decimal `json:"stock_after"`
	CostBefore      decimal.Decimal `json:"cost_before"`
	CostAfter       decimal.Decimal `json:"cost_after"`
	ValueBefore     decimal.Decimal `json:"value_before"`
	ValueAfter      decimal.Decimal `json:"value_after"`
	TotalCostImpact decimal.Decimal `json:"total_cost_impact"`
	CostOfGoodsSold decimal.Decimal `json:"cost_of_goods_sold"`
	BatchesTouched  int             `json:"batches_touched"`
}

// OpenBatchResponse is one open cost lot in an item valuation
type OpenBatchResponse struct {
	BatchID           uuid.UUID       `json:"batch_id"`
	LotNumber         string          `json:"lot_number,omitempty"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	UnitRate          decimal.Decimal `json:"unit_rate"`
	ReceivedAt        time.Time       `json:"received_at"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
}

// ItemValuationResponse is the current valuation state of one item
type ItemValuationResponse struct {
	ItemID          uuid.UUID           `json:"item_id"`
	SKU             string              `json:"sku"`
	Name            string              `json:"name"`
	Method          string              `json:"method"`
	QuantityOnHand  decimal.Decimal     `json:"quantity_on_hand"`
	AverageUnitCost decimal.Decimal     `json:"average_unit_cost"`
	StockValue      decimal.Decimal     `json:"stock_value"`
	OpenBatches     []OpenBatchResponse `json:"open_batches,omitempty"`
	Version         int                 `json:"version"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// SimulatedBatchUse is one batch slice a simulated issue would consume
type SimulatedBatchUse struct {
	BatchID   uuid.UUID       `json:"batch_id"`
	LotNumber string          `json:"lot_number,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitRate  decimal.Decimal `json:"unit_rate"`
	SliceCost decimal.Decimal `json:"slice_cost"`
}

// SimulationResult answers "what would COGS be if this quantity were
// issued now" without committing anything. The figures reflect a
// point-in-time snapshot and may be stale after concurrent writes.
type SimulationResult struct {
	ItemID            uuid.UUID           `json:"item_id"`
	Feasible          bool                `json:"feasible"`
	RequestedQuantity decimal.Decimal     `json:"requested_quantity"`
	AvailableQuantity decimal.Decimal     `json:"available_quantity"`
	COGSIfIssued      decimal.Decimal     `json:"cogs_if_issued"`
	AverageRateUsed   decimal.Decimal     `json:"average_rate_used"`
	Batches           []SimulatedBatchUse `json:"batches,omitempty"`
}

// ItemBreakdown is one item's contribution to a method summary
type ItemBreakdown struct {
	ItemID          uuid.UUID       `json:"item_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	QuantityOnHand  decimal.Decimal `json:"quantity_on_hand"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost"`
	StockValue      decimal.Decimal `json:"stock_value"`
	OpenBatchCount  int64           `json:"open_batch_count,omitempty"`
}

// MethodSummary aggregates current valuations for one method
type MethodSummary struct {
	Method        string          `json:"method"`
	ItemCount     int             `json:"item_count"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Items         []ItemBreakdown `json:"items"`
}

// SummaryTotals aggregates current valuations across the whole catalog
type SummaryTotals struct {
	TotalItems    int             `json:"total_items"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// LedgerEntryResponse is one ledger entry in query results
type LedgerEntryResponse struct {
	ID                 uuid.UUID       `json:"id"`
	ItemID             uuid.UUID       `json:"item_id"`
	Sequence           int64           `json:"sequence"`
	MovementType       string          `json:"movement_type"`
	QuantityIn         decimal.Decimal `json:"quantity_in"`
	QuantityOut        decimal.Decimal `json:"quantity_out"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	BalanceAfter       decimal.Decimal `json:"balance_after"`
	ValueAfter         decimal.Decimal `json:"value_after"`
	RunningAverageCost decimal.Decimal `json:"running_average_cost"`
	ReferenceType      string          `json:"reference_type,omitempty"`
	ReferenceID        string          `json:"reference_id,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// ToItemValuationResponse maps an item and its open batches to a response
func ToItemValuationResponse(item *valuation.InventoryItem, batches []valuation.StockBatch) ItemValuationResponse {
	resp := ItemValuationResponse{
		ItemID:          item.ID,
		SKU:             item.SKU,
		Name:            item.Name,
		Method:          item.Method.String(),
		QuantityOnHand:  item.QuantityOnHand,
		AverageUnitCost: item.AverageUnitCost,
		StockValue:      item.StockValue,
		Version:         item.Version,
		UpdatedAt:       item.UpdatedAt,
	}
	for _, b := range batches {
		if !b.IsOpen() {
			continue
		}
		resp.OpenBatches = append(resp.OpenBatches, OpenBatchResponse{
			BatchID:           b.ID,
			LotNumber:         b.LotNumber,
			QuantityRemaining: b.QuantityRemaining,
			UnitRate:          b.UnitRate,
			ReceivedAt:        b.ReceivedAt,
			ExpiryDate:        b.ExpiryDate,
		})
	}
	return resp
}

// ToLedgerEntryResponses maps ledger entries to responses
func ToLedgerEntryResponses(entries []valuation.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryResponse{
			ID:                 e.ID,
			ItemID:             e.ItemID,
			Sequence:           e.Sequence,
			MovementType:       e.MovementType.String(),
			QuantityIn:         e.QuantityIn,
			QuantityOut:        e.QuantityOut,
			UnitCost:           e.UnitCost,
			TotalCost:          e.TotalCost,
			BalanceAfter:       e.BalanceAfter,
			ValueAfter:         e.ValueAfter,
			RunningAverageCost: e.RunningAverageCost,
			ReferenceType:      e.ReferenceType,
			ReferenceID:        e.ReferenceID,
			OccurredAt:         e.OccurredAt,
		})
	}
	return out
}
