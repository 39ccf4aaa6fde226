package valuation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeInventoryItem = "InventoryItem"

// Event type constants
const (
	EventTypeMovementRecorded      = "StockMovementRecorded"
	EventTypeStockDepleted         = "StockDepleted"
	EventTypeNegativeStockRecorded = "NegativeStockRecorded"
)

// MovementRecordedEvent is raised after every committed stock movement
type MovementRecordedEvent struct {
	shared.BaseDomainEvent
	ItemID        uuid.UUID       `json:"item_id"`
	SKU           string          `json:"sku"`
	MovementType  MovementType    `json:"movement_type"`
	Method        Method          `json:"method"`
	QuantityIn    decimal.Decimal `json:"quantity_in"`
	QuantityOut   decimal.Decimal `json:"quantity_out"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ValueAfter    decimal.Decimal `json:"value_after"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"`
}

// NewMovementRecordedEvent creates a new MovementRecordedEvent
func NewMovementRecordedEvent(item *InventoryItem, entry *LedgerEntry) *MovementRecordedEvent {
	return &MovementRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMovementRecorded, AggregateTypeInventoryItem, item.ID),
		ItemID:          item.ID,
		SKU:             item.SKU,
		MovementType:    entry.MovementType,
		Method:          item.Method,
		QuantityIn:      entry.QuantityIn,
		QuantityOut:     entry.QuantityOut,
		TotalCost:       entry.TotalCost,
		BalanceAfter:    entry.BalanceAfter,
		ValueAfter:      entry.ValueAfter,
		LedgerEntryID:   entry.ID,
	}
}

// EventType returns the event type name
func (e *MovementRecordedEvent) EventType() string {
	return EventTypeMovementRecorded
}

// StockDepletedEvent is raised when a movement drives the balance to zero
type StockDepletedEvent struct {
	shared.BaseDomainEvent
	ItemID       uuid.UUID    `json:"item_id"`
	SKU          string       `json:"sku"`
	MovementType MovementType `json:"movement_type"`
}

// NewStockDepletedEvent creates a new StockDepletedEvent
func NewStockDepletedEvent(item *InventoryItem, movementType MovementType) *StockDepletedEvent {
	return &StockDepletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockDepleted, AggregateTypeInventoryItem, item.ID),
		ItemID:          item.ID,
		SKU:             item.SKU,
		MovementType:    movementType,
	}
}

// EventType returns the event type name
func (e *StockDepletedEvent) EventType() string {
	return EventTypeStockDepleted
}

// NegativeStockRecordedEvent is raised when a policy-flagged adjustment
// drives the balance below zero
type NegativeStockRecordedEvent struct {
	shared.BaseDomainEvent
	ItemID       uuid.UUID       `json:"item_id"`
	SKU          string          `json:"sku"`
	MovementType MovementType    `json:"movement_type"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// NewNegativeStockRecordedEvent creates a new NegativeStockRecordedEvent
func NewNegativeStockRecordedEvent(item *InventoryItem, movementType MovementType) *NegativeStockRecordedEvent {
	return &NegativeStockRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNegativeStockRecorded, AggregateTypeInventoryItem, item.ID),
		ItemID:          item.ID,
		SKU:             item.SKU,
		MovementType:    movementType,
		BalanceAfter:    item.QuantityOnHand,
	}
}

// EventType returns the event type name
func (e *NegativeStockRecordedEvent) EventType() string {
	return EventTypeNegativeStockRecorded
}
