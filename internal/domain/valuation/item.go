package valuation

import (
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// InventoryItem is the valuation-relevant projection of a catalog item
// and the aggregate root for all movement operations. Its running fields
// are mutated exclusively through the valuation engine; callers never
// write quantity, average cost or stock value directly.
type InventoryItem struct {
	shared.BaseAggregateRoot
	SKU             string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name            string          `gorm:"type:varchar(200);not null"`
	Method          Method          `gorm:"type:varchar(20);not null"`
	QuantityOnHand  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AverageUnitCost decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	StockValue      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	// Open cost batches, loaded by the repository for batch-tracked items
	Batches []StockBatch `gorm:"foreignKey:ItemID;references:ID"`
}

// TableName returns the table name for GORM
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// NewInventoryItem creates an item with its valuation method assigned and
// balances zeroed. The method is fixed for the item's lifetime once the
// first ledger entry exists.
func NewInventoryItem(sku, name string, method Method) (*InventoryItem, error) {
	if sku == "" {
		return nil, shared.ErrInvalidMovement.WithDetails("SKU cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.ErrInvalidMovement.WithDetails("unknown valuation method %q", method)
	}

	item := &InventoryItem{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SKU:               sku,
		Name:              name,
		Method:            method,
		QuantityOnHand:    decimal.Zero,
		AverageUnitCost:   decimal.Zero,
		StockValue:        decimal.Zero,
		Batches:           make([]StockBatch, 0),
	}

	return item, nil
}

// IsBatchTracked returns true if the item's method materializes batches
func (i *InventoryItem) IsBatchTracked() bool {
	return i.Method.IsBatchTracked()
}

// HasSufficientStock returns true if at least the given quantity is on hand
func (i *InventoryItem) HasSufficientStock(quantity decimal.Decimal) bool {
	return i.QuantityOnHand.GreaterThanOrEqual(quantity)
}

// RaiseMovementEvents raises the events a committed movement produces
// onto the aggregate's event buffer: the movement itself, a depletion
// when a positive balance reaches zero, and a negative-stock event when
// the balance goes below zero. The engine drains the buffer after the
// transaction commits.
func (i *InventoryItem) RaiseMovementEvents(entry *LedgerEntry, balanceBefore decimal.Decimal) {
	i.AddDomainEvent(NewMovementRecordedEvent(i, entry))

	if i.QuantityOnHand.IsZero() && balanceBefore.GreaterThan(decimal.Zero) {
		i.AddDomainEvent(NewStockDepletedEvent(i, entry.MovementType))
	}
	if i.QuantityOnHand.IsNegative() {
		i.AddDomainEvent(NewNegativeStockRecordedEvent(i, entry.MovementType))
	}
}

// applyState installs the post-movement running fields and bumps the
// version for the optimistic write
func (i *InventoryItem) applyState(quantity, averageCost, value decimal.Decimal) {
	i.QuantityOnHand = quantity
	i.AverageUnitCost = averageCost
	i.StockValue = value
	i.Touch()
	i.IncrementVersion()
}

// recalculateAverage returns the blended unit cost after receiving
// quantity at unitCost on top of the current balance:
//
//	newAvg = (oldQty*oldAvg + qty*unitCost) / (oldQty + qty)
//
// An empty balance takes the incoming cost directly so a depleted item
// rebases its cost on the next receipt.
func (i *InventoryItem) recalculateAverage(quantity, unitCost decimal.Decimal) decimal.Decimal {
	if i.QuantityOnHand.LessThanOrEqual(decimal.Zero) {
		return unitCost
	}
	totalValue := i.QuantityOnHand.Mul(i.AverageUnitCost).Add(quantity.Mul(unitCost))
	totalQuantity := i.QuantityOnHand.Add(quantity)
	return totalValue.Div(totalQuantity).Round(4)
}
