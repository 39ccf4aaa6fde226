package valuation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// StockBatch represents one open cost lot of an item: a discrete inbound
// receipt of quantity at a fixed unit rate. Batches are only materialized
// for FIFO/LIFO items; ReceivedAt defines the consumption order.
type StockBatch struct {
	shared.BaseEntity
	ItemID            uuid.UUID       `gorm:"type:uuid;not null;index:idx_batch_item_received,priority:1"`
	LotNumber         string          `gorm:"type:varchar(50)"`
	ReceivedAt        time.Time       `gorm:"type:timestamptz;not null;index:idx_batch_item_received,priority:2"`
	ExpiryDate        *time.Time      `gorm:"type:timestamptz"`
	QuantityRemaining decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitRate          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Closed            bool            `gorm:"not null;default:false;index"`
}

// TableName returns the table name for GORM
func (StockBatch) TableName() string {
	return "stock_batches"
}

// NewStockBatch creates a new open batch for an inbound receipt
func NewStockBatch(
	itemID uuid.UUID,
	quantity decimal.Decimal,
	unitRate decimal.Decimal,
	receivedAt time.Time,
	lotNumber string,
	expiryDate *time.Time,
) *StockBatch {
	return &StockBatch{
		BaseEntity:        shared.NewBaseEntity(),
		ItemID:            itemID,
		LotNumber:         lotNumber,
		ReceivedAt:        receivedAt,
		ExpiryDate:        expiryDate,
		QuantityRemaining: quantity,
		UnitRate:          unitRate,
		Closed:            false,
	}
}

// Deduct reduces the remaining quantity. A batch that reaches zero is
// soft-closed: the record is kept for the audit trail but leaves the
// active queue. Returns the quantity actually deducted.
func (b *StockBatch) Deduct(quantity decimal.Decimal) decimal.Decimal {
	if quantity.GreaterThan(b.QuantityRemaining) {
		deducted := b.QuantityRemaining
		b.QuantityRemaining = decimal.Zero
		b.Closed = true
		b.Touch()
		return deducted
	}

	b.QuantityRemaining = b.QuantityRemaining.Sub(quantity)
	if b.QuantityRemaining.IsZero() {
		b.Closed = true
	}
	b.Touch()
	return quantity
}

// Add increases the remaining quantity (for reversals), reopening a
// closed batch if needed
func (b *StockBatch) Add(quantity decimal.Decimal) {
	b.QuantityRemaining = b.QuantityRemaining.Add(quantity)
	if b.Closed && b.QuantityRemaining.GreaterThan(decimal.Zero) {
		b.Closed = false
	}
	b.Touch()
}

// IsExpired returns true if the batch has passed its expiry date
func (b *StockBatch) IsExpired() bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(time.Now())
}

// RemainingValue returns the value of the remaining quantity at the
// batch's unit rate
func (b *StockBatch) RemainingValue() decimal.Decimal {
	return b.QuantityRemaining.Mul(b.UnitRate)
}

// IsOpen returns true if the batch still holds quantity
func (b *StockBatch) IsOpen() bool {
	return !b.Closed && b.QuantityRemaining.GreaterThan(decimal.Zero)
}
