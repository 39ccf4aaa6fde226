package valuation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// LedgerEntry is one immutable record of a stock movement and its
// computed cost effect. Once written, entries are never edited or
// deleted; corrections are new offsetting entries.
type LedgerEntry struct {
	shared.BaseEntity
	ItemID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_item_seq,priority:1"`
	Sequence           int64           `gorm:"not null;uniqueIndex:idx_ledger_item_seq,priority:2"` // Per-item, assigned at append time
	MovementType       MovementType    `gorm:"type:varchar(30);not null;index"`
	QuantityIn         decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Exactly one of in/out is positive
	QuantityOut        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost           decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Derived for outbound, asserted for inbound
	TotalCost          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceBefore      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ValueBefore        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ValueAfter         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RunningAverageCost decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Average cost immediately after the movement
	Method             Method          `gorm:"type:varchar(20);not null"`   // Valuation method label at entry time
	ReferenceType      string          `gorm:"type:varchar(30);index:idx_ledger_reference"`
	ReferenceID        string          `gorm:"type:varchar(50);index:idx_ledger_reference"`
	Reason             string          `gorm:"type:varchar(255)"`
	OccurredAt         time.Time       `gorm:"type:timestamptz;not null;index"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// NewLedgerEntry creates a ledger entry. Exactly one of quantityIn and
// quantityOut must be positive; the other must be zero.
func NewLedgerEntry(
	itemID uuid.UUID,
	sequence int64,
	movementType MovementType,
	quantityIn, quantityOut decimal.Decimal,
	unitCost decimal.Decimal,
	balanceBefore, balanceAfter decimal.Decimal,
	valueBefore, valueAfter decimal.Decimal,
	runningAverageCost decimal.Decimal,
	method Method,
) (*LedgerEntry, error) {
	if itemID == uuid.Nil {
		return nil, shared.ErrInvalidMovement.WithDetails("item ID cannot be empty")
	}
	if !movementType.IsValid() {
		return nil, shared.ErrInvalidMovement.WithDetails("unknown movement type %q", movementType)
	}
	if quantityIn.IsNegative() || quantityOut.IsNegative() {
		return nil, shared.ErrInvalidMovement.WithDetails("quantities cannot be negative")
	}
	inSet := quantityIn.GreaterThan(decimal.Zero)
	outSet := quantityOut.GreaterThan(decimal.Zero)
	if inSet == outSet {
		return nil, shared.ErrInvalidMovement.WithDetails("exactly one of quantityIn and quantityOut must be positive")
	}
	if inSet && !movementType.IsInbound() {
		return nil, shared.ErrInvalidMovement.WithDetails("movement type %s cannot carry quantityIn", movementType)
	}
	if outSet && !movementType.IsOutbound() {
		return nil, shared.ErrInvalidMovement.WithDetails("movement type %s cannot carry quantityOut", movementType)
	}
	if unitCost.IsNegative() {
		return nil, shared.ErrInvalidMovement.WithDetails("unit cost cannot be negative")
	}

	moved := quantityIn
	if outSet {
		moved = quantityOut
	}

	entry := &LedgerEntry{
		BaseEntity:         shared.NewBaseEntity(),
		ItemID:             itemID,
		Sequence:           sequence,
		MovementType:       movementType,
		QuantityIn:         quantityIn,
		QuantityOut:        quantityOut,
		UnitCost:           unitCost,
		TotalCost:          moved.Mul(unitCost),
		BalanceBefore:      balanceBefore,
		BalanceAfter:       balanceAfter,
		ValueBefore:        valueBefore,
		ValueAfter:         valueAfter,
		RunningAverageCost: runningAverageCost,
		Method:             method,
		OccurredAt:         time.Now(),
	}

	return entry, nil
}

// WithReference links the entry to its originating document
func (e *LedgerEntry) WithReference(referenceType, referenceID string) *LedgerEntry {
	e.ReferenceType = referenceType
	e.ReferenceID = referenceID
	return e
}

// WithReason sets a free-form reason for the movement
func (e *LedgerEntry) WithReason(reason string) *LedgerEntry {
	e.Reason = reason
	return e
}

// WithOccurredAt overrides the occurrence time (defaults to now)
func (e *LedgerEntry) WithOccurredAt(t time.Time) *LedgerEntry {
	e.OccurredAt = t
	return e
}

// WithTotalCost overrides the derived total cost. FIFO/LIFO outbound
// entries need this because the total is a sum over batch slices rather
// than a single quantity times rate.
func (e *LedgerEntry) WithTotalCost(totalCost decimal.Decimal) *LedgerEntry {
	e.TotalCost = totalCost
	return e
}

// IsInbound returns true if the entry increases stock
func (e *LedgerEntry) IsInbound() bool {
	return e.QuantityIn.GreaterThan(decimal.Zero)
}

// IsOutbound returns true if the entry decreases stock
func (e *LedgerEntry) IsOutbound() bool {
	return e.QuantityOut.GreaterThan(decimal.Zero)
}

// SignedQuantity returns quantityIn - quantityOut
func (e *LedgerEntry) SignedQuantity() decimal.Decimal {
	return e.QuantityIn.Sub(e.QuantityOut)
}

// SignedTotalCost returns the total cost with direction applied
func (e *LedgerEntry) SignedTotalCost() decimal.Decimal {
	if e.IsOutbound() {
		return e.TotalCost.Neg()
	}
	return e.TotalCost
}
