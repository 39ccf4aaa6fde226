package valuation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ItemRepository defines the interface for inventory item persistence
type ItemRepository interface {
	// FindByID finds an item by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)

	// FindByIDWithBatches finds an item with its open batches preloaded
	FindByIDWithBatches(ctx context.Context, id uuid.UUID) (*InventoryItem, error)

	// FindBySKU finds an item by its SKU
	FindBySKU(ctx context.Context, sku string) (*InventoryItem, error)

	// FindAll finds all items matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]InventoryItem, error)

	// FindByMethod finds all items using a valuation method
	FindByMethod(ctx context.Context, method Method, filter shared.Filter) ([]InventoryItem, error)

	// Save creates or updates an item
	Save(ctx context.Context, item *InventoryItem) error

	// SaveWithLock saves with optimistic locking (compare-and-swap on version)
	SaveWithLock(ctx context.Context, item *InventoryItem) error

	// Count counts items matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// ExistsBySKU checks if an item with the SKU exists
	ExistsBySKU(ctx context.Context, sku string) (bool, error)
}

// LedgerRepository defines the interface for the append-only stock ledger.
// Entries are immutable: there is no update or delete.
type LedgerRepository interface {
	// FindByID finds a ledger entry by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)

	// FindByItem finds entries for an item in sequence order, optionally
	// bounded by an occurrence date range
	FindByItem(ctx context.Context, itemID uuid.UUID, dateRange shared.DateRange) ([]LedgerEntry, error)

	// FindByReference finds entries linked to a source document
	FindByReference(ctx context.Context, referenceType, referenceID string) ([]LedgerEntry, error)

	// LastSequence returns the highest sequence number recorded for an
	// item, 0 if the item has no entries yet
	LastSequence(ctx context.Context, itemID uuid.UUID) (int64, error)

	// Create appends a new entry (append-only, no update allowed)
	Create(ctx context.Context, entry *LedgerEntry) error

	// CountByItem counts entries for an item
	CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error)

	// SumMovedQuantity sums quantityIn and quantityOut over an item's
	// entries, for conservation checks and reporting
	SumMovedQuantity(ctx context.Context, itemID uuid.UUID) (in, out decimal.Decimal, err error)
}

// BatchRepository defines the interface for stock batch persistence.
//
// StockBatch is a child entity of the InventoryItem aggregate: all batch
// mutations originate from applying a movement outcome to the aggregate
// and are persisted together with the item inside one transaction scope.
// This repository exists for consistent reads (loading the open queue,
// audit queries over closed batches), plus the persistence sync the
// engine performs after ApplyOutcome.
type BatchRepository interface {
	// FindByID finds a batch by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockBatch, error)

	// FindOpenByItem finds the open batches of an item in receipt order
	FindOpenByItem(ctx context.Context, itemID uuid.UUID) ([]StockBatch, error)

	// FindByItem finds all batches of an item, including soft-closed ones
	FindByItem(ctx context.Context, itemID uuid.UUID, filter shared.Filter) ([]StockBatch, error)

	// Save creates or updates a batch
	Save(ctx context.Context, batch *StockBatch) error

	// SaveAll creates or updates multiple batches
	SaveAll(ctx context.Context, batches []*StockBatch) error

	// CountOpenByItem counts open batches for an item
	CountOpenByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
}
