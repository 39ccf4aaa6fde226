package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/valuation"
	"gorm.io/gorm"
)

// GormLedgerRepository implements LedgerRepository using GORM. The ledger
// is append-only: this type deliberately exposes no update or delete.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// FindByID finds a ledger entry by its ID
func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*valuation.LedgerEntry, error) {
	var entry valuation.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, storageErr("find ledger entry", err)
	}
	return &entry, nil
}

// FindByItem finds an item's entries in sequence order, optionally bounded
// by an occurrence date range
func (r *GormLedgerRepository) FindByItem(ctx context.Context, itemID uuid.UUID, dateRange shared.DateRange) ([]valuation.LedgerEntry, error) {
	var entries []valuation.LedgerEntry
	query := r.db.WithContext(ctx).
		Model(&valuation.LedgerEntry{}).
		Where("item_id = ?", itemID)

	if dateRange.From != nil {
		query = query.Where("occurred_at >= ?", *dateRange.From)
	}
	if dateRange.To != nil {
		query = query.Where("occurred_at <= ?", *dateRange.To)
	}

	if err := query.Order("sequence ASC").Find(&entries).Error; err != nil {
		return nil, storageErr("query ledger", err)
	}
	return entries, nil
}

// FindByReference finds entries linked to a source document
func (r *GormLedgerRepository) FindByReference(ctx context.Context, referenceType, referenceID string) ([]valuation.LedgerEntry, error) {
	var entries []valuation.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("occurred_at ASC").
		Find(&entries).Error; err != nil {
		return nil, storageErr("query ledger by reference", err)
	}
	return entries, nil
}

// LastSequence returns the highest sequence recorded for an item, 0 when
// the item has no entries yet
func (r *GormLedgerRepository) LastSequence(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var result struct {
		Last int64
	}
	if err := r.db.WithContext(ctx).
		Model(&valuation.LedgerEntry{}).
		Select("COALESCE(MAX(sequence), 0) as last").
		Where("item_id = ?", itemID).
		Scan(&result).Error; err != nil {
		return 0, storageErr("read last sequence", err)
	}
	return result.Last, nil
}

// Create appends a new ledger entry
func (r *GormLedgerRepository) Create(ctx context.Context, entry *valuation.LedgerEntry) error {
	return storageErr("append ledger entry", r.db.WithContext(ctx).Create(entry).Error)
}

// CountByItem counts entries for an item
func (r *GormLedgerRepository) CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&valuation.LedgerEntry{}).
		Where("item_id = ?", itemID).
		Count(&count).Error; err != nil {
		return 0, storageErr("count ledger entries", err)
	}
	return count, nil
}

// SumMovedQuantity sums quantityIn and quantityOut over an item's entries
func (r *GormLedgerRepository) SumMovedQuantity(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	var result struct {
		TotalIn  decimal.Decimal
		TotalOut decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&valuation.LedgerEntry{}).
		Select("COALESCE(SUM(quantity_in), 0) as total_in, COALESCE(SUM(quantity_out), 0) as total_out").
		Where("item_id = ?", itemID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, decimal.Zero, storageErr("sum moved quantity", err)
	}
	return result.TotalIn, result.TotalOut, nil
}

// Ensure GormLedgerRepository implements LedgerRepository
var _ valuation.LedgerRepository = (*GormLedgerRepository)(nil)
