package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/valuation"
	"gorm.io/gorm"
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a stock batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*valuation.StockBatch, error) {
	var batch valuation.StockBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		return nil, storageErr("find batch", err)
	}
	return &batch, nil
}

// FindOpenByItem finds the open batches of an item in receipt order. The
// secondary created_at ordering keeps same-instant receipts deterministic.
func (r *GormBatchRepository) FindOpenByItem(ctx context.Context, itemID uuid.UUID) ([]valuation.StockBatch, error) {
	var batches []valuation.StockBatch
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND closed = ?", itemID, false).
		Order("received_at ASC, created_at ASC").
		Find(&batches).Error; err != nil {
		return nil, storageErr("find open batches", err)
	}
	return batches, nil
}

// FindByItem finds all batches of an item, including soft-closed ones
func (r *GormBatchRepository) FindByItem(ctx context.Context, itemID uuid.UUID, filter shared.Filter) ([]valuation.StockBatch, error) {
	var batches []valuation.StockBatch
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&valuation.StockBatch{}).
			Where("item_id = ?", itemID),
		filter,
	)

	if err := query.Find(&batches).Error; err != nil {
		return nil, storageErr("list batches", err)
	}
	return batches, nil
}

// Save creates or updates a stock batch
func (r *GormBatchRepository) Save(ctx context.Context, batch *valuation.StockBatch) error {
	return storageErr("save batch", r.db.WithContext(ctx).Save(batch).Error)
}

// SaveAll creates or updates multiple stock batches
func (r *GormBatchRepository) SaveAll(ctx context.Context, batches []*valuation.StockBatch) error {
	if len(batches) == 0 {
		return nil
	}
	return storageErr("save batches", r.db.WithContext(ctx).Save(batches).Error)
}

// CountOpenByItem counts open batches for an item
func (r *GormBatchRepository) CountOpenByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&valuation.StockBatch{}).
		Where("item_id = ? AND closed = ?", itemID, false).
		Count(&count).Error; err != nil {
		return 0, storageErr("count open batches", err)
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormBatchRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "closed":
			query = query.Where("closed = ?", value)
		case "lot_number":
			query = query.Where("lot_number = ?", value)
		case "expired":
			if value == true {
				query = query.Where("expiry_date IS NOT NULL AND expiry_date < NOW()")
			}
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("received_at ASC, created_at ASC")
	}

	return query
}

// Ensure GormBatchRepository implements BatchRepository
var _ valuation.BatchRepository = (*GormBatchRepository)(nil)
