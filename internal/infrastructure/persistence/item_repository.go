package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/valuation"
	"gorm.io/gorm"
)

// GormItemRepository implements ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByID finds an inventory item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*valuation.InventoryItem, error) {
	var item valuation.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, storageErr("find item", err)
	}
	return &item, nil
}

// FindByIDWithBatches finds an item with its open batches preloaded in
// receipt order
func (r *GormItemRepository) FindByIDWithBatches(ctx context.Context, id uuid.UUID) (*valuation.InventoryItem, error) {
	var item valuation.InventoryItem
	if err := r.db.WithContext(ctx).
		Preload("Batches", func(db *gorm.DB) *gorm.DB {
			return db.Where("closed = ?", false).Order("received_at ASC, created_at ASC")
		}).
		First(&item, "id = ?", id).Error; err != nil {
		return nil, storageErr("find item with batches", err)
	}
	return &item, nil
}

// FindBySKU finds an inventory item by its SKU
func (r *GormItemRepository) FindBySKU(ctx context.Context, sku string) (*valuation.InventoryItem, error) {
	var item valuation.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "sku = ?", sku).Error; err != nil {
		return nil, storageErr("find item by sku", err)
	}
	return &item, nil
}

// FindAll finds all inventory items matching the filter
func (r *GormItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]valuation.InventoryItem, error) {
	var items []valuation.InventoryItem
	query := r.applyFilter(r.db.WithContext(ctx).Model(&valuation.InventoryItem{}), filter)

	if err := query.Find(&items).Error; err != nil {
		return nil, storageErr("list items", err)
	}
	return items, nil
}

// FindByMethod finds all items valued under the given method
func (r *GormItemRepository) FindByMethod(ctx context.Context, method valuation.Method, filter shared.Filter) ([]valuation.InventoryItem, error) {
	var items []valuation.InventoryItem
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&valuation.InventoryItem{}).
			Where("method = ?", method),
		filter,
	)

	if err := query.Find(&items).Error; err != nil {
		return nil, storageErr("list items by method", err)
	}
	return items, nil
}

// Save creates or updates an inventory item
func (r *GormItemRepository) Save(ctx context.Context, item *valuation.InventoryItem) error {
	return storageErr("save item", r.db.WithContext(ctx).Omit("Batches").Save(item).Error)
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormItemRepository) SaveWithLock(ctx context.Context, item *valuation.InventoryItem) error {
	result := r.db.WithContext(ctx).
		Model(item).
		Where("id = ? AND version = ?", item.ID, item.Version-1).
		Updates(map[string]interface{}{
			"quantity_on_hand":  item.QuantityOnHand,
			"average_unit_cost": item.AverageUnitCost,
			"stock_value":       item.StockValue,
			"version":           item.Version,
			"updated_at":        item.UpdatedAt,
		})

	if result.Error != nil {
		return storageErr("save item with lock", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts inventory items matching the filter
func (r *GormItemRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&valuation.InventoryItem{}), filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, storageErr("count items", err)
	}
	return count, nil
}

// ExistsBySKU checks if an item with the SKU exists
func (r *GormItemRepository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&valuation.InventoryItem{}).
		Where("sku = ?", sku).
		Count(&count).Error; err != nil {
		return false, storageErr("check sku exists", err)
	}
	return count > 0, nil
}

// applyFilter applies filter options to the query
func (r *GormItemRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering
	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("sku ASC")
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormItemRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("sku ILIKE ? OR name ILIKE ?", pattern, pattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "method":
			query = query.Where("method = ?", value)
		case "has_stock":
			if value == true {
				query = query.Where("quantity_on_hand > 0")
			}
		case "no_stock":
			if value == true {
				query = query.Where("quantity_on_hand = 0")
			}
		case "negative_stock":
			if value == true {
				query = query.Where("quantity_on_hand < 0")
			}
		}
	}

	return query
}

// Ensure GormItemRepository implements ItemRepository
var _ valuation.ItemRepository = (*GormItemRepository)(nil)
