package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/valuation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockGormDB creates a GORM connection backed by sqlmock
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func newMockItemRepository(t *testing.T) (*GormItemRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewGormItemRepository(gormDB), mock, mockDB
}

func TestGormItemRepository_FindByID(t *testing.T) {
	t.Run("finds existing item", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		itemID := uuid.New()

		rows := sqlmock.NewRows([]string{
			"id", "sku", "name", "method",
			"quantity_on_hand", "average_unit_cost", "stock_value", "version",
		}).AddRow(
			itemID, "SKU-100", "Widget", "FIFO",
			decimal.NewFromInt(100), decimal.NewFromFloat(10.00), decimal.NewFromInt(1000), 1,
		)

		mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE id = \$1`).
			WithArgs(itemID, 1).
			WillReturnRows(rows)

		item, err := repo.FindByID(context.Background(), itemID)

		assert.NoError(t, err)
		assert.NotNil(t, item)
		assert.Equal(t, itemID, item.ID)
		assert.Equal(t, "SKU-100", item.SKU)
		assert.Equal(t, valuation.MethodFIFO, item.Method)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error for non-existent item", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		itemID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE id = \$1`).
			WithArgs(itemID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		item, err := repo.FindByID(context.Background(), itemID)

		assert.Error(t, err)
		assert.Nil(t, item)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports storage unavailable when the driver fails", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		itemID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE id = \$1`).
			WithArgs(itemID, 1).
			WillReturnError(errors.New("connection refused"))

		item, err := repo.FindByID(context.Background(), itemID)

		assert.Nil(t, item)
		assert.ErrorIs(t, err, shared.ErrStorageUnavailable)
		assert.NotErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormItemRepository_FindBySKU(t *testing.T) {
	t.Run("finds item by SKU", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		itemID := uuid.New()

		rows := sqlmock.NewRows([]string{
			"id", "sku", "name", "method",
			"quantity_on_hand", "average_unit_cost", "stock_value", "version",
		}).AddRow(
			itemID, "SKU-200", "Gadget", "WEIGHTED_AVERAGE",
			decimal.NewFromInt(50), decimal.NewFromFloat(6.00), decimal.NewFromInt(300), 2,
		)

		mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE sku = \$1`).
			WithArgs("SKU-200", 1).
			WillReturnRows(rows)

		item, err := repo.FindBySKU(context.Background(), "SKU-200")

		assert.NoError(t, err)
		assert.NotNil(t, item)
		assert.Equal(t, "SKU-200", item.SKU)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing SKU", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE sku = \$1`).
			WithArgs("SKU-404", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		item, err := repo.FindBySKU(context.Background(), "SKU-404")

		assert.Error(t, err)
		assert.Nil(t, item)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormItemRepository_FindByMethod(t *testing.T) {
	t.Run("finds items valued under a method", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		rows := sqlmock.NewRows([]string{
			"id", "sku", "name", "method",
			"quantity_on_hand", "average_unit_cost", "stock_value", "version",
		}).
			AddRow(uuid.New(), "SKU-1", "A", "FIFO", decimal.NewFromInt(10), decimal.NewFromInt(2), decimal.NewFromInt(20), 1).
			AddRow(uuid.New(), "SKU-2", "B", "FIFO", decimal.NewFromInt(5), decimal.NewFromInt(4), decimal.NewFromInt(20), 1)

		mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE method = \$1`).
			WithArgs("FIFO").
			WillReturnRows(rows)

		items, err := repo.FindByMethod(context.Background(), valuation.MethodFIFO, shared.Filter{})

		assert.NoError(t, err)
		assert.Len(t, items, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormItemRepository_SaveWithLock(t *testing.T) {
	t.Run("updates when version matches", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		item, err := valuation.NewInventoryItem("SKU-100", "Widget", valuation.MethodFIFO)
		require.NoError(t, err)
		item.IncrementVersion()

		mock.ExpectExec(`UPDATE "inventory_items" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.SaveWithLock(context.Background(), item)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns conflict when no row matches the expected version", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		item, err := valuation.NewInventoryItem("SKU-100", "Widget", valuation.MethodFIFO)
		require.NoError(t, err)
		item.IncrementVersion()

		mock.ExpectExec(`UPDATE "inventory_items" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(context.Background(), item)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormItemRepository_ExistsBySKU(t *testing.T) {
	t.Run("returns true when SKU exists", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "inventory_items" WHERE sku = \$1`).
			WithArgs("SKU-100").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		exists, err := repo.ExistsBySKU(context.Background(), "SKU-100")

		assert.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns false when SKU does not exist", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "inventory_items" WHERE sku = \$1`).
			WithArgs("SKU-404").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		exists, err := repo.ExistsBySKU(context.Background(), "SKU-404")

		assert.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormItemRepository_Count(t *testing.T) {
	t.Run("counts items", func(t *testing.T) {
		repo, mock, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "inventory_items"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

		count, err := repo.Count(context.Background(), shared.Filter{})

		assert.NoError(t, err)
		assert.Equal(t, int64(12), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormItemRepository_InterfaceCompliance(t *testing.T) {
	t.Run("implements ItemRepository interface", func(t *testing.T) {
		repo, _, mockDB := newMockItemRepository(t)
		defer mockDB.Close()

		var _ valuation.ItemRepository = repo
	})
}
