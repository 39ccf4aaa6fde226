package persistence

import (
	"context"

	"gorm.io/gorm"

	appvaluation "github.com/stockledger/backend/internal/application/valuation"
	"github.com/stockledger/backend/internal/domain/valuation"
)

// GormTransactionScope implements TransactionScope using GORM transactions
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction. All
// repositories handed to fn share the transaction; any error rolls the
// whole movement back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appvaluation.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
	return storageErr("movement transaction", err)
}

// gormTransactionalRepositories provides repositories bound to a transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) ItemRepo() valuation.ItemRepository {
	return NewGormItemRepository(r.tx)
}

func (r *gormTransactionalRepositories) BatchRepo() valuation.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

func (r *gormTransactionalRepositories) LedgerRepo() valuation.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

// Ensure implementations satisfy the application contracts
var (
	_ appvaluation.TransactionScope          = (*GormTransactionScope)(nil)
	_ appvaluation.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
