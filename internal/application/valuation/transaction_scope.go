package valuation

import (
	"context"

	"github.com/stockledger/backend/internal/domain/valuation"
)

// TransactionScope provides transactional access to valuation repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all valuation repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// DDD Aggregate Boundary Notes:
//   - ItemRepo: Repository for the InventoryItem aggregate root. All valuation state changes
//     go through this repository, with optimistic locking on the version column.
//   - BatchRepo: Used for loading the open batch queue and persisting batch changes produced
//     by applying a movement outcome. Batches are child entities of InventoryItem but have
//     separate storage for query performance.
//   - LedgerRepo: Append-only repository for stock ledger entries.
type TransactionalRepositories interface {
	// ItemRepo returns the inventory item repository scoped to the current transaction
	ItemRepo() valuation.ItemRepository
	// BatchRepo returns the stock batch repository scoped to the current transaction
	BatchRepo() valuation.BatchRepository
	// LedgerRepo returns the stock ledger repository scoped to the current transaction
	LedgerRepo() valuation.LedgerRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	itemRepo   valuation.ItemRepository
	batchRepo  valuation.BatchRepository
	ledgerRepo valuation.LedgerRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	itemRepo valuation.ItemRepository,
	batchRepo valuation.BatchRepository,
	ledgerRepo valuation.LedgerRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		itemRepo:   itemRepo,
		batchRepo:  batchRepo,
		ledgerRepo: ledgerRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ItemRepo returns the inventory item repository.
func (s *NoOpTransactionScope) ItemRepo() valuation.ItemRepository {
	return s.itemRepo
}

// BatchRepo returns the stock batch repository.
func (s *NoOpTransactionScope) BatchRepo() valuation.BatchRepository {
	return s.batchRepo
}

// LedgerRepo returns the stock ledger repository.
func (s *NoOpTransactionScope) LedgerRepo() valuation.LedgerRepository {
	return s.ledgerRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
