package valuation

import (
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ReplayResult is the outcome of replaying a ledger from zero
type ReplayResult struct {
	Entries      int
	FinalBalance decimal.Decimal
	FinalValue   decimal.Decimal
}

// Replay walks the entries of a single item in sequence order from an
// empty state and verifies the running-field recurrences stored in each
// entry:
//
//	balance(n) = balance(n-1) + quantityIn - quantityOut
//	value(n)   = value(n-1) + totalCost(in) - totalCost(out)
//
// It returns the reconstructed final balance and value, or a conflict
// error naming the first entry whose stored running fields disagree with
// the replay. The ledger is the source of truth for historical
// reconstruction; a disagreement means an entry was tampered with or
// written outside the engine.
func Replay(entries []LedgerEntry) (*ReplayResult, error) {
	balance := decimal.Zero
	value := decimal.Zero

	for idx, entry := range entries {
		if !entry.BalanceBefore.Equal(balance) {
			return nil, shared.ErrInvalidState.WithDetails(
				"entry %d (seq %d): stored balanceBefore %s, replayed %s",
				idx, entry.Sequence, entry.BalanceBefore, balance)
		}
		if !entry.ValueBefore.Equal(value) {
			return nil, shared.ErrInvalidState.WithDetails(
				"entry %d (seq %d): stored valueBefore %s, replayed %s",
				idx, entry.Sequence, entry.ValueBefore, value)
		}

		balance = balance.Add(entry.SignedQuantity())
		value = value.Add(entry.SignedTotalCost())

		if !entry.BalanceAfter.Equal(balance) {
			return nil, shared.ErrInvalidState.WithDetails(
				"entry %d (seq %d): stored balanceAfter %s, replayed %s",
				idx, entry.Sequence, entry.BalanceAfter, balance)
		}
		if !entry.ValueAfter.Equal(value) {
			return nil, shared.ErrInvalidState.WithDetails(
				"entry %d (seq %d): stored valueAfter %s, replayed %s",
				idx, entry.Sequence, entry.ValueAfter, value)
		}
	}

	return &ReplayResult{
		Entries:      len(entries),
		FinalBalance: balance,
		FinalValue:   value,
	}, nil
}

// ReplayAt reconstructs the running balance and value immediately after
// the last entry not later than the cutoff. Entries must be in sequence
// order.
func ReplayAt(entries []LedgerEntry, cutoff func(LedgerEntry) bool) (balance, value decimal.Decimal) {
	balance = decimal.Zero
	value = decimal.Zero
	for _, entry := range entries {
		if cutoff != nil && !cutoff(entry) {
			break
		}
		balance = balance.Add(entry.SignedQuantity())
		value = value.Add(entry.SignedTotalCost())
	}
	return balance, value
}
