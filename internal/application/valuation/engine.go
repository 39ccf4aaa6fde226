package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/valuation"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
)

const (
	// DefaultMaxRetries bounds the optimistic-lock retry loop per movement
	DefaultMaxRetries = 3

	// DefaultIdempotencyTTL is how long a processed reference key is remembered
	DefaultIdempotencyTTL = 24 * time.Hour
)

// EnginePolicy holds the tunable behavior of the valuation engine
type EnginePolicy struct {
	// MaxRetries is the number of attempts per movement when optimistic
	// locking detects a concurrent writer
	MaxRetries int

	// AllowNegativeAdjustment globally enables the per-movement negative
	// stock flag. The flag itself only applies to adjustment movements.
	AllowNegativeAdjustment bool

	// IdempotencyEnabled turns on deduplication of movements that carry
	// a source document reference. Requires an idempotency store.
	IdempotencyEnabled bool

	// IdempotencyTTL is how long a processed reference key is remembered
	IdempotencyTTL time.Duration
}

// DefaultEnginePolicy returns the default engine policy
func DefaultEnginePolicy() EnginePolicy {
	return EnginePolicy{
		MaxRetries:              DefaultMaxRetries,
		AllowNegativeAdjustment: false,
		IdempotencyEnabled:      true,
		IdempotencyTTL:          DefaultIdempotencyTTL,
	}
}

// PolicyFromConfig maps the valuation section of the application
// configuration onto an engine policy.
func PolicyFromConfig(cfg config.ValuationConfig) EnginePolicy {
	policy := EnginePolicy{
		MaxRetries:              cfg.MaxRetries,
		AllowNegativeAdjustment: cfg.AllowNegativeAdjustment,
		IdempotencyEnabled:      cfg.IdempotencyEnabled,
		IdempotencyTTL:          cfg.IdempotencyTTL,
	}
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = DefaultMaxRetries
	}
	if policy.IdempotencyTTL <= 0 {
		policy.IdempotencyTTL = DefaultIdempotencyTTL
	}
	return policy
}

// Engine records stock movements against the ledger and keeps each item's
// running valuation consistent with it. Every movement runs inside one
// transaction: the item CAS save, the batch updates, and the ledger append
// commit or roll back together.
type Engine struct {
	itemRepo       valuation.ItemRepository
	batchRepo      valuation.BatchRepository
	ledgerRepo     valuation.LedgerRepository
	txScope        TransactionScope
	validate       *validator.Validate
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	idempotency    shared.IdempotencyStore
	metrics        *telemetry.LedgerMetrics
	policy         EnginePolicy
}

// NewEngine creates a new valuation engine
func NewEngine(
	itemRepo valuation.ItemRepository,
	batchRepo valuation.BatchRepository,
	ledgerRepo valuation.LedgerRepository,
	txScope TransactionScope,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		itemRepo:   itemRepo,
		batchRepo:  batchRepo,
		ledgerRepo: ledgerRepo,
		txScope:    txScope,
		validate:   validator.New(),
		logger:     logger,
		policy:     DefaultEnginePolicy(),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (e *Engine) SetEventPublisher(publisher shared.EventPublisher) {
	e.eventPublisher = publisher
}

// SetIdempotencyStore sets the store used to deduplicate movements that
// carry a source document reference
func (e *Engine) SetIdempotencyStore(store shared.IdempotencyStore) {
	e.idempotency = store
}

// SetMetrics sets the business metrics sink. Without one the engine
// records nothing.
func (e *Engine) SetMetrics(metrics *telemetry.LedgerMetrics) {
	e.metrics = metrics
}

// SetPolicy overrides the default engine policy
func (e *Engine) SetPolicy(policy EnginePolicy) {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = DefaultMaxRetries
	}
	if policy.IdempotencyTTL <= 0 {
		policy.IdempotencyTTL = DefaultIdempotencyTTL
	}
	e.policy = policy
}

// RegisterItem creates a new inventory item with a fixed valuation method.
// The method cannot be changed once any movement has been recorded.
func (e *Engine) RegisterItem(ctx context.Context, req RegisterItemRequest) (*ItemValuationResponse, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, shared.ErrInvalidMovement.WithDetails("invalid request: %v", err)
	}

	exists, err := e.itemRepo.ExistsBySKU(ctx, req.SKU)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.ErrAlreadyExists.WithDetails("SKU %s is already registered", req.SKU)
	}

	item, err := valuation.NewInventoryItem(req.SKU, req.Name, valuation.Method(req.Method))
	if err != nil {
		return nil, err
	}

	if err := e.itemRepo.Save(ctx, item); err != nil {
		return nil, err
	}

	e.logger.Info("item registered",
		zap.String("item_id", item.ID.String()),
		zap.String("sku", item.SKU),
		zap.String("method", item.Method.String()))

	resp := ToItemValuationResponse(item, nil)
	return &resp, nil
}

// RecordMovement validates, computes, and commits one stock movement,
// returning the full cost effect. Outbound cost is always derived from
// current state; a caller-supplied unit cost on an outbound movement is
// rejected. Concurrent writers are handled by reloading and recomputing
// up to the policy's retry limit.
func (e *Engine) RecordMovement(ctx context.Context, req RecordMovementRequest) (*MovementResult, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, shared.ErrInvalidMovement.WithDetails("invalid request: %v", err)
	}

	movementType := valuation.MovementType(req.MovementType)
	if err := validateMovementShape(movementType, req); err != nil {
		return nil, err
	}

	idempotencyKey := movementReferenceKey(req)
	deduplicate := e.idempotency != nil && e.policy.IdempotencyEnabled && idempotencyKey != ""
	if deduplicate {
		processed, err := e.idempotency.IsProcessed(ctx, idempotencyKey)
		if err != nil {
			e.logger.Warn("idempotency check failed, proceeding without it",
				zap.String("key", idempotencyKey), zap.Error(err))
		} else if processed {
			if e.metrics != nil {
				e.metrics.RecordDuplicateMovement(ctx)
			}
			return nil, shared.ErrAlreadyExists.WithDetails(
				"movement for %s/%s was already recorded", req.ReferenceType, req.ReferenceID)
		}
	}

	var result *MovementResult
	var committedEvents []shared.DomainEvent

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxRetries; attempt++ {
		result, committedEvents, lastErr = e.recordOnce(ctx, movementType, req)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, shared.ErrConcurrencyConflict) {
			return nil, lastErr
		}
		if e.metrics != nil {
			e.metrics.RecordLockConflict(ctx)
		}
		e.logger.Debug("optimistic lock conflict, retrying movement",
			zap.String("item_id", req.ItemID.String()),
			zap.Int("attempt", attempt))
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if deduplicate {
		if _, err := e.idempotency.MarkProcessed(ctx, idempotencyKey, e.policy.IdempotencyTTL); err != nil {
			e.logger.Warn("failed to mark movement as processed",
				zap.String("key", idempotencyKey), zap.Error(err))
		}
	}

	if e.metrics != nil {
		e.metrics.RecordMovement(ctx, result.MovementType, result.Method)
		if result.StockAfter.IsNegative() {
			e.metrics.RecordNegativeAdjustment(ctx, result.Method)
		}
	}

	e.publishEvents(ctx, committedEvents)

	e.logger.Info("movement recorded",
		zap.String("item_id", result.ItemID.String()),
		zap.String("movement_type", result.MovementType),
		zap.String("ledger_entry_id", result.LedgerEntryID.String()),
		zap.String("stock_after", result.StockAfter.String()),
		zap.String("value_after", result.ValueAfter.String()))

	return result, nil
}

// recordOnce runs a single attempt of the movement inside one transaction.
// A concurrency conflict surfaces as shared.ErrConcurrencyConflict and the
// caller decides whether to retry.
func (e *Engine) recordOnce(
	ctx context.Context,
	movementType valuation.MovementType,
	req RecordMovementRequest,
) (*MovementResult, []shared.DomainEvent, error) {
	var result *MovementResult
	var events []shared.DomainEvent

	err := e.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByID(ctx, req.ItemID)
		if err != nil {
			return err
		}

		var openBatches []valuation.StockBatch
		if item.IsBatchTracked() {
			openBatches, err = repos.BatchRepo().FindOpenByItem(ctx, item.ID)
			if err != nil {
				return err
			}
		}

		balanceBefore := item.QuantityOnHand
		averageBefore := item.AverageUnitCost
		valueBefore := item.StockValue

		outcome, err := e.computeOutcome(item, openBatches, movementType, req)
		if err != nil {
			if e.metrics != nil && errors.Is(err, shared.ErrInsufficientStock) {
				e.metrics.RecordInsufficientStock(ctx, item.Method.String())
			}
			return err
		}

		batchPtrs := make([]*valuation.StockBatch, len(openBatches))
		for i := range openBatches {
			batchPtrs[i] = &openBatches[i]
		}
		if err := valuation.ApplyOutcome(item, batchPtrs, outcome); err != nil {
			return err
		}

		lastSeq, err := repos.LedgerRepo().LastSequence(ctx, item.ID)
		if err != nil {
			return err
		}

		entry, err := valuation.NewLedgerEntry(
			item.ID, lastSeq+1, movementType,
			req.QuantityIn, req.QuantityOut, outcome.UnitCost,
			balanceBefore, outcome.NewQuantity,
			valueBefore, outcome.NewValue,
			outcome.NewAverageCost, item.Method,
		)
		if err != nil {
			return err
		}
		entry.WithTotalCost(outcome.TotalCost)
		if req.ReferenceType != "" || req.ReferenceID != "" {
			entry.WithReference(req.ReferenceType, req.ReferenceID)
		}
		if req.Reason != "" {
			entry.WithReason(req.Reason)
		}
		if req.OccurredAt != nil {
			entry.WithOccurredAt(*req.OccurredAt)
		}

		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}
		if outcome.NewBatch != nil {
			if err := repos.BatchRepo().Save(ctx, outcome.NewBatch); err != nil {
				return err
			}
		}
		if outcome.Consumption != nil {
			touched := touchedBatches(batchPtrs, outcome.Consumption)
			if err := repos.BatchRepo().SaveAll(ctx, touched); err != nil {
				return err
			}
		}
		if err := repos.LedgerRepo().Create(ctx, entry); err != nil {
			return err
		}

		item.RaiseMovementEvents(entry, balanceBefore)
		events = item.GetDomainEvents()
		item.ClearDomainEvents()

		result = &MovementResult{
			LedgerEntryID:   entry.ID,
			ItemID:          item.ID,
			MovementType:    movementType.String(),
			Method:          item.Method.String(),
			StockBefore:     balanceBefore,
			StockAfter:      outcome.NewQuantity,
			CostBefore:      averageBefore,
			CostAfter:       outcome.NewAverageCost,
			ValueBefore:     valueBefore,
			ValueAfter:      outcome.NewValue,
			TotalCostImpact: entry.SignedTotalCost(),
			CostOfGoodsSold: outboundCost(movementType, outcome.TotalCost),
			BatchesTouched:  outcome.BatchesTouched,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// computeOutcome dispatches to the pure inbound/outbound computation
func (e *Engine) computeOutcome(
	item *valuation.InventoryItem,
	openBatches []valuation.StockBatch,
	movementType valuation.MovementType,
	req RecordMovementRequest,
) (*valuation.MovementOutcome, error) {
	if movementType.IsInbound() {
		receivedAt := time.Now()
		if req.OccurredAt != nil {
			receivedAt = *req.OccurredAt
		}
		return valuation.ComputeInbound(item, req.QuantityIn, *req.UnitCost, receivedAt, req.LotNumber, req.ExpiryDate)
	}

	allowNegative := req.AllowNegativeStock && movementType.IsAdjustment() && e.policy.AllowNegativeAdjustment
	return valuation.ComputeOutbound(item, openBatches, req.QuantityOut, allowNegative)
}

// GetItemValuation returns the current valuation state of an item,
// including its open batch queue for FIFO/LIFO items.
func (e *Engine) GetItemValuation(ctx context.Context, itemID uuid.UUID) (*ItemValuationResponse, error) {
	item, err := e.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var batches []valuation.StockBatch
	if item.IsBatchTracked() {
		batches, err = e.batchRepo.FindOpenByItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
	}

	resp := ToItemValuationResponse(item, batches)
	return &resp, nil
}

// QueryLedger returns an item's ledger entries in sequence order,
// optionally bounded by an occurrence date range.
func (e *Engine) QueryLedger(ctx context.Context, itemID uuid.UUID, dateRange shared.DateRange) ([]LedgerEntryResponse, error) {
	if _, err := e.itemRepo.FindByID(ctx, itemID); err != nil {
		return nil, err
	}
	entries, err := e.ledgerRepo.FindByItem(ctx, itemID, dateRange)
	if err != nil {
		return nil, err
	}
	return ToLedgerEntryResponses(entries), nil
}

// RunningBalanceAt replays an item's ledger up to the given point in time
// and returns the balance and stock value as of that instant.
func (e *Engine) RunningBalanceAt(ctx context.Context, itemID uuid.UUID, at time.Time) (balance, value decimal.Decimal, err error) {
	entries, err := e.ledgerRepo.FindByItem(ctx, itemID, shared.DateRange{})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	balance, value = valuation.ReplayAt(entries, func(entry valuation.LedgerEntry) bool {
		return !entry.OccurredAt.After(at)
	})
	return balance, value, nil
}

// VerifyLedger replays an item's full ledger and checks every entry's
// running fields against the balance and value recurrences. The final
// replayed state is also compared against the item's current snapshot.
func (e *Engine) VerifyLedger(ctx context.Context, itemID uuid.UUID) (*valuation.ReplayResult, error) {
	item, err := e.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	entries, err := e.ledgerRepo.FindByItem(ctx, itemID, shared.DateRange{})
	if err != nil {
		return nil, err
	}

	result, err := valuation.Replay(entries)
	if err != nil {
		return nil, err
	}

	if !result.FinalBalance.Equal(item.QuantityOnHand) || !result.FinalValue.Equal(item.StockValue) {
		return nil, shared.ErrInvalidState.WithDetails(
			"ledger replays to balance %s value %s but item holds %s / %s",
			result.FinalBalance, result.FinalValue, item.QuantityOnHand, item.StockValue)
	}
	return result, nil
}

// publishEvents publishes domain events after a successful commit.
// Publish failures are logged, not propagated: the movement is already
// durable and must not be reported as failed.
func (e *Engine) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if e.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := e.eventPublisher.Publish(ctx, events...); err != nil {
		e.logger.Warn("failed to publish movement events", zap.Error(err))
	}
}

// validateMovementShape enforces the request shape rules that the
// validator tags cannot express: exactly one positive quantity, matching
// the movement direction, and a unit cost only on inbound movements.
func validateMovementShape(movementType valuation.MovementType, req RecordMovementRequest) error {
	if !movementType.IsValid() {
		return shared.ErrInvalidMovement.WithDetails("unknown movement type %q", req.MovementType)
	}

	hasIn := req.QuantityIn.GreaterThan(decimal.Zero)
	hasOut := req.QuantityOut.GreaterThan(decimal.Zero)
	if req.QuantityIn.IsNegative() || req.QuantityOut.IsNegative() {
		return shared.ErrInvalidMovement.WithDetails("quantities cannot be negative")
	}
	if hasIn == hasOut {
		return shared.ErrInvalidMovement.WithDetails("exactly one of quantity_in and quantity_out must be positive")
	}

	if movementType.IsInbound() {
		if !hasIn {
			return shared.ErrInvalidMovement.WithDetails("%s requires quantity_in", movementType)
		}
		if req.UnitCost == nil {
			return shared.ErrInvalidMovement.WithDetails("inbound movements require a unit cost")
		}
		if req.UnitCost.IsNegative() {
			return shared.ErrInvalidMovement.WithDetails("unit cost cannot be negative")
		}
	} else {
		if !hasOut {
			return shared.ErrInvalidMovement.WithDetails("%s requires quantity_out", movementType)
		}
		if req.UnitCost != nil {
			return shared.ErrInvalidMovement.WithDetails("outbound cost is derived and cannot be supplied")
		}
	}

	if req.AllowNegativeStock && !movementType.IsAdjustment() {
		return shared.ErrInvalidMovement.WithDetails("negative stock is only allowed on adjustment movements")
	}

	return nil
}

// touchedBatches returns the batch entities a consumption actually changed
func touchedBatches(batches []*valuation.StockBatch, result *valuation.ConsumptionResult) []*valuation.StockBatch {
	consumed := make(map[uuid.UUID]bool, len(result.Slices))
	for _, slice := range result.Slices {
		consumed[slice.BatchID] = true
	}
	touched := make([]*valuation.StockBatch, 0, len(result.Slices))
	for _, batch := range batches {
		if consumed[batch.ID] {
			touched = append(touched, batch)
		}
	}
	return touched
}

// outboundCost reports the total cost as COGS only for outbound movements
func outboundCost(movementType valuation.MovementType, totalCost decimal.Decimal) decimal.Decimal {
	if movementType.IsOutbound() {
		return totalCost
	}
	return decimal.Zero
}

// movementReferenceKey derives the idempotency key for a movement that
// carries a source document reference. Movements without a reference are
// never deduplicated.
func movementReferenceKey(req RecordMovementRequest) string {
	if req.ReferenceType == "" || req.ReferenceID == "" {
		return ""
	}
	return fmt.Sprintf("movement:%s:%s", req.ReferenceType, req.ReferenceID)
}
