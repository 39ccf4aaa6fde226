package valuation

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/valuation"
)

// Reporter aggregates current item valuations for reporting. All figures
// come from the items' running fields, which the engine keeps consistent
// with the ledger, so no replay is needed to build a summary.
type Reporter struct {
	itemRepo  valuation.ItemRepository
	batchRepo valuation.BatchRepository
	logger    *zap.Logger
}

// NewReporter creates a new valuation reporter
func NewReporter(itemRepo valuation.ItemRepository, batchRepo valuation.BatchRepository, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		itemRepo:  itemRepo,
		batchRepo: batchRepo,
		logger:    logger,
	}
}

// SummaryByMethod returns one summary per valuation method, each listing
// the items priced under it with their current quantity, blended cost, and
// stock value. Methods with no registered items are omitted.
func (r *Reporter) SummaryByMethod(ctx context.Context, filter shared.Filter) ([]MethodSummary, error) {
	summaries := make([]MethodSummary, 0, len(valuation.AllMethods()))

	for _, method := range valuation.AllMethods() {
		items, err := r.itemRepo.FindByMethod(ctx, method, filter)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			continue
		}

		summary := MethodSummary{
			Method:        method.String(),
			ItemCount:     len(items),
			TotalQuantity: decimal.Zero,
			TotalValue:    decimal.Zero,
			Items:         make([]ItemBreakdown, 0, len(items)),
		}

		for i := range items {
			item := &items[i]
			breakdown := ItemBreakdown{
				ItemID:          item.ID,
				SKU:             item.SKU,
				Name:            item.Name,
				QuantityOnHand:  item.QuantityOnHand,
				AverageUnitCost: item.AverageUnitCost,
				StockValue:      item.StockValue,
			}
			if method.IsBatchTracked() {
				count, err := r.batchRepo.CountOpenByItem(ctx, item.ID)
				if err != nil {
					return nil, err
				}
				breakdown.OpenBatchCount = count
			}

			summary.TotalQuantity = summary.TotalQuantity.Add(item.QuantityOnHand)
			summary.TotalValue = summary.TotalValue.Add(item.StockValue)
			summary.Items = append(summary.Items, breakdown)
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Totals returns the catalog-wide quantity and value totals
func (r *Reporter) Totals(ctx context.Context) (*SummaryTotals, error) {
	items, err := r.itemRepo.FindAll(ctx, shared.Filter{})
	if err != nil {
		return nil, err
	}

	totals := &SummaryTotals{
		TotalItems:    len(items),
		TotalQuantity: decimal.Zero,
		TotalValue:    decimal.Zero,
	}
	for i := range items {
		totals.TotalQuantity = totals.TotalQuantity.Add(items[i].QuantityOnHand)
		totals.TotalValue = totals.TotalValue.Add(items[i].StockValue)
	}

	r.logger.Debug("valuation totals computed",
		zap.Int("items", totals.TotalItems),
		zap.String("total_value", totals.TotalValue.String()))

	return totals, nil
}
