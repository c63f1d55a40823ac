package recommendation

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"cartupsell/backend/internal/logging"
	"cartupsell/backend/internal/store"
)

// UnlimitedStock stands in for items that never set up per-variant stock tracking.
const UnlimitedStock = 999

type StockOracle interface {
	// Available reports the aggregate stock quantity. ok is false when it is unknown.
	Available(ctx context.Context, sku string) (qty int, ok bool)
	HasVariants(ctx context.Context, sku string) bool
	HasActiveSizes(ctx context.Context, sku string) bool
}

// EffectiveStock applies the zero-stock rule: a SKU at 0 with no size or color rows
// counts as UnlimitedStock, one with variant rows is out of stock.
func EffectiveStock(ctx context.Context, oracle StockOracle, sku string) int {
	qty, ok := oracle.Available(ctx, sku)
	if !ok {
		return 0
	}
	if qty != 0 {
		return qty
	}
	if oracle.HasVariants(ctx, sku) {
		return 0
	}
	return UnlimitedStock
}

// RepositoryOracle answers stock questions from the store. Lookup errors never
// reach the caller: unknown stock is unavailable, an unknown variant state is none.
type RepositoryOracle struct {
	repo   store.StockRepository
	logger zerolog.Logger
}

func NewRepositoryOracle(repo store.StockRepository, logger zerolog.Logger) *RepositoryOracle {
	return &RepositoryOracle{
		repo:   repo,
		logger: logging.Component(logger, "stock"),
	}
}

func (o *RepositoryOracle) Available(ctx context.Context, sku string) (int, bool) {
	qty, err := o.repo.StockLevel(ctx, sku)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			o.logger.Debug().Err(err).Str("sku", sku).Msg("stock lookup failed")
		}
		return 0, false
	}
	return qty, true
}

func (o *RepositoryOracle) HasVariants(ctx context.Context, sku string) bool {
	exists, err := o.repo.HasVariants(ctx, sku)
	if err != nil {
		o.logger.Debug().Err(err).Str("sku", sku).Msg("variant lookup failed")
		return false
	}
	return exists
}

func (o *RepositoryOracle) HasActiveSizes(ctx context.Context, sku string) bool {
	exists, err := o.repo.HasActiveSizes(ctx, sku)
	if err != nil {
		o.logger.Debug().Err(err).Str("sku", sku).Msg("size lookup failed")
		return false
	}
	return exists
}
