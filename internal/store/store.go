package store

import (
	"context"
	"errors"

	"cartupsell/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrUnsupported is returned by a repository that cannot run a given query shape.
	ErrUnsupported = errors.New("unsupported query")
)

type SalesRepository interface {
	// RankedSales returns one row per SKU with site and category ranks computed by the data source.
	RankedSales(ctx context.Context) ([]domain.RankedFact, error)
	// AggregateSales returns one unranked row per SKU. With activeOnly set, rows with
	// neither units nor revenue are left out.
	AggregateSales(ctx context.Context, activeOnly bool) ([]domain.SalesFact, error)
}

type StockRepository interface {
	StockLevel(ctx context.Context, sku string) (int, error)
	HasVariants(ctx context.Context, sku string) (bool, error)
	HasActiveSizes(ctx context.Context, sku string) (bool, error)
}

type SimulationRepository interface {
	CreateSimulation(ctx context.Context, run domain.SimulationResult) error
	ListSimulations(ctx context.Context, limit int) ([]domain.SimulationResult, error)
}

type Repository interface {
	SalesRepository
	StockRepository
	SimulationRepository
}
