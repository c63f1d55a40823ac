package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/store"
)

// Item is a catalog row as the in-memory store keeps it.
type Item struct {
	SKU        string
	Name       string
	Category   string
	PriceCents int64
	ImagePath  string
	StockLevel int
}

type saleLine struct {
	sku     string
	qty     int64
	revenue decimal.Decimal
}

type variant struct {
	code   string
	active bool
}

type Store struct {
	mu          sync.RWMutex
	items       map[string]Item
	sales       []saleLine
	sizes       map[string][]variant
	colors      map[string][]variant
	simulations []domain.SimulationResult
}

func New() *Store {
	return &Store{
		items:       make(map[string]Item),
		sales:       make([]saleLine, 0, 64),
		sizes:       make(map[string][]variant),
		colors:      make(map[string][]variant),
		simulations: make([]domain.SimulationResult, 0, 16),
	}
}

// NewSeeded returns a store with a small demo catalog and sales history.
func NewSeeded() *Store {
	s := New()

	items := []Item{
		{SKU: "WF-TS-001", Name: "Frog Pond T-Shirt", Category: "T-Shirts", PriceCents: 2499, StockLevel: 0},
		{SKU: "WF-TS-002", Name: "Lily Pad T-Shirt", Category: "T-Shirts", PriceCents: 2299, StockLevel: 0},
		{SKU: "WF-TU-001", Name: "Insulated Tumbler 20oz", Category: "Tumblers", PriceCents: 2999, StockLevel: 14},
		{SKU: "WF-TU-002", Name: "Kids Tumbler 12oz", Category: "Tumblers", PriceCents: 1999, StockLevel: 6},
		{SKU: "WF-AR-001", Name: "Canvas Wall Art", Category: "Artwork", PriceCents: 4500, StockLevel: 3},
		{SKU: "WF-AR-002", Name: "Framed Print", Category: "Artwork", PriceCents: 3500, StockLevel: 0},
		{SKU: "WF-WW-001", Name: "Window Wrap Decal", Category: "Window Wraps", PriceCents: 1500, StockLevel: 40},
		{SKU: "WF-SU-001", Name: "Sublimation Mug", Category: "Sublimation", PriceCents: 1800, StockLevel: 22},
		{SKU: "WF-GEN-001", Name: "Gift Card", Category: "", PriceCents: 2500, StockLevel: 0},
	}
	for _, item := range items {
		s.UpsertItem(item)
	}

	// T-shirts track stock per size, so zero aggregate stock is real here.
	s.AddSize("WF-TS-001", "M", true)
	s.AddSize("WF-TS-001", "L", true)
	s.AddColor("WF-AR-002", "Black", true)

	sales := []struct {
		sku string
		qty int64
	}{
		{"WF-TU-001", 42}, {"WF-TU-002", 18}, {"WF-TS-001", 30}, {"WF-TS-002", 12},
		{"WF-AR-001", 7}, {"WF-WW-001", 25}, {"WF-SU-001", 25}, {"WF-GEN-001", 4},
	}
	for _, sale := range sales {
		item := s.items[sale.sku]
		s.RecordSale(sale.sku, sale.qty, decimal.New(item.PriceCents, -2).Mul(decimal.NewFromInt(sale.qty)))
	}

	return s
}

func (s *Store) UpsertItem(item Item) {
	item.SKU = domain.NormalizeSKU(item.SKU)
	if item.SKU == "" {
		return
	}
	s.mu.Lock()
	s.items[item.SKU] = item
	s.mu.Unlock()
}

func (s *Store) RecordSale(sku string, qty int64, revenue decimal.Decimal) {
	s.mu.Lock()
	s.sales = append(s.sales, saleLine{sku: domain.NormalizeSKU(sku), qty: qty, revenue: revenue})
	s.mu.Unlock()
}

func (s *Store) SetStock(sku string, qty int) error {
	sku = domain.NormalizeSKU(sku)
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[sku]
	if !ok {
		return store.ErrNotFound
	}
	item.StockLevel = qty
	s.items[sku] = item
	return nil
}

func (s *Store) AddSize(sku string, code string, active bool) {
	sku = domain.NormalizeSKU(sku)
	s.mu.Lock()
	s.sizes[sku] = append(s.sizes[sku], variant{code: code, active: active})
	s.mu.Unlock()
}

func (s *Store) AddColor(sku string, name string, active bool) {
	sku = domain.NormalizeSKU(sku)
	s.mu.Lock()
	s.colors[sku] = append(s.colors[sku], variant{code: name, active: active})
	s.mu.Unlock()
}

// RankedSales is not available in memory; callers fall back to AggregateSales.
func (s *Store) RankedSales(_ context.Context) ([]domain.RankedFact, error) {
	return nil, store.ErrUnsupported
}

func (s *Store) AggregateSales(_ context.Context, activeOnly bool) ([]domain.SalesFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	units := make(map[string]int64, len(s.items))
	revenue := make(map[string]decimal.Decimal, len(s.items))
	for _, line := range s.sales {
		units[line.sku] += line.qty
		revenue[line.sku] = revenue[line.sku].Add(line.revenue)
	}

	facts := make([]domain.SalesFact, 0, len(s.items))
	for sku, item := range s.items {
		if activeOnly && units[sku] <= 0 && !revenue[sku].IsPositive() {
			continue
		}
		facts = append(facts, domain.SalesFact{
			SKU:          sku,
			Name:         item.Name,
			Category:     strings.TrimSpace(item.Category),
			RetailPrice:  decimal.New(item.PriceCents, -2),
			TotalUnits:   units[sku],
			TotalRevenue: revenue[sku].Round(2),
			ImagePath:    item.ImagePath,
		})
	}
	slices.SortFunc(facts, func(a, b domain.SalesFact) int {
		return strings.Compare(a.SKU, b.SKU)
	})
	return facts, nil
}

func (s *Store) StockLevel(_ context.Context, sku string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[domain.NormalizeSKU(sku)]
	if !ok {
		return 0, store.ErrNotFound
	}
	return item.StockLevel, nil
}

func (s *Store) HasVariants(_ context.Context, sku string) (bool, error) {
	sku = domain.NormalizeSKU(sku)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sizes[sku]) > 0 || len(s.colors[sku]) > 0, nil
}

func (s *Store) HasActiveSizes(_ context.Context, sku string) (bool, error) {
	sku = domain.NormalizeSKU(sku)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, size := range s.sizes[sku] {
		if size.active {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateSimulation(_ context.Context, run domain.SimulationResult) error {
	s.mu.Lock()
	s.simulations = append(s.simulations, run)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListSimulations(_ context.Context, limit int) ([]domain.SimulationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit < 1 {
		limit = 20
	}
	result := make([]domain.SimulationResult, 0, min(limit, len(s.simulations)))
	for i := len(s.simulations) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.simulations[i])
	}
	return result, nil
}
