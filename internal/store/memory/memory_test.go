package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/store"
)

func TestRankedSalesIsUnsupported(t *testing.T) {
	if _, err := New().RankedSales(context.Background()); !errors.Is(err, store.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestAggregateSalesSumsLinesAndFiltersInactive(t *testing.T) {
	s := New()
	s.UpsertItem(Item{SKU: " wf-a1 ", Name: "Mug", Category: " Drinkware ", PriceCents: 1250})
	s.UpsertItem(Item{SKU: "WF-B1", Name: "Poster", Category: "Art", PriceCents: 900})
	s.RecordSale("wf-a1", 2, decimal.RequireFromString("25.00"))
	s.RecordSale("WF-A1", 1, decimal.RequireFromString("12.50"))

	all, err := s.AggregateSales(context.Background(), false)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(all))
	}
	first := all[0]
	if first.SKU != "WF-A1" || first.TotalUnits != 3 || !first.TotalRevenue.Equal(decimal.RequireFromString("37.50")) {
		t.Fatalf("unexpected aggregate for WF-A1: %+v", first)
	}
	if first.Category != "Drinkware" || !first.RetailPrice.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("unexpected catalog fields: %+v", first)
	}

	active, err := s.AggregateSales(context.Background(), true)
	if err != nil {
		t.Fatalf("aggregate active: %v", err)
	}
	if len(active) != 1 || active[0].SKU != "WF-A1" {
		t.Fatalf("expected only the sold item, got %+v", active)
	}
}

func TestStockAndVariants(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if _, err := s.StockLevel(ctx, "WF-NOPE"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetStock("wf-tu-001", 3); err != nil {
		t.Fatalf("set stock: %v", err)
	}
	if qty, _ := s.StockLevel(ctx, "WF-TU-001"); qty != 3 {
		t.Fatalf("expected stock 3, got %d", qty)
	}
	if err := s.SetStock("WF-NOPE", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on unknown sku, got %v", err)
	}

	if ok, _ := s.HasVariants(ctx, "WF-AR-002"); !ok {
		t.Fatalf("expected color variant to count")
	}
	if ok, _ := s.HasActiveSizes(ctx, "WF-AR-002"); ok {
		t.Fatalf("colors are not sizes")
	}
	if ok, _ := s.HasActiveSizes(ctx, "WF-TS-001"); !ok {
		t.Fatalf("expected active sizes for WF-TS-001")
	}
	s.AddSize("WF-TU-002", "S", false)
	if ok, _ := s.HasActiveSizes(ctx, "WF-TU-002"); ok {
		t.Fatalf("inactive size must not count")
	}
}

func TestListSimulationsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if err := s.CreateSimulation(ctx, domain.SimulationResult{ID: id}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	runs, err := s.ListSimulations(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-3" || runs[1].ID != "run-2" {
		t.Fatalf("unexpected order: %+v", runs)
	}

	all, _ := s.ListSimulations(ctx, 0)
	if len(all) != 3 {
		t.Fatalf("expected default limit to cover all runs, got %d", len(all))
	}
}
