package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("open sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestRankedSalesScansWindowedRows(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"sku", "name", "category", "retail_price", "total_units", "total_revenue", "image_path", "site_rank", "category_rank"}).
		AddRow("B1", "Mug", "Mugs", "12.50", int64(20), "200.00", "", int64(1), int64(1)).
		AddRow("A1", "Shirt", "Shirts", "20.00", int64(10), "100.00", "/images/items/a1A.webp", int64(2), int64(1))
	mock.ExpectQuery(regexp.QuoteMeta("ROW_NUMBER() OVER (ORDER BY total_units DESC")).WillReturnRows(rows)

	facts, err := s.RankedSales(context.Background())
	if err != nil {
		t.Fatalf("ranked sales: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}
	if facts[0].SKU != "B1" || facts[0].SiteRank != 1 || facts[0].TotalUnits != 20 {
		t.Fatalf("unexpected first fact: %+v", facts[0])
	}
	if facts[1].RetailPrice.StringFixed(2) != "20.00" || facts[1].ImagePath == "" {
		t.Fatalf("unexpected second fact: %+v", facts[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRankedSalesPropagatesQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("ROW_NUMBER()")).WillReturnError(errors.New("window functions unavailable"))

	if _, err := s.RankedSales(context.Background()); err == nil {
		t.Fatalf("expected error from windowed query")
	}
}

func TestAggregateSalesActiveOnlyAddsFilter(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"sku", "name", "category", "retail_price", "total_units", "total_revenue", "image_path"}).
		AddRow("A2", "Shirt 2", "Shirts", "18.00", int64(5), "60.00", "")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE total_units > 0 OR total_revenue > 0")).WillReturnRows(rows)

	facts, err := s.AggregateSales(context.Background(), true)
	if err != nil {
		t.Fatalf("aggregate sales: %v", err)
	}
	if len(facts) != 1 || facts[0].SKU != "A2" || facts[0].TotalRevenue.StringFixed(2) != "60.00" {
		t.Fatalf("unexpected facts: %+v", facts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStockLevelMapsNoRowsToNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM items")).
		WithArgs("WF-NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"stock_level"}))

	_, err := s.StockLevel(context.Background(), " wf-nope ")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHasVariantsAndActiveSizes(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM item_colors")).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("is_active = true")).
		WithArgs("D1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	hasVariants, err := s.HasVariants(context.Background(), "c1")
	if err != nil || hasVariants {
		t.Fatalf("expected no variants for C1, got %v (err %v)", hasVariants, err)
	}
	hasSizes, err := s.HasActiveSizes(context.Background(), "D1")
	if err != nil || !hasSizes {
		t.Fatalf("expected active sizes for D1, got %v (err %v)", hasSizes, err)
	}
}

func TestCreateAndListSimulations(t *testing.T) {
	s, mock := newMockStore(t)
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upsell_simulations")).
		WithArgs("run-1", createdAt, nil, sqlmock.AnyArg(), `["A2"]`, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CreateSimulation(context.Background(), domain.SimulationResult{
		ID:        "run-1",
		Profile:   domain.ShopperProfile{Budget: domain.BudgetLow},
		CartSKUs:  []string{"A2"},
		Criteria:  domain.SimulationCriteria{Source: "simulated", Limit: 4},
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("create simulation: %v", err)
	}

	rows := sqlmock.NewRows([]string{"id", "created_at", "created_by", "profile_json", "cart_skus_json", "criteria_json", "upsells_json", "rationale_json"}).
		AddRow("run-1", createdAt, "", []byte(`{"budget":"low"}`), []byte(`["A2"]`), []byte(`{"source":"simulated","limit":4}`), []byte(`[]`), []byte(`{"A1":["Category leader"]}`))
	mock.ExpectQuery(regexp.QuoteMeta("FROM upsell_simulations")).WithArgs(5).WillReturnRows(rows)

	runs, err := s.ListSimulations(context.Background(), 5)
	if err != nil {
		t.Fatalf("list simulations: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Profile.Budget != domain.BudgetLow || run.Criteria.Source != "simulated" || run.Rationales["A1"][0] != "Category leader" {
		t.Fatalf("unexpected decoded run: %+v", run)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
