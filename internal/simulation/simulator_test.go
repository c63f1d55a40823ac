package simulation

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/ranking"
	"cartupsell/backend/internal/recommendation"
	"cartupsell/backend/internal/rules"
	"cartupsell/backend/internal/store/memory"
)

type stubResolver struct {
	carts  [][]string
	result domain.UpsellResult
}

func (s *stubResolver) Resolve(_ context.Context, cart []string, limit int) domain.UpsellResult {
	s.carts = append(s.carts, slices.Clone(cart))
	res := s.result
	if len(res.Upsells) > limit {
		res.Upsells = res.Upsells[:limit]
	}
	return res
}

type failingRuns struct{ calls int }

func (f *failingRuns) CreateSimulation(context.Context, domain.SimulationResult) error {
	f.calls++
	return errors.New("insert failed")
}

func (f *failingRuns) ListSimulations(context.Context, int) ([]domain.SimulationResult, error) {
	return nil, nil
}

func salesFact(sku, category string, units int64, price string) domain.SalesFact {
	return domain.SalesFact{
		SKU:          sku,
		Name:         "Item " + sku,
		Category:     category,
		RetailPrice:  decimal.RequireFromString(price),
		TotalUnits:   units,
		TotalRevenue: decimal.RequireFromString(price).Mul(decimal.NewFromInt(units)),
	}
}

func scenarioCache() *rules.MemoryCache {
	facts := []domain.SalesFact{
		salesFact("A1", "Shirts", 10, "25.00"),
		salesFact("A2", "Shirts", 5, "18.00"),
		salesFact("B1", "Mugs", 20, "12.50"),
	}
	return rules.NewMemoryCache(rules.FactSourceFunc(func(context.Context) []domain.RankedFact {
		return ranking.Rank(facts)
	}), zerolog.Nop())
}

func fixedOptions(seed uint64) Options {
	return Options{
		Rand:  rand.New(rand.NewPCG(seed, seed+1)),
		Now:   func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string { return "run-1" },
	}
}

func TestSimulateSeedsCartWithCategoryLeader(t *testing.T) {
	resolver := &stubResolver{}
	runs := memory.New()
	sim := NewSimulator(scenarioCache(), resolver, runs, zerolog.Nop(), fixedOptions(1))

	result := sim.SimulateAs(context.Background(), domain.ShopperProfile{PreferredCategory: "Shirts", Budget: "LOW"}, 3, "manager")

	if !reflect.DeepEqual(result.CartSKUs, []string{"A1"}) {
		t.Fatalf("expected leader cart, got %v", result.CartSKUs)
	}
	if !reflect.DeepEqual(resolver.carts, [][]string{{"A1"}}) {
		t.Fatalf("expected resolver to see the seeded cart, got %v", resolver.carts)
	}
	if result.Profile.Budget != domain.BudgetLow || result.Profile.Region != domain.DefaultRegion {
		t.Fatalf("unexpected profile: %+v", result.Profile)
	}
	if result.Criteria.Source != Source || result.Criteria.Limit != 3 {
		t.Fatalf("unexpected criteria: %+v", result.Criteria)
	}
	want := domain.CriteriaMetadata{SiteTop: "B1", SiteSecond: "A1", Category: "Shirts"}
	if result.Criteria.MetadataUsed != want {
		t.Fatalf("expected %+v, got %+v", want, result.Criteria.MetadataUsed)
	}
	if result.ID != "run-1" || result.CreatedBy != "manager" || result.CreatedAt.IsZero() {
		t.Fatalf("unexpected run identity: %+v", result)
	}

	stored, _ := runs.ListSimulations(context.Background(), 5)
	if len(stored) != 1 || stored[0].ID != "run-1" {
		t.Fatalf("expected stored simulation, got %+v", stored)
	}
}

func TestSimulateUnknownCategoryUsesEmptyCart(t *testing.T) {
	resolver := &stubResolver{}
	sim := NewSimulator(scenarioCache(), resolver, nil, zerolog.Nop(), fixedOptions(2))

	result := sim.Simulate(context.Background(), domain.ShopperProfile{PreferredCategory: "Posters"}, 4)
	if result.CartSKUs == nil || len(result.CartSKUs) != 0 {
		t.Fatalf("expected empty cart, got %v", result.CartSKUs)
	}
	if result.Profile.PreferredCategory != "Posters" {
		t.Fatalf("seeded category must be kept, got %q", result.Profile.PreferredCategory)
	}
}

func TestSimulateFillsUnsetFieldsFromKnownValues(t *testing.T) {
	for seed := uint64(0); seed < 25; seed++ {
		sim := NewSimulator(scenarioCache(), &stubResolver{}, nil, zerolog.Nop(), fixedOptions(seed))
		profile := sim.Simulate(context.Background(), domain.ShopperProfile{}, 4).Profile

		if !slices.Contains([]string{"Mugs", "Shirts"}, profile.PreferredCategory) {
			t.Fatalf("seed %d: unexpected category %q", seed, profile.PreferredCategory)
		}
		if !slices.Contains(Budgets, profile.Budget) || !slices.Contains(Intents, profile.Intent) || !slices.Contains(Devices, profile.Device) {
			t.Fatalf("seed %d: unexpected profile %+v", seed, profile)
		}
		if profile.Region != domain.DefaultRegion {
			t.Fatalf("seed %d: expected default region, got %q", seed, profile.Region)
		}
	}
}

func TestSimulateIsReproducibleWithSameSource(t *testing.T) {
	a := NewSimulator(scenarioCache(), &stubResolver{}, nil, zerolog.Nop(), fixedOptions(42))
	b := NewSimulator(scenarioCache(), &stubResolver{}, nil, zerolog.Nop(), fixedOptions(42))

	for i := 0; i < 5; i++ {
		pa := a.Simulate(context.Background(), domain.ShopperProfile{}, 4).Profile
		pb := b.Simulate(context.Background(), domain.ShopperProfile{}, 4).Profile
		if pa != pb {
			t.Fatalf("round %d: %+v != %+v", i, pa, pb)
		}
	}
}

func TestSimulatePersistenceFailureIsNotFatal(t *testing.T) {
	runs := &failingRuns{}
	resolver := &stubResolver{result: domain.UpsellResult{Upsells: []domain.UpsellItem{{SKU: "B1", StockLevel: 3}}}}
	sim := NewSimulator(scenarioCache(), resolver, runs, zerolog.Nop(), fixedOptions(3))

	result := sim.Simulate(context.Background(), domain.ShopperProfile{PreferredCategory: "Mugs"}, 0)
	if runs.calls != 1 {
		t.Fatalf("expected one persistence attempt, got %d", runs.calls)
	}
	if len(result.Recommendations) != 1 || result.Criteria.Limit != 1 {
		t.Fatalf("expected clamped limit and recommendations, got %+v", result)
	}
}

func TestSimulateWithResolver(t *testing.T) {
	cache := scenarioCache()
	oracle := recommendation.NewRepositoryOracle(memory.New(), zerolog.Nop())
	resolver := recommendation.NewResolver(cache, alwaysInStock{oracle}, nil, zerolog.Nop())
	sim := NewSimulator(cache, resolver, nil, zerolog.Nop(), fixedOptions(9))

	result := sim.Simulate(context.Background(), domain.ShopperProfile{PreferredCategory: "Shirts", Budget: domain.BudgetMid}, 4)

	got := make([]string, 0, len(result.Recommendations))
	for _, item := range result.Recommendations {
		got = append(got, item.SKU)
	}
	if !reflect.DeepEqual(got, []string{"A2", "B1"}) {
		t.Fatalf("unexpected recommendations: %v", got)
	}
	wantA2 := []string{ReasonPreferredCategory, ReasonCategorySecondary, ReasonFitsBudget}
	if !reflect.DeepEqual(result.Rationales["A2"], wantA2) {
		t.Fatalf("A2 rationale: expected %v, got %v", wantA2, result.Rationales["A2"])
	}
	if !reflect.DeepEqual(result.Rationales["B1"], []string{ReasonSiteTop, ReasonFitsBudget}) {
		t.Fatalf("unexpected B1 rationale: %v", result.Rationales["B1"])
	}
}

// alwaysInStock reports every SKU as stocked while keeping the variant answers of the wrapped oracle.
type alwaysInStock struct {
	recommendation.StockOracle
}

func (alwaysInStock) Available(context.Context, string) (int, bool) { return 7, true }

func TestRationales(t *testing.T) {
	set := domain.RuleSet{Metadata: domain.RuleSetMetadata{
		SiteTop:             "T1",
		SiteSecond:          "T2",
		CategoryLeaders:     map[string]string{"Art": "L1"},
		CategorySecondaries: map[string]string{"Art": "L2"},
	}}
	items := []domain.UpsellItem{
		{SKU: "T1", Category: "Mugs", Price: decimal.NewFromInt(15)},
		{SKU: "L1", Category: "Art", Price: decimal.NewFromInt(45)},
		{SKU: "X9", Category: "Misc", Price: decimal.NewFromInt(55)},
	}

	got := Rationales(domain.ShopperProfile{PreferredCategory: "Art", Budget: domain.BudgetMid}, items, set)
	want := map[string][]string{
		"T1": {ReasonSiteTop, ReasonFitsBudget},
		"L1": {ReasonPreferredCategory, ReasonCategoryLeader},
		"X9": {ReasonCatalogPerformer},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFitsBudget(t *testing.T) {
	tests := []struct {
		budget string
		price  string
		want   bool
	}{
		{domain.BudgetLow, "20.00", true},
		{domain.BudgetLow, "20.01", false},
		{domain.BudgetMid, "40", true},
		{domain.BudgetMid, "40.50", false},
		{domain.BudgetHigh, "500", true},
		{"", "999", true},
	}
	for _, tc := range tests {
		if got := FitsBudget(tc.budget, decimal.RequireFromString(tc.price)); got != tc.want {
			t.Fatalf("%s/%s: expected %v, got %v", tc.budget, tc.price, tc.want, got)
		}
	}
}
