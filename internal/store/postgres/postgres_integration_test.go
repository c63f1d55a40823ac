package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestRankedSalesAgainstDatabase(t *testing.T) {
	databaseURL := os.Getenv("UPSELL_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set UPSELL_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	top := fmt.Sprintf("IT-TOP-%d", stamp)
	low := fmt.Sprintf("IT-LOW-%d", stamp)
	category := fmt.Sprintf("it-category-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM order_items WHERE sku = ANY($1)`, []string{top, low})
		_, _ = s.db.ExecContext(ctx, `DELETE FROM items WHERE sku = ANY($1)`, []string{top, low})
	})

	for _, sku := range []string{top, low} {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO items (sku, name, category, retail_price, stock_level)
			VALUES ($1, $1, $2, 10.00, 5)
		`, sku, category); err != nil {
			t.Fatalf("insert item %s: %v", sku, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO order_items (sku, quantity, price) VALUES ($1, 3, 10.00), ($2, 1, 10.00)
	`, top, low); err != nil {
		t.Fatalf("insert order items: %v", err)
	}

	facts, err := s.RankedSales(ctx)
	if err != nil {
		t.Fatalf("ranked sales: %v", err)
	}

	ranks := map[string]int{}
	for _, f := range facts {
		if f.Category == category {
			ranks[f.SKU] = f.CategoryRank
		}
	}
	if ranks[top] != 1 || ranks[low] != 2 {
		t.Fatalf("expected category ranks 1 and 2, got %v", ranks)
	}
}
