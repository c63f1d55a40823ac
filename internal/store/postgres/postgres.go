package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

const ensureSimulationTableSQL = `
	CREATE TABLE IF NOT EXISTS upsell_simulations (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_by TEXT NULL,
		profile_json JSONB NULL,
		cart_skus_json JSONB NULL,
		criteria_json JSONB NULL,
		upsells_json JSONB NULL,
		rationale_json JSONB NULL
	)`

// EnsureSimulationTable creates the simulation log table when it is missing.
func (s *Store) EnsureSimulationTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, ensureSimulationTableSQL)
	return err
}

// salesCTE aggregates order lines per catalog item. Items without sales keep a zero row.
const salesCTE = `
	WITH sales AS (
		SELECT
			UPPER(i.sku) AS sku,
			i.name,
			COALESCE(TRIM(i.category), '') AS category,
			COALESCE(i.retail_price, 0)::numeric(12,2) AS retail_price,
			COALESCE(SUM(oi.quantity), 0)::bigint AS total_units,
			COALESCE(SUM(oi.quantity * oi.price), 0)::numeric(14,2) AS total_revenue,
			COALESCE((
				SELECT img.image_path
				FROM item_images img
				WHERE UPPER(img.sku) = UPPER(i.sku)
				ORDER BY img.is_primary DESC, img.sort_order ASC
				LIMIT 1
			), '') AS image_path
		FROM items i
		LEFT JOIN order_items oi ON UPPER(oi.sku) = UPPER(i.sku)
		GROUP BY i.sku, i.name, i.category, i.retail_price
	)`

const rankedSalesSQL = salesCTE + `
	SELECT sku, name, category, retail_price, total_units, total_revenue, image_path,
		ROW_NUMBER() OVER (ORDER BY total_units DESC, total_revenue DESC, LOWER(name) ASC, sku ASC) AS site_rank,
		ROW_NUMBER() OVER (PARTITION BY category ORDER BY total_units DESC, total_revenue DESC, LOWER(name) ASC, sku ASC) AS category_rank
	FROM sales
	ORDER BY site_rank`

const aggregateSalesSQL = salesCTE + `
	SELECT sku, name, category, retail_price, total_units, total_revenue, image_path
	FROM sales`

const activeAggregateSalesSQL = aggregateSalesSQL + `
	WHERE total_units > 0 OR total_revenue > 0`

func (s *Store) RankedSales(ctx context.Context) ([]domain.RankedFact, error) {
	rows, err := s.db.QueryContext(ctx, rankedSalesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	facts := make([]domain.RankedFact, 0, 128)
	for rows.Next() {
		var f domain.RankedFact
		if err := rows.Scan(&f.SKU, &f.Name, &f.Category, &f.RetailPrice, &f.TotalUnits, &f.TotalRevenue, &f.ImagePath, &f.SiteRank, &f.CategoryRank); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return facts, nil
}

func (s *Store) AggregateSales(ctx context.Context, activeOnly bool) ([]domain.SalesFact, error) {
	query := aggregateSalesSQL
	if activeOnly {
		query = activeAggregateSalesSQL
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	facts := make([]domain.SalesFact, 0, 128)
	for rows.Next() {
		var f domain.SalesFact
		if err := rows.Scan(&f.SKU, &f.Name, &f.Category, &f.RetailPrice, &f.TotalUnits, &f.TotalRevenue, &f.ImagePath); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return facts, nil
}

func (s *Store) StockLevel(ctx context.Context, sku string) (int, error) {
	var qty int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(stock_level, 0)
		FROM items
		WHERE UPPER(sku) = $1
	`, domain.NormalizeSKU(sku)).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

func (s *Store) HasVariants(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM item_sizes WHERE UPPER(item_sku) = $1)
			OR EXISTS (SELECT 1 FROM item_colors WHERE UPPER(item_sku) = $1)
	`, domain.NormalizeSKU(sku)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) HasActiveSizes(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM item_sizes WHERE UPPER(item_sku) = $1 AND is_active = true)
	`, domain.NormalizeSKU(sku)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) CreateSimulation(ctx context.Context, run domain.SimulationResult) error {
	profile, err := json.Marshal(run.Profile)
	if err != nil {
		return err
	}
	cart, err := json.Marshal(run.CartSKUs)
	if err != nil {
		return err
	}
	criteria, err := json.Marshal(run.Criteria)
	if err != nil {
		return err
	}
	upsells, err := json.Marshal(run.Recommendations)
	if err != nil {
		return err
	}
	rationales, err := json.Marshal(run.Rationales)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upsell_simulations (id, created_at, created_by, profile_json, cart_skus_json, criteria_json, upsells_json, rationale_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, run.ID, run.CreatedAt, nullIfEmpty(run.CreatedBy), string(profile), string(cart), string(criteria), string(upsells), string(rationales))
	return err
}

func (s *Store) ListSimulations(ctx context.Context, limit int) ([]domain.SimulationResult, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, COALESCE(created_by, ''), profile_json, cart_skus_json, criteria_json, upsells_json, rationale_json
		FROM upsell_simulations
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.SimulationResult, 0, limit)
	for rows.Next() {
		var (
			run                                           domain.SimulationResult
			profile, cart, criteria, upsells, rationales []byte
		)
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.CreatedBy, &profile, &cart, &criteria, &upsells, &rationales); err != nil {
			return nil, err
		}
		if err := unmarshalColumns(
			column{profile, &run.Profile},
			column{cart, &run.CartSKUs},
			column{criteria, &run.Criteria},
			column{upsells, &run.Recommendations},
			column{rationales, &run.Rationales},
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

type column struct {
	raw  []byte
	dest any
}

func unmarshalColumns(cols ...column) error {
	for _, col := range cols {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return err
		}
	}
	return nil
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
