// Package recommendation resolves a cart into a ranked, stock-aware list of upsells.
package recommendation

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/logging"
	"cartupsell/backend/internal/metrics"
	"cartupsell/backend/internal/rules"
)

// ImageResolver finds an image path for a SKU. images.Resolver satisfies it.
type ImageResolver interface {
	Resolve(sku string) string
}

type Resolver struct {
	rules  rules.Cache
	stock  StockOracle
	images ImageResolver
	logger zerolog.Logger
}

func NewResolver(ruleCache rules.Cache, stock StockOracle, imageResolver ImageResolver, logger zerolog.Logger) *Resolver {
	return &Resolver{
		rules:  ruleCache,
		stock:  stock,
		images: imageResolver,
		logger: logging.Component(logger, "upsell"),
	}
}

func (r *Resolver) Resolve(ctx context.Context, cartSKUs []string, limit int) domain.UpsellResult {
	if limit < 1 {
		limit = 1
	}

	cart := NormalizeCart(cartSKUs)
	inCart := make(map[string]struct{}, len(cart))
	for _, sku := range cart {
		inCart[sku] = struct{}{}
	}

	set := r.rules.Get(ctx)

	picked := make([]domain.UpsellItem, 0, limit)
	taken := make(map[string]struct{}, limit)
	walk := func(skus []string) {
		for _, sku := range skus {
			if len(picked) >= limit {
				return
			}
			if _, ok := taken[sku]; ok {
				continue
			}
			meta, ok := set.Items[sku]
			if !ok {
				continue
			}
			stock := EffectiveStock(ctx, r.stock, sku)
			if stock <= 0 {
				continue
			}
			taken[sku] = struct{}{}
			picked = append(picked, r.item(ctx, sku, meta, stock))
		}
	}

	walk(candidates(set, cart, inCart))

	if len(picked) < limit {
		pool := fallbackPool(set, inCart, taken)
		before := len(picked)
		walk(pool)
		if len(picked) > before {
			metrics.UpsellFallbackFills.Inc()
		}
	}

	observe(len(picked), limit)
	r.logger.Debug().
		Strs("cart", cart).
		Int("limit", limit).
		Int("upsells", len(picked)).
		Msg("upsells resolved")

	return domain.UpsellResult{
		Upsells:       picked,
		Metadata:      set.Metadata,
		RequestedSKUs: cart,
	}
}

// NormalizeCart upper-cases and trims SKUs, dropping empties and repeats. First-seen order is kept.
func NormalizeCart(skus []string) []string {
	out := make([]string, 0, len(skus))
	seen := make(map[string]struct{}, len(skus))
	for _, raw := range skus {
		sku := domain.NormalizeSKU(raw)
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	return out
}

func candidates(set domain.RuleSet, cart []string, inCart map[string]struct{}) []string {
	out := make([]string, 0, 8)
	seen := make(map[string]struct{}, 8)
	add := func(skus ...string) {
		for _, sku := range skus {
			if sku == "" {
				continue
			}
			if _, ok := inCart[sku]; ok {
				continue
			}
			if _, ok := seen[sku]; ok {
				continue
			}
			seen[sku] = struct{}{}
			out = append(out, sku)
		}
	}

	for _, sku := range cart {
		add(set.RuleMap[sku]...)
	}
	add(set.DefaultList()...)
	if len(out) == 0 {
		add(set.Metadata.SiteTop, set.Metadata.SiteSecond)
	}
	return out
}

func fallbackPool(set domain.RuleSet, inCart, taken map[string]struct{}) []string {
	pool := make([]string, 0, len(set.Items))
	for sku := range set.Items {
		if _, ok := inCart[sku]; ok {
			continue
		}
		if _, ok := taken[sku]; ok {
			continue
		}
		pool = append(pool, sku)
	}
	slices.SortFunc(pool, func(a, b string) int {
		ma, mb := set.Items[a], set.Items[b]
		if ma.Units != mb.Units {
			if ma.Units > mb.Units {
				return -1
			}
			return 1
		}
		if c := mb.Revenue.Cmp(ma.Revenue); c != 0 {
			return c
		}
		if c := strings.Compare(strings.ToLower(ma.Name), strings.ToLower(mb.Name)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return pool
}

func (r *Resolver) item(ctx context.Context, sku string, meta domain.ItemMeta, stock int) domain.UpsellItem {
	image := meta.Image
	if r.images != nil && (strings.TrimSpace(image) == "" || strings.Contains(strings.ToLower(image), "placeholder")) {
		image = r.images.Resolve(sku)
	}
	return domain.UpsellItem{
		SKU:        sku,
		Name:       meta.Name,
		Price:      meta.Price,
		Image:      image,
		Category:   meta.Category,
		Units:      meta.Units,
		Revenue:    meta.Revenue,
		StockLevel: stock,
		HasOptions: r.stock.HasActiveSizes(ctx, sku),
	}
}

func observe(returned, limit int) {
	outcome := "filled"
	switch {
	case returned == 0:
		outcome = "empty"
	case returned < limit:
		outcome = "partial"
	}
	metrics.UpsellRequests.WithLabelValues(outcome).Inc()
	metrics.UpsellItemsReturned.Observe(float64(returned))
}
