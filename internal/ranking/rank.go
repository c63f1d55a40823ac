package ranking

import (
	"slices"
	"strings"

	"cartupsell/backend/internal/domain"
)

// Compare orders facts best seller first: units desc, revenue desc, name asc
// (case-insensitive). SKU asc settles the remaining ties so every rank is unique.
func Compare(a, b domain.SalesFact) int {
	if a.TotalUnits != b.TotalUnits {
		if a.TotalUnits > b.TotalUnits {
			return -1
		}
		return 1
	}
	if c := b.TotalRevenue.Cmp(a.TotalRevenue); c != 0 {
		return c
	}
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.SKU, b.SKU)
}

// Rank assigns site and category ranks in-process. Duplicate SKUs (after
// upper-casing) are merged by summing units and revenue.
func Rank(facts []domain.SalesFact) []domain.RankedFact {
	merged := make(map[string]int, len(facts))
	rows := make([]domain.SalesFact, 0, len(facts))
	for _, f := range facts {
		f.SKU = domain.NormalizeSKU(f.SKU)
		if f.SKU == "" {
			continue
		}
		f.Category = strings.TrimSpace(f.Category)
		if f.TotalUnits < 0 {
			f.TotalUnits = 0
		}
		if idx, ok := merged[f.SKU]; ok {
			rows[idx].TotalUnits += f.TotalUnits
			rows[idx].TotalRevenue = rows[idx].TotalRevenue.Add(f.TotalRevenue)
			continue
		}
		merged[f.SKU] = len(rows)
		rows = append(rows, f)
	}

	slices.SortStableFunc(rows, Compare)

	ranked := make([]domain.RankedFact, len(rows))
	categoryCounters := make(map[string]int)
	for i, f := range rows {
		categoryCounters[f.Category]++
		ranked[i] = domain.RankedFact{
			SalesFact:    f,
			SiteRank:     i + 1,
			CategoryRank: categoryCounters[f.Category],
		}
	}
	return ranked
}
