// Package rules turns ranked sales facts into the rule set the upsell resolver reads,
// and keeps the built rule set in a process-wide cache.
package rules

import (
	"slices"
	"strings"

	"cartupsell/backend/internal/domain"
)

// DefaultListSize caps the fallback list used for empty carts and SKUs without rules.
const DefaultListSize = 6

// Empty is the rule set for a catalog with no sales facts.
func Empty() domain.RuleSet {
	return domain.RuleSet{
		Items:   map[string]domain.ItemMeta{},
		RuleMap: map[string][]string{domain.DefaultRuleKey: {}},
		Order:   []string{},
	}
}

// Build is a pure function of the facts. BuiltAt is left zero; the cache stamps it.
func Build(facts []domain.RankedFact) domain.RuleSet {
	ordered := make([]domain.RankedFact, 0, len(facts))
	for _, f := range facts {
		f.SKU = domain.NormalizeSKU(f.SKU)
		if f.SKU == "" {
			continue
		}
		f.Category = strings.TrimSpace(f.Category)
		ordered = append(ordered, f)
	}
	if len(ordered) == 0 {
		return Empty()
	}
	slices.SortStableFunc(ordered, func(a, b domain.RankedFact) int {
		return a.SiteRank - b.SiteRank
	})

	set := domain.RuleSet{
		Items:   make(map[string]domain.ItemMeta, len(ordered)),
		RuleMap: make(map[string][]string, len(ordered)+1),
		Metadata: domain.RuleSetMetadata{
			CategoryLeaders:     map[string]string{},
			CategorySecondaries: map[string]string{},
		},
		Order: make([]string, 0, len(ordered)),
	}

	meta := &set.Metadata
	for _, f := range ordered {
		if _, dup := set.Items[f.SKU]; dup {
			continue
		}
		set.Items[f.SKU] = domain.ItemMeta{
			Name:     f.Name,
			Price:    f.RetailPrice,
			Image:    f.ImagePath,
			Category: f.Category,
			Units:    f.TotalUnits,
			Revenue:  f.TotalRevenue,
		}
		set.Order = append(set.Order, f.SKU)

		if f.Category != "" {
			switch f.CategoryRank {
			case 1:
				setOnce(meta.CategoryLeaders, f.Category, f.SKU)
			case 2:
				setOnce(meta.CategorySecondaries, f.Category, f.SKU)
			}
		}
		switch f.SiteRank {
		case 1:
			if meta.SiteTop == "" {
				meta.SiteTop = f.SKU
			}
		case 2:
			if meta.SiteSecond == "" {
				meta.SiteSecond = f.SKU
			}
		}
	}

	for _, sku := range set.Order {
		category := set.Items[sku].Category
		list := newSKUList(sku, 4)
		if category != "" {
			list.add(meta.CategoryLeaders[category])
			list.add(meta.CategorySecondaries[category])
		}
		list.add(meta.SiteTop)
		list.add(meta.SiteSecond)
		set.RuleMap[sku] = list.skus
	}

	defaults := newSKUList("", DefaultListSize)
	defaults.add(meta.SiteTop)
	defaults.add(meta.SiteSecond)
	for _, sku := range set.Order {
		if len(defaults.skus) >= DefaultListSize {
			break
		}
		if set.Items[sku].Units > 0 {
			defaults.add(sku)
		}
	}
	set.RuleMap[domain.DefaultRuleKey] = defaults.skus

	return set
}

func setOnce(m map[string]string, key, val string) {
	if _, ok := m[key]; !ok {
		m[key] = val
	}
}

// skuList is an ordered set that never holds its owner or an empty SKU.
type skuList struct {
	owner string
	skus  []string
	seen  map[string]struct{}
}

func newSKUList(owner string, capacity int) *skuList {
	return &skuList{
		owner: owner,
		skus:  make([]string, 0, capacity),
		seen:  make(map[string]struct{}, capacity),
	}
}

func (l *skuList) add(sku string) {
	if sku == "" || sku == l.owner {
		return
	}
	if _, ok := l.seen[sku]; ok {
		return
	}
	l.seen[sku] = struct{}{}
	l.skus = append(l.skus, sku)
}
