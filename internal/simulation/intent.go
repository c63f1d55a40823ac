package simulation

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"cartupsell/backend/internal/domain"
)

// ReasonIntentPrefix starts the rationale added when an item scores well for the shopper's intent.
const ReasonIntentPrefix = "Matches shopping intent: "

const (
	intentBadgeThreshold = 2.0

	weightKeyword         = 2.5
	weightCategory        = 3.5
	weightNegativeKeyword = 2.0
	weightUpgradeLabel    = 2.5
	weightReplaceLabel    = 3.0
	weightGiftPrice       = 1.5
	weightGiftSet         = 1.0
)

type intentProfile struct {
	label      string
	keywords   []string
	negatives  []string
	categories []string
}

var intentProfiles = map[string]intentProfile{
	domain.IntentGift: {
		label:      "Gift",
		keywords:   []string{"gift", "set", "bundle", "present", "pack", "box"},
		negatives:  []string{"refill", "replacement"},
		categories: []string{"gifts", "gift sets", "bundles"},
	},
	domain.IntentPersonal: {
		label: "Personal use",
	},
	domain.IntentReplacement: {
		label:      "Replacement",
		keywords:   []string{"refill", "replacement", "spare", "recharge", "insert"},
		negatives:  []string{"gift", "decor"},
		categories: []string{"supplies", "refills", "consumables"},
	},
	domain.IntentUpgrade: {
		label:     "Upgrade",
		keywords:  []string{"upgrade", "pro", "deluxe", "premium", "xl", "plus", "ultimate"},
		negatives: []string{"refill"},
	},
}

var (
	upgradeLabel = regexp.MustCompile(`(?i)\b(pro|deluxe|premium|xl|plus|ultimate)\b`)
	replaceLabel = regexp.MustCompile(`(?i)\b(refill|replacement|spare|insert|recharge)\b`)
	giftSetLabel = regexp.MustCompile(`(?i)\b(set|bundle|pack|box)\b`)
)

// giftPriceRange is the price band a gift is expected to fall in for each budget.
var giftPriceRange = map[string][2]decimal.Decimal{
	domain.BudgetLow:  {decimal.NewFromInt(8), decimal.NewFromInt(20)},
	domain.BudgetMid:  {decimal.NewFromInt(15), decimal.NewFromInt(40)},
	domain.BudgetHigh: {decimal.NewFromInt(35), decimal.NewFromInt(120)},
}

// IntentScore rates how well item fits the shopper's intent from its name, category and price.
// Unknown intents score zero.
func IntentScore(profile domain.ShopperProfile, item domain.UpsellItem) float64 {
	intent, ok := intentProfiles[profile.Intent]
	if !ok {
		return 0
	}
	name := strings.ToLower(item.Name)
	category := strings.ToLower(item.Category)

	score := 0.0
	for _, kw := range intent.keywords {
		if strings.Contains(name, kw) {
			score += weightKeyword
		}
	}
	for _, c := range intent.categories {
		if category != "" && strings.Contains(category, c) {
			score += weightCategory
		}
	}

	switch profile.Intent {
	case domain.IntentUpgrade:
		if upgradeLabel.MatchString(name) {
			score += weightUpgradeLabel
		}
	case domain.IntentReplacement:
		if replaceLabel.MatchString(name) {
			score += weightReplaceLabel
		}
	case domain.IntentGift:
		band, ok := giftPriceRange[profile.Budget]
		if !ok {
			band = giftPriceRange[domain.BudgetHigh]
		}
		if item.Price.GreaterThanOrEqual(band[0]) && item.Price.LessThanOrEqual(band[1]) {
			score += weightGiftPrice
		}
		if giftSetLabel.MatchString(name) {
			score += weightGiftSet
		}
	}

	for _, bad := range intent.negatives {
		if strings.Contains(name, bad) {
			score -= weightNegativeKeyword
		}
	}
	return score
}

// intentReason returns the intent rationale for item, or "" when it does not score high enough.
func intentReason(profile domain.ShopperProfile, item domain.UpsellItem) string {
	if IntentScore(profile, item) < intentBadgeThreshold {
		return ""
	}
	return ReasonIntentPrefix + intentProfiles[profile.Intent].label
}
