package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRuleKey is the rule map entry used when a cart SKU has no rules or the cart is empty.
const DefaultRuleKey = "_default"

// NormalizeSKU upper-cases and trims a SKU. All SKUs inside the engine pass through here.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

type SalesFact struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	RetailPrice  decimal.Decimal `json:"retailPrice"`
	TotalUnits   int64           `json:"totalUnits"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	ImagePath    string          `json:"imagePath"`
}

type RankedFact struct {
	SalesFact
	SiteRank     int `json:"siteRank"`
	CategoryRank int `json:"categoryRank"`
}

type ItemMeta struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Category string          `json:"category"`
	Units    int64           `json:"units"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type RuleSetMetadata struct {
	SiteTop             string            `json:"siteTop,omitempty"`
	SiteSecond          string            `json:"siteSecond,omitempty"`
	CategoryLeaders     map[string]string `json:"categoryLeaders,omitempty"`
	CategorySecondaries map[string]string `json:"categorySecondaries,omitempty"`
}

// RuleSet is the cached recommendation artifact. It must not be mutated after it is built.
type RuleSet struct {
	Items    map[string]ItemMeta `json:"items"`
	RuleMap  map[string][]string `json:"ruleMap"`
	Metadata RuleSetMetadata     `json:"metadata"`
	// Order lists Items keys by site rank.
	Order   []string  `json:"order"`
	BuiltAt time.Time `json:"builtAt"`
}

// DefaultList returns the fallback recommendation list.
func (r RuleSet) DefaultList() []string {
	return r.RuleMap[DefaultRuleKey]
}

// Categories returns the distinct non-empty item categories in ranked order.
func (r RuleSet) Categories() []string {
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, sku := range r.Order {
		category := strings.TrimSpace(r.Items[sku].Category)
		if category == "" {
			continue
		}
		if _, ok := seen[category]; ok {
			continue
		}
		seen[category] = struct{}{}
		categories = append(categories, category)
	}
	return categories
}

type UpsellItem struct {
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Image      string          `json:"image"`
	Category   string          `json:"category"`
	Units      int64           `json:"units"`
	Revenue    decimal.Decimal `json:"revenue"`
	StockLevel int             `json:"stockLevel"`
	HasOptions bool            `json:"hasOptions"`
}

type UpsellRequest struct {
	CartSKUs []string `json:"cartSkus"`
	Limit    *int     `json:"limit,omitempty"`
}

type UpsellResult struct {
	Upsells       []UpsellItem    `json:"upsells"`
	Metadata      RuleSetMetadata `json:"metadata"`
	RequestedSKUs []string        `json:"requestedSkus"`
}

const (
	BudgetLow  = "low"
	BudgetMid  = "mid"
	BudgetHigh = "high"

	IntentGift        = "gift"
	IntentPersonal    = "personal"
	IntentReplacement = "replacement"
	IntentUpgrade     = "upgrade"

	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"

	DefaultRegion = "US"
)

type ShopperProfile struct {
	PreferredCategory string `json:"preferredCategory,omitempty"`
	Budget            string `json:"budget,omitempty"`
	Intent            string `json:"intent,omitempty"`
	Device            string `json:"device,omitempty"`
	Region            string `json:"region,omitempty"`
}

type SimulationRequest struct {
	Profile ShopperProfile `json:"profile"`
	Limit   *int           `json:"limit,omitempty"`
}

type CriteriaMetadata struct {
	SiteTop    string `json:"siteTop"`
	SiteSecond string `json:"siteSecond"`
	Category   string `json:"category"`
}

type SimulationCriteria struct {
	Source       string           `json:"source"`
	Limit        int              `json:"limit"`
	MetadataUsed CriteriaMetadata `json:"metadataUsed"`
}

type SimulationResult struct {
	ID              string              `json:"id"`
	Profile         ShopperProfile      `json:"profile"`
	CartSKUs        []string            `json:"cartSkus"`
	Recommendations []UpsellItem        `json:"recommendations"`
	Rationales      map[string][]string `json:"rationales"`
	Criteria        SimulationCriteria  `json:"criteria"`
	CreatedAt       time.Time           `json:"createdAt"`
	CreatedBy       string              `json:"createdBy,omitempty"`
}

type ClearRulesRequest struct {
	ManagerPIN string `json:"managerPin"`
}

type RulesStatus struct {
	Cached  bool      `json:"cached"`
	Items   int       `json:"items"`
	BuiltAt time.Time `json:"builtAt,omitempty"`
}

type Actor struct {
	Username string
	Role     string
}
