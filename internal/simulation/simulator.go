// Package simulation runs the upsell resolver against synthetic shopper profiles
// so staff can see what a given kind of shopper would be offered.
package simulation

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/logging"
	"cartupsell/backend/internal/rules"
	"cartupsell/backend/internal/store"
)

const Source = "simulated"

var (
	Budgets = []string{domain.BudgetLow, domain.BudgetMid, domain.BudgetHigh}
	Intents = []string{domain.IntentGift, domain.IntentPersonal, domain.IntentReplacement, domain.IntentUpgrade}
	Devices = []string{domain.DeviceMobile, domain.DeviceDesktop}
)

const (
	ReasonSiteTop           = "Site top seller"
	ReasonSiteSecond        = "Site second-best seller"
	ReasonPreferredCategory = "Matches shopper's preferred category"
	ReasonCategoryLeader    = "Category leader"
	ReasonCategorySecondary = "Strong performer in category"
	ReasonFitsBudget        = "Fits shopper budget"
	ReasonCatalogPerformer  = "High-performing item in catalog"
)

// UpsellResolver is satisfied by recommendation.Resolver.
type UpsellResolver interface {
	Resolve(ctx context.Context, cartSKUs []string, limit int) domain.UpsellResult
}

type Options struct {
	// Rand picks unset profile fields. A time-seeded source is used when nil.
	Rand  *rand.Rand
	Now   func() time.Time
	NewID func() string
}

type Simulator struct {
	rules    rules.Cache
	resolver UpsellResolver
	runs     store.SimulationRepository
	logger   zerolog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
	now    func() time.Time
	newID  func() string
}

func NewSimulator(ruleCache rules.Cache, resolver UpsellResolver, runs store.SimulationRepository, logger zerolog.Logger, opts Options) *Simulator {
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Simulator{
		rules:    ruleCache,
		resolver: resolver,
		runs:     runs,
		logger:   logging.Component(logger, "simulation"),
		rand:     opts.Rand,
		now:      opts.Now,
		newID:    opts.NewID,
	}
}

func (s *Simulator) Simulate(ctx context.Context, seed domain.ShopperProfile, limit int) domain.SimulationResult {
	return s.SimulateAs(ctx, seed, limit, "")
}

// SimulateAs is Simulate with the run attributed to createdBy.
func (s *Simulator) SimulateAs(ctx context.Context, seed domain.ShopperProfile, limit int, createdBy string) domain.SimulationResult {
	if limit < 1 {
		limit = 1
	}

	set := s.rules.Get(ctx)
	profile := s.fillProfile(seed, set.Categories())

	cart := []string{}
	if leader := set.Metadata.CategoryLeaders[profile.PreferredCategory]; profile.PreferredCategory != "" && leader != "" {
		cart = append(cart, leader)
	}

	resolved := s.resolver.Resolve(ctx, cart, limit)

	result := domain.SimulationResult{
		ID:              s.newID(),
		Profile:         profile,
		CartSKUs:        cart,
		Recommendations: resolved.Upsells,
		Rationales:      Rationales(profile, resolved.Upsells, set),
		Criteria: domain.SimulationCriteria{
			Source: Source,
			Limit:  limit,
			MetadataUsed: domain.CriteriaMetadata{
				SiteTop:    set.Metadata.SiteTop,
				SiteSecond: set.Metadata.SiteSecond,
				Category:   profile.PreferredCategory,
			},
		},
		CreatedAt: s.now(),
		CreatedBy: createdBy,
	}

	if s.runs != nil {
		if err := s.runs.CreateSimulation(ctx, result); err != nil {
			s.logger.Warn().Err(err).Str("simulation_id", result.ID).Msg("simulation not persisted")
		}
	}
	return result
}

func (s *Simulator) fillProfile(seed domain.ShopperProfile, categories []string) domain.ShopperProfile {
	profile := domain.ShopperProfile{
		PreferredCategory: strings.TrimSpace(seed.PreferredCategory),
		Budget:            strings.ToLower(strings.TrimSpace(seed.Budget)),
		Intent:            strings.ToLower(strings.TrimSpace(seed.Intent)),
		Device:            strings.ToLower(strings.TrimSpace(seed.Device)),
		Region:            strings.TrimSpace(seed.Region),
	}

	sorted := slices.Clone(categories)
	slices.Sort(sorted)

	s.randMu.Lock()
	defer s.randMu.Unlock()
	if profile.PreferredCategory == "" {
		profile.PreferredCategory = s.pick(sorted)
	}
	if profile.Budget == "" {
		profile.Budget = s.pick(Budgets)
	}
	if profile.Intent == "" {
		profile.Intent = s.pick(Intents)
	}
	if profile.Device == "" {
		profile.Device = s.pick(Devices)
	}
	if profile.Region == "" {
		profile.Region = domain.DefaultRegion
	}
	return profile
}

func (s *Simulator) pick(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[s.rand.IntN(len(values))]
}

var (
	lowBudgetMax = decimal.NewFromInt(20)
	midBudgetMax = decimal.NewFromInt(40)
)

// FitsBudget reports whether price is within the spending ceiling for budget.
// High and unknown budgets have no ceiling.
func FitsBudget(budget string, price decimal.Decimal) bool {
	switch budget {
	case domain.BudgetLow:
		return price.LessThanOrEqual(lowBudgetMax)
	case domain.BudgetMid:
		return price.LessThanOrEqual(midBudgetMax)
	default:
		return true
	}
}

// Rationales explains each recommendation against the profile and the rule set it came from.
func Rationales(profile domain.ShopperProfile, items []domain.UpsellItem, set domain.RuleSet) map[string][]string {
	meta := set.Metadata
	preferred := profile.PreferredCategory
	out := make(map[string][]string, len(items))
	for _, item := range items {
		reasons := make([]string, 0, 4)
		if item.SKU == meta.SiteTop {
			reasons = append(reasons, ReasonSiteTop)
		}
		if item.SKU == meta.SiteSecond {
			reasons = append(reasons, ReasonSiteSecond)
		}
		if preferred != "" && item.Category == preferred {
			reasons = append(reasons, ReasonPreferredCategory)
		}
		if preferred != "" && meta.CategoryLeaders[preferred] == item.SKU {
			reasons = append(reasons, ReasonCategoryLeader)
		}
		if preferred != "" && meta.CategorySecondaries[preferred] == item.SKU {
			reasons = append(reasons, ReasonCategorySecondary)
		}
		if FitsBudget(profile.Budget, item.Price) {
			reasons = append(reasons, ReasonFitsBudget)
		}
		if reason := intentReason(profile, item); reason != "" {
			reasons = append(reasons, reason)
		}
		if len(reasons) == 0 {
			reasons = append(reasons, ReasonCatalogPerformer)
		}
		out[item.SKU] = reasons
	}
	return out
}
