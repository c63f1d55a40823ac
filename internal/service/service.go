package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"cartupsell/backend/internal/cache"
	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/logging"
	"cartupsell/backend/internal/metrics"
	"cartupsell/backend/internal/recommendation"
	"cartupsell/backend/internal/rules"
	"cartupsell/backend/internal/simulation"
	"cartupsell/backend/internal/store"
)

const (
	RoleAdmin = "admin"

	DefaultUpsellLimit = 4
	MaxUpsellLimit     = 24
	DefaultListLimit   = 20
	MaxListLimit       = 200
)

var ErrAdminRequired = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// RuleStore is a rules.Cache that can also report its state without building.
type RuleStore interface {
	rules.Cache
	Peek() (domain.RuleSet, bool)
	Generation() uint64
}

type Options struct {
	DefaultLimit int
	ResponseTTL  time.Duration
}

type Service struct {
	rules     RuleStore
	resolver  *recommendation.Resolver
	simulator *simulation.Simulator
	runs      store.SimulationRepository
	responses cache.UpsellCache
	logger    zerolog.Logger

	defaultLimit int
	responseTTL  time.Duration
}

func New(
	ruleStore RuleStore,
	resolver *recommendation.Resolver,
	simulator *simulation.Simulator,
	runs store.SimulationRepository,
	responses cache.UpsellCache,
	logger zerolog.Logger,
	opts Options,
) *Service {
	if responses == nil {
		responses = cache.NoopUpsellCache{}
	}
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = DefaultUpsellLimit
	}
	if opts.ResponseTTL <= 0 {
		opts.ResponseTTL = 15 * time.Second
	}

	return &Service{
		rules:        ruleStore,
		resolver:     resolver,
		simulator:    simulator,
		runs:         runs,
		responses:    responses,
		logger:       logging.Component(logger, "service"),
		defaultLimit: opts.DefaultLimit,
		responseTTL:  opts.ResponseTTL,
	}
}

// Upsells resolves a cart, serving repeated identical carts from the response cache.
func (s *Service) Upsells(ctx context.Context, req domain.UpsellRequest) (domain.UpsellResult, error) {
	limit := s.limitOrDefault(req.Limit)
	cart := recommendation.NormalizeCart(req.CartSKUs)
	key := cache.BuildKey(cart, limit)

	cached, ok, err := s.responses.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("response cache read failed")
	}
	if err == nil && ok && cached != nil {
		metrics.ResponseCacheHits.Inc()
		return *cached, nil
	}
	metrics.ResponseCacheMisses.Inc()

	gen := s.rules.Generation()
	result := s.resolver.Resolve(ctx, cart, limit)
	// Results resolved against a rule set cleared mid-request are not cached.
	if s.rules.Generation() != gen {
		return result, nil
	}
	if err := s.responses.Set(ctx, key, &result, s.responseTTL); err != nil {
		s.logger.Warn().Err(err).Msg("response cache write failed")
	}
	return result, nil
}

func (s *Service) Simulate(ctx context.Context, req domain.SimulationRequest) (domain.SimulationResult, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.SimulationResult{}, err
	}
	return s.simulator.SimulateAs(ctx, req.Profile, s.limitOrDefault(req.Limit), actor.Username), nil
}

func (s *Service) ListSimulations(ctx context.Context, limit int) ([]domain.SimulationResult, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.runs.ListSimulations(ctx, limit)
}

// Rules returns the current rule set, building it when the cache is cold.
func (s *Service) Rules(ctx context.Context) (domain.RuleSet, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.RuleSet{}, err
	}
	return s.rules.Get(ctx), nil
}

func (s *Service) RulesStatus(ctx context.Context) (domain.RulesStatus, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.RulesStatus{}, err
	}
	set, ok := s.rules.Peek()
	if !ok {
		return domain.RulesStatus{}, nil
	}
	return domain.RulesStatus{Cached: true, Items: len(set.Items), BuiltAt: set.BuiltAt}, nil
}

// ClearRules drops the cached rule set and every response computed from it.
func (s *Service) ClearRules(ctx context.Context) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}

	s.rules.Clear()
	if err := s.responses.Flush(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("response cache flush failed")
	}
	s.logger.Info().Str("actor", actor.Username).Msg("upsell rules cleared")
	return nil
}

func (s *Service) limitOrDefault(limit *int) int {
	if limit == nil {
		return s.defaultLimit
	}
	switch {
	case *limit < 1:
		return 1
	case *limit > MaxUpsellLimit:
		s.logger.Info().Int("requested", *limit).Int("limit", MaxUpsellLimit).Msg("upsell limit capped")
		return MaxUpsellLimit
	}
	return *limit
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != RoleAdmin {
		return domain.Actor{}, ErrAdminRequired
	}
	return actor, nil
}
