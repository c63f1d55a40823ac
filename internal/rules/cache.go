package rules

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/logging"
	"cartupsell/backend/internal/metrics"
)

// Cache hands out the current rule set, building it on first use.
type Cache interface {
	Get(ctx context.Context) domain.RuleSet
	Clear()
}

// FactSource produces ranked sales facts. ranking.Ranker satisfies it.
type FactSource interface {
	ComputeRankedFacts(ctx context.Context) []domain.RankedFact
}

type FactSourceFunc func(ctx context.Context) []domain.RankedFact

func (f FactSourceFunc) ComputeRankedFacts(ctx context.Context) []domain.RankedFact {
	return f(ctx)
}

// MemoryCache holds zero or one rule set for the life of the process.
type MemoryCache struct {
	source FactSource
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.RWMutex
	current    *domain.RuleSet
	generation uint64

	group singleflight.Group
}

func NewMemoryCache(source FactSource, logger zerolog.Logger) *MemoryCache {
	return &MemoryCache{
		source: source,
		logger: logging.Component(logger, "rules"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *MemoryCache) Get(ctx context.Context) domain.RuleSet {
	c.mu.RLock()
	current := c.current
	gen := c.generation
	c.mu.RUnlock()
	if current != nil {
		return *current
	}

	// The build outlives a cancelled caller; other callers may be waiting on it.
	buildCtx := context.WithoutCancel(ctx)
	val, _, _ := c.group.Do(buildKey, func() (any, error) {
		return c.build(buildCtx, gen), nil
	})
	return *val.(*domain.RuleSet)
}

// Peek returns the cached rule set without building one.
func (c *MemoryCache) Peek() (domain.RuleSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return domain.RuleSet{}, false
	}
	return *c.current, true
}

// Generation counts Clear calls. A value read before and after some work tells
// whether the rule set was dropped in between.
func (c *MemoryCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.current = nil
	c.generation++
	c.mu.Unlock()
	c.group.Forget(buildKey)

	metrics.RuleSetClears.Inc()
	c.logger.Info().Msg("rule set cache cleared")
}

const buildKey = "ruleset"

func (c *MemoryCache) build(ctx context.Context, gen uint64) *domain.RuleSet {
	startedAt := time.Now()
	set := Build(c.source.ComputeRankedFacts(ctx))
	set.BuiltAt = c.now()

	c.mu.Lock()
	// A Clear that ran during the build wins; the result is returned but not kept.
	published := c.generation == gen
	if published {
		c.current = &set
	}
	c.mu.Unlock()

	metrics.RuleSetBuilds.Inc()
	c.logger.Info().
		Int("items", len(set.Items)).
		Int("defaults", len(set.DefaultList())).
		Bool("published", published).
		Dur("took", time.Since(startedAt)).
		Msg("rule set built")
	return &set
}
