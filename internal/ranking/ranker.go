package ranking

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"cartupsell/backend/internal/domain"
	"cartupsell/backend/internal/logging"
	"cartupsell/backend/internal/metrics"
	"cartupsell/backend/internal/store"
)

const (
	StrategyWindowed        = "windowed"
	StrategyActiveAggregate = "active_aggregate"
	StrategyFullAggregate   = "full_aggregate"
	StrategyNone            = "none"
)

// Strategy is one way of producing ranked facts. An error or an empty result
// hands over to the next strategy.
type Strategy struct {
	Name  string
	Fetch func(ctx context.Context) ([]domain.RankedFact, error)
}

type Options struct {
	QueryTimeout time.Duration
	// FailureThreshold is the number of consecutive data-source failures that opens the breaker.
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

type Ranker struct {
	strategies []Strategy
	breaker    *gobreaker.CircuitBreaker[[]domain.RankedFact]
	timeout    time.Duration
	logger     zerolog.Logger
}

func NewRanker(repo store.SalesRepository, opts Options, logger zerolog.Logger) *Ranker {
	return NewRankerWithStrategies(DefaultStrategies(repo), opts, logger)
}

// DefaultStrategies is the windowed query, then the active-rows aggregate, then the
// unrestricted aggregate. Both aggregates are ranked in-process.
func DefaultStrategies(repo store.SalesRepository) []Strategy {
	aggregate := func(activeOnly bool) func(ctx context.Context) ([]domain.RankedFact, error) {
		return func(ctx context.Context) ([]domain.RankedFact, error) {
			facts, err := repo.AggregateSales(ctx, activeOnly)
			if err != nil {
				return nil, err
			}
			return Rank(facts), nil
		}
	}

	return []Strategy{
		{Name: StrategyWindowed, Fetch: func(ctx context.Context) ([]domain.RankedFact, error) {
			facts, err := repo.RankedSales(ctx)
			if err != nil {
				return nil, err
			}
			return normalizeRanked(facts)
		}},
		{Name: StrategyActiveAggregate, Fetch: aggregate(true)},
		{Name: StrategyFullAggregate, Fetch: aggregate(false)},
	}
}

func NewRankerWithStrategies(strategies []Strategy, opts Options, logger zerolog.Logger) *Ranker {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	r := &Ranker{
		strategies: strategies,
		timeout:    opts.QueryTimeout,
		logger:     logging.Component(logger, "ranking"),
	}
	r.breaker = gobreaker.NewCircuitBreaker[[]domain.RankedFact](gobreaker.Settings{
		Name:    "sales-data-source",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, store.ErrUnsupported)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return r
}

// ComputeRankedFacts runs the strategies in order and returns the first non-empty
// result. It never fails: an unreachable data source yields an empty slice.
func (r *Ranker) ComputeRankedFacts(ctx context.Context) []domain.RankedFact {
	for _, strategy := range r.strategies {
		facts, err := r.run(ctx, strategy)
		if err != nil {
			r.logger.Warn().Err(err).Str("strategy", strategy.Name).Msg("ranking strategy failed")
			continue
		}
		if len(facts) == 0 {
			r.logger.Debug().Str("strategy", strategy.Name).Msg("ranking strategy returned no rows")
			continue
		}
		metrics.RankingStrategy.WithLabelValues(strategy.Name).Inc()
		r.logger.Info().Str("strategy", strategy.Name).Int("facts", len(facts)).Msg("sales ranked")
		return facts
	}

	metrics.RankingStrategy.WithLabelValues(StrategyNone).Inc()
	r.logger.Warn().Msg("no ranking strategy produced sales facts")
	return []domain.RankedFact{}
}

func (r *Ranker) run(ctx context.Context, strategy Strategy) ([]domain.RankedFact, error) {
	return r.breaker.Execute(func() ([]domain.RankedFact, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return strategy.Fetch(callCtx)
	})
}

var errInvalidRanks = errors.New("data source returned invalid ranks")

// normalizeRanked upper-cases SKUs from the data source and orders rows by site rank.
// Rows without usable ranks reject the whole result so a fallback can run.
func normalizeRanked(facts []domain.RankedFact) ([]domain.RankedFact, error) {
	out := make([]domain.RankedFact, 0, len(facts))
	seen := make(map[string]struct{}, len(facts))
	for _, f := range facts {
		f.SKU = domain.NormalizeSKU(f.SKU)
		if f.SKU == "" {
			continue
		}
		if f.SiteRank < 1 || f.CategoryRank < 1 {
			return nil, errInvalidRanks
		}
		if _, dup := seen[f.SKU]; dup {
			return nil, errInvalidRanks
		}
		seen[f.SKU] = struct{}{}
		out = append(out, f)
	}
	slices.SortStableFunc(out, func(a, b domain.RankedFact) int {
		return a.SiteRank - b.SiteRank
	})
	return out, nil
}
