// Package metrics holds the Prometheus collectors for the upsell engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpsellRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upsell_requests_total",
			Help: "Upsell resolutions by outcome (filled, partial, empty).",
		},
		[]string{"outcome"},
	)

	UpsellItemsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upsell_items_returned",
			Help:    "Number of upsell items returned per resolution.",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
		},
	)

	UpsellFallbackFills = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upsell_fallback_fills_total",
			Help: "Resolutions that needed the catalog-wide fallback fill.",
		},
	)

	RankingStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upsell_ranking_strategy_total",
			Help: "Sales ranking computations by the strategy that produced the result.",
		},
		[]string{"strategy"},
	)

	RuleSetBuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upsell_ruleset_builds_total",
			Help: "Rule set builds performed by the cache.",
		},
	)

	RuleSetClears = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upsell_ruleset_clears_total",
			Help: "Explicit rule set cache clears.",
		},
	)

	ResponseCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upsell_response_cache_hits_total",
			Help: "Upsell responses served from the response cache.",
		},
	)

	ResponseCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upsell_response_cache_misses_total",
			Help: "Upsell responses computed because the response cache had no entry.",
		},
	)
)
