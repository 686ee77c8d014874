package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus metrics for the signal pipeline. It owns its
// own prometheus registry so multiple instances never collide on
// registration.
type Registry struct {
	registry *prometheus.Registry

	// Pipeline stage metrics
	SignalsProcessed *prometheus.CounterVec
	StageFailures    *prometheus.CounterVec
	Rejections       *prometheus.CounterVec

	// Cache performance metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Provider metrics
	ProviderAttempts *prometheus.CounterVec

	// Position metrics
	PositionsOpened prometheus.Counter
	PositionsClosed *prometheus.CounterVec
}

// NewRegistry creates a metrics registry with all pipeline metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		SignalsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionstrat_signals_processed_total",
				Help: "Total signals processed by final outcome",
			},
			[]string{"outcome"},
		),

		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionstrat_stage_failures_total",
				Help: "Total signal failures by pipeline stage",
			},
			[]string{"stage"},
		),

		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionstrat_rejections_total",
				Help: "Total expected rejections by reason",
			},
			[]string{"reason"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionstrat_cache_hits_total",
				Help: "Total cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionstrat_cache_misses_total",
				Help: "Total cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		ProviderAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionstrat_provider_attempts_total",
				Help: "Total external provider fetch attempts by provider and result",
			},
			[]string{"provider", "result"},
		),

		PositionsOpened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "optionstrat_positions_opened_total",
				Help: "Total positions opened",
			},
		),

		PositionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionstrat_positions_closed_total",
				Help: "Total positions closed by exit reason",
			},
			[]string{"reason"},
		),
	}

	r.registry.MustRegister(
		r.SignalsProcessed,
		r.StageFailures,
		r.Rejections,
		r.CacheHits,
		r.CacheMisses,
		r.ProviderAttempts,
		r.PositionsOpened,
		r.PositionsClosed,
	)

	return r
}

// Handler returns the HTTP handler exposing this registry's metrics
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying gatherer, used by tests and diagnostics
func (r *Registry) Gather() prometheus.Gatherer {
	return r.registry
}

// RecordStageFailure counts a stage-tagged signal failure
func (r *Registry) RecordStageFailure(stage string) {
	r.StageFailures.WithLabelValues(stage).Inc()
	log.Debug().Str("stage", stage).Msg("stage failure recorded")
}

// RecordCacheHit records a cache hit for the given cache type
func (r *Registry) RecordCacheHit(cacheType string) {
	r.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given cache type
func (r *Registry) RecordCacheMiss(cacheType string) {
	r.CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordProviderAttempt records one external fetch attempt outcome
func (r *Registry) RecordProviderAttempt(provider, result string) {
	r.ProviderAttempts.WithLabelValues(provider, result).Inc()
}
