package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	generationStageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panel_generation_stage_seconds",
			Help:    "Duration of generation stages (decode, scale, total).",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"stage"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_generations_total",
			Help: "Generation requests by outcome (ok or error kind).",
		},
		[]string{"outcome"},
	)

	panelRenderSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panel_render_seconds",
			Help:    "Time spent compositing and encoding one panel.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)

	panelsServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panels_served_total",
			Help: "Panels served by source (render, cache, shared).",
		},
		[]string{"source"},
	)

	panelCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panel_cache_results_total",
			Help: "Encoded panel cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Latency of backing cache operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op", "result"},
	)

	storeGenerations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_store_entries",
			Help: "Generations currently held in memory.",
		},
	)

	storeRemovals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_store_removals_total",
			Help: "Generations removed from the store by reason.",
		},
		[]string{"reason"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_events_total",
			Help: "Generation lifecycle events by type and result.",
		},
		[]string{"type", "result"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		generationStageSeconds,
		generationsTotal,
		panelRenderSeconds,
		panelsServedTotal,
		panelCacheResults,
		cacheOpDurationSeconds,
		storeGenerations,
		storeRemovals,
		eventsTotal,
		buildInfo,
	}
}

func init() {
	register(prometheus.DefaultRegisterer)
}

// Init additionally registers the service collectors with reg, so a
// dedicated metrics listener can expose them. Disabled or nil is a no-op.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	register(reg)
}

func register(reg prometheus.Registerer) {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveGenerationStage(stage string, durationSeconds float64) {
	generationStageSeconds.WithLabelValues(stage).Observe(durationSeconds)
}

// IncGeneration counts a finished generation request. outcome is "ok" or
// an error kind.
func IncGeneration(outcome string) {
	if outcome == "" {
		outcome = "ok"
	}
	generationsTotal.WithLabelValues(outcome).Inc()
}

func ObservePanelRender(durationSeconds float64) {
	panelRenderSeconds.Observe(durationSeconds)
}

func IncPanelServed(source string) {
	panelsServedTotal.WithLabelValues(source).Inc()
}

func IncPanelCacheHit()   { panelCacheResults.WithLabelValues("hit").Inc() }
func IncPanelCacheMiss()  { panelCacheResults.WithLabelValues("miss").Inc() }
func IncPanelCacheError() { panelCacheResults.WithLabelValues("error").Inc() }

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpDurationSeconds.WithLabelValues(op, result).Observe(durationSeconds)
}

func SetStoreSize(n int) {
	storeGenerations.Set(float64(n))
}

func IncStoreRemoval(reason string) {
	storeRemovals.WithLabelValues(reason).Inc()
}

func IncEvent(typ string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsTotal.WithLabelValues(typ, result).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
