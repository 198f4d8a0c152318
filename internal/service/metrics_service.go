package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface, the routing engine and the SLA clock.
// A nil *MetricsService is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	routingPasses     *prometheus.CounterVec
	routingGaps       *prometheus.CounterVec
	statusAdvances    *prometheus.CounterVec
	queueReconciles   *prometheus.CounterVec
	slaRuns           *prometheus.CounterVec
	slaCasesUpdated   prometheus.Counter
	slaLastSuccess    prometheus.Gauge
	calendarFallbacks *prometheus.CounterVec
	calendarRefreshes *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	routingPasses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_passes_total",
		Help: "Routing passes by outcome",
	}, []string{"outcome"})

	routingGaps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_gaps_total",
		Help: "Routing passes that left a case on no queue, by final status",
	}, []string{"status"})

	statusAdvances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "case_status_advances_total",
		Help: "Automatic case status advances",
	}, []string{"from", "to"})

	queueReconciles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_reconciliations_total",
		Help: "Queue reconciliations by outcome",
	}, []string{"outcome"})

	slaRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_runs_total",
		Help: "Daily SLA runs by outcome",
	}, []string{"outcome"})

	slaCasesUpdated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sla_cases_updated_total",
		Help: "Cases whose SLA counters were advanced",
	})

	slaLastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sla_last_success_timestamp_seconds",
		Help: "Unix time of the last successful SLA run",
	})

	calendarFallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_fallbacks_total",
		Help: "Working-day answers served without fresh holiday data, by source",
	}, []string{"source"})

	calendarRefreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_refreshes_total",
		Help: "Bank holiday refresh attempts by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses, dbQueryDuration, goroutines,
		routingPasses, routingGaps, statusAdvances, queueReconciles,
		slaRuns, slaCasesUpdated, slaLastSuccess, calendarFallbacks, calendarRefreshes,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		dbQueryDuration:   dbQueryDuration,
		routingPasses:     routingPasses,
		routingGaps:       routingGaps,
		statusAdvances:    statusAdvances,
		queueReconciles:   queueReconciles,
		slaRuns:           slaRuns,
		slaCasesUpdated:   slaCasesUpdated,
		slaLastSuccess:    slaLastSuccess,
		calendarFallbacks: calendarFallbacks,
		calendarRefreshes: calendarRefreshes,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordRoutingPass counts a routing pass; outcome is matched, gap or error.
func (m *MetricsService) RecordRoutingPass(outcome string) {
	if m == nil {
		return
	}
	m.routingPasses.WithLabelValues(outcome).Inc()
}

// RecordRoutingGap counts a case left without any queue.
func (m *MetricsService) RecordRoutingGap(status string) {
	if m == nil {
		return
	}
	m.routingGaps.WithLabelValues(status).Inc()
}

// RecordStatusAdvance counts an automatic status move made by the routing engine or reconciler.
func (m *MetricsService) RecordStatusAdvance(from, to string) {
	if m == nil {
		return
	}
	m.statusAdvances.WithLabelValues(from, to).Inc()
}

// RecordQueueReconcile counts a reconciliation; outcome is advanced, removed, noop or error.
func (m *MetricsService) RecordQueueReconcile(outcome string) {
	if m == nil {
		return
	}
	m.queueReconciles.WithLabelValues(outcome).Inc()
}

// RecordSLARun counts a daily SLA run and, on success, the cases it advanced.
func (m *MetricsService) RecordSLARun(outcome string, casesUpdated int64, at time.Time) {
	if m == nil {
		return
	}
	m.slaRuns.WithLabelValues(outcome).Inc()
	if outcome != "success" {
		return
	}
	m.slaCasesUpdated.Add(float64(casesUpdated))
	m.slaLastSuccess.Set(float64(at.Unix()))
}

// RecordCalendarFallback counts a working-day answer taken from a fallback source.
func (m *MetricsService) RecordCalendarFallback(source string) {
	if m == nil {
		return
	}
	m.calendarFallbacks.WithLabelValues(source).Inc()
}

// RecordCalendarRefresh counts a holiday refresh attempt.
func (m *MetricsService) RecordCalendarRefresh(outcome string) {
	if m == nil {
		return
	}
	m.calendarRefreshes.WithLabelValues(outcome).Inc()
}
