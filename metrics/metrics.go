package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Projection outcomes
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeRetry   = "retry"
	OutcomeFailed  = "failed"
)

// Timer observes the time elapsed since it was started
type Timer interface {
	ObserveDuration()
}

type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// Metrics holds the Prometheus collectors of the portal service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	repoLoadDuration     *prometheus.HistogramVec
	repoSaveDuration     *prometheus.HistogramVec
	eventsAppended       *prometheus.CounterVec
	concurrencyConflicts *prometheus.CounterVec

	projectionDuration *prometheus.HistogramVec
	projectionEvents   *prometheus.CounterVec
	projectionGaps     *prometheus.CounterVec
	unprocessedEvents  prometheus.Gauge
	failedEvents       prometheus.Gauge

	commandsTotal *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec

	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	dbDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		repoLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_repo_load_duration_seconds",
			Help:    "Aggregate load latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		repoSaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_repo_save_duration_seconds",
			Help:    "Aggregate save latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_events_appended_total",
			Help: "Total number of events appended",
		}, []string{"aggregate_type"}),

		concurrencyConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_concurrency_conflicts_total",
			Help: "Total number of optimistic concurrency failures",
		}, []string{"aggregate_type"}),

		projectionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_projection_duration_seconds",
			Help:    "Event projection latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"event_type"}),

		projectionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_projection_events_total",
			Help: "Total number of projected events by outcome",
		}, []string{"event_type", "outcome"}),

		projectionGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_projection_gaps_total",
			Help: "Total number of events whose prior event was never projected",
		}, []string{"aggregate_type"}),

		unprocessedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_unprocessed_events",
			Help: "Events waiting to be projected",
		}),

		failedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_failed_events",
			Help: "Events flagged as failed by the projection",
		}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_commands_total",
			Help: "Total number of handled commands",
		}, []string{"command_type", "success"}),

		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_cache_hits_total",
			Help: "Total number of cache hits",
		}, []string{"cache"}),

		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_cache_misses_total",
			Help: "Total number of cache misses",
		}, []string{"cache"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"method", "path"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		dbDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_db_query_duration_seconds",
			Help:    "Database statement latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"operation", "table"}),
	}

	reg.MustRegister(
		m.repoLoadDuration,
		m.repoSaveDuration,
		m.eventsAppended,
		m.concurrencyConflicts,
		m.projectionDuration,
		m.projectionEvents,
		m.projectionGaps,
		m.unprocessedEvents,
		m.failedEvents,
		m.commandsTotal,
		m.cacheHits,
		m.cacheMisses,
		m.httpDuration,
		m.httpRequests,
		m.dbDuration,
	)

	return m
}

func (m *Metrics) RepoLoadDuration(aggType string) Timer {
	if m == nil {
		return nopTimer{}
	}
	return newTimer(m.repoLoadDuration.WithLabelValues(aggType))
}

func (m *Metrics) RepoSaveDuration(aggType string) Timer {
	if m == nil {
		return nopTimer{}
	}
	return newTimer(m.repoSaveDuration.WithLabelValues(aggType))
}

func (m *Metrics) EventsAppended(aggType string, count int) {
	if m == nil {
		return
	}
	m.eventsAppended.WithLabelValues(aggType).Add(float64(count))
}

func (m *Metrics) ConcurrencyConflict(aggType string) {
	if m == nil {
		return
	}
	m.concurrencyConflicts.WithLabelValues(aggType).Inc()
}

func (m *Metrics) ProjectionDuration(eventType string) Timer {
	if m == nil {
		return nopTimer{}
	}
	return newTimer(m.projectionDuration.WithLabelValues(eventType))
}

// ProjectionProcessed counts one projected event by outcome
func (m *Metrics) ProjectionProcessed(eventType, outcome string) {
	if m == nil {
		return
	}
	m.projectionEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) ProjectionGap(aggType string) {
	if m == nil {
		return
	}
	m.projectionGaps.WithLabelValues(aggType).Inc()
}

// SetBacklog reports the projection backlog
func (m *Metrics) SetBacklog(unprocessed, failed int64) {
	if m == nil {
		return
	}
	m.unprocessedEvents.Set(float64(unprocessed))
	m.failedEvents.Set(float64(failed))
}

func (m *Metrics) CommandHandled(commandType string, success bool) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(commandType, strconv.FormatBool(success)).Inc()
}

func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// HTTPRequest records one served request
func (m *Metrics) HTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// DBQuery records one database statement
func (m *Metrics) DBQuery(operation, table string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
