package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Poll loop metrics
	ItemsSeenTotal *prometheus.CounterVec
	RepliesTotal   *prometheus.CounterVec
	SkipsTotal     *prometheus.CounterVec
	FailuresTotal  *prometheus.CounterVec
	CyclesTotal    prometheus.Counter

	// Directory lookup metrics
	LookupsTotal          *prometheus.CounterVec
	LookupDurationSeconds *prometheus.HistogramVec

	// Outbound HTTP metrics
	ScraperRequestsTotal   *prometheus.CounterVec
	ScraperDurationSeconds *prometheus.HistogramVec
	HTTPErrorsTotal        *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterWaitDuration *prometheus.HistogramVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Ledger metrics
	LedgerEntries      prometheus.Gauge
	LedgerBackupsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ItemsSeenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_items_seen_total",
				Help: "Total number of stream items pulled by stream",
			},
			[]string{"stream"}, // stream: submissions, inbox
		),

		RepliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_replies_total",
				Help: "Total number of replies attempted by stream and status",
			},
			[]string{"stream", "status"}, // status: success, error
		),

		SkipsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_skips_total",
				Help: "Total number of items skipped by stream and reason",
			},
			[]string{"stream", "reason"}, // reason: no_mention, already_replied, no_courses, private_message, no_trigger
		),

		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_failures_total",
				Help: "Total number of swallowed poll-loop failures by stream and failing operation",
			},
			[]string{"stream", "operation"}, // operation: forum:reply, forum:listing, ledger:append, unknown
		),

		CyclesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "goose_poll_cycles_total",
				Help: "Total number of round-robin poll cycles",
			},
		),

		LookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_lookups_total",
				Help: "Total number of course directory lookups by provider and status",
			},
			[]string{"provider", "status"}, // status: found, not_found, error
		),

		LookupDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goose_lookup_duration_seconds",
				Help:    "Course directory lookup duration in seconds by provider",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),

		ScraperRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_http_requests_total",
				Help: "Total number of outbound HTTP requests by client and status",
			},
			[]string{"module", "status"}, // status: success, error, timeout, not_found
		),

		ScraperDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goose_http_duration_seconds",
				Help:    "Outbound HTTP request duration in seconds by client, including retries",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"module"}, // module: forum, uwapi, calendar
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: timeout, rate_limit, unauthorized, server
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_cache_hits_total",
				Help: "Total number of cache hits by module",
			},
			[]string{"module"},
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_cache_misses_total",
				Help: "Total number of cache misses by module",
			},
			[]string{"module"},
		),

		RateLimiterWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goose_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for a reply cooldown token by limiter",
				Buckets: []float64{0.001, 0.1, 1, 10, 30, 60, 180, 300, 540, 900},
			},
			[]string{"limiter"}, // limiter: submissions, inbox
		),

		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_singleflight_dedup_total",
				Help: "Total number of deduplicated lookups (callers that waited instead of executing)",
			},
			[]string{"module"},
		),

		LedgerEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "goose_ledger_entries",
				Help: "Number of submission ids recorded in the reply ledger",
			},
		),

		LedgerBackupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goose_ledger_backups_total",
				Help: "Total number of ledger snapshot uploads by status",
			},
			[]string{"status"}, // status: success, error, skipped
		),
	}
}

// RecordItemSeen records one item pulled from a stream
func (m *Metrics) RecordItemSeen(stream string) {
	m.ItemsSeenTotal.WithLabelValues(stream).Inc()
}

// RecordReply records a reply attempt
func (m *Metrics) RecordReply(stream, status string) {
	m.RepliesTotal.WithLabelValues(stream, status).Inc()
}

// RecordSkip records an item that produced no reply
func (m *Metrics) RecordSkip(stream, reason string) {
	m.SkipsTotal.WithLabelValues(stream, reason).Inc()
}

// RecordFailure records a failure the poll loop logged and skipped
func (m *Metrics) RecordFailure(stream, operation string) {
	m.FailuresTotal.WithLabelValues(stream, operation).Inc()
}

// RecordCycle records a completed round-robin cycle
func (m *Metrics) RecordCycle() {
	m.CyclesTotal.Inc()
}

// RecordLookup records a directory lookup result
func (m *Metrics) RecordLookup(provider, status string, duration float64) {
	m.LookupsTotal.WithLabelValues(provider, status).Inc()
	m.LookupDurationSeconds.WithLabelValues(provider).Observe(duration)
}

// RecordScraperRequest records an outbound request with status
func (m *Metrics) RecordScraperRequest(module, status string, duration float64) {
	m.ScraperRequestsTotal.WithLabelValues(module, status).Inc()
	m.ScraperDurationSeconds.WithLabelValues(module).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(module string) {
	m.CacheHitsTotal.WithLabelValues(module).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(module string) {
	m.CacheMissesTotal.WithLabelValues(module).Inc()
}

// RecordRateLimiterWait records time spent waiting for a cooldown token
func (m *Metrics) RecordRateLimiterWait(limiter string, duration float64) {
	m.RateLimiterWaitDuration.WithLabelValues(limiter).Observe(duration)
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(module string) {
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}

// SetLedgerEntries updates the ledger size gauge
func (m *Metrics) SetLedgerEntries(n int) {
	m.LedgerEntries.Set(float64(n))
}

// RecordLedgerBackup records a snapshot upload outcome
func (m *Metrics) RecordLedgerBackup(status string) {
	m.LedgerBackupsTotal.WithLabelValues(status).Inc()
}
