package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks the service's Prometheus metrics. All record methods are
// nil-safe so wiring metrics stays optional for workers and tests.
type Metrics struct {
	AuthAttempts      *prometheus.CounterVec
	AccountLockouts   prometheus.Counter
	SessionsIssued    prometheus.Counter
	SessionsSwept     prometheus.Counter
	SecurityEvents    *prometheus.CounterVec
	SnapshotsIngested prometheus.Counter
	HTTPDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the metric set. Registration panics on
// duplicate names, which only happens on wiring mistakes at startup.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbfleet_auth_attempts_total",
				Help: "Authentication attempts by credential source and outcome",
			},
			[]string{"method", "outcome"},
		),
		AccountLockouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dbfleet_account_lockouts_total",
				Help: "Local accounts transitioned into the locked state",
			},
		),
		SessionsIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dbfleet_sessions_issued_total",
				Help: "Sessions minted after successful authentication",
			},
		),
		SessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dbfleet_sessions_swept_total",
				Help: "Expired sessions removed by sweeps and lazy eviction",
			},
		),
		SecurityEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbfleet_security_events_total",
				Help: "Security events raised during scan reconciliation",
			},
			[]string{"event_type"},
		),
		SnapshotsIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dbfleet_snapshots_ingested_total",
				Help: "Per-server account snapshots ingested",
			},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dbfleet_http_request_duration_seconds",
				Help:    "HTTP request duration by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(
		m.AuthAttempts,
		m.AccountLockouts,
		m.SessionsIssued,
		m.SessionsSwept,
		m.SecurityEvents,
		m.SnapshotsIngested,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) RecordAuthAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) RecordLockout() {
	if m == nil {
		return
	}
	m.AccountLockouts.Inc()
}

func (m *Metrics) RecordSessionIssued() {
	if m == nil {
		return
	}
	m.SessionsIssued.Inc()
}

func (m *Metrics) RecordSessionsSwept(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(count))
}

func (m *Metrics) RecordSecurityEvent(eventType string) {
	if m == nil {
		return
	}
	m.SecurityEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RecordSnapshotIngested() {
	if m == nil {
		return
	}
	m.SnapshotsIngested.Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}
