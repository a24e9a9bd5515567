package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification attempts, the session cache
// and provider calls. All methods are nil-safe.
type Metrics struct {
	AttemptsStarted   *prometheus.CounterVec
	Outcomes          *prometheus.CounterVec
	Signals           *prometheus.CounterVec
	DuplicateSignals  *prometheus.CounterVec
	DroppedSignals    *prometheus.CounterVec
	PollErrors        prometheus.Counter
	CacheLookups      *prometheus.CounterVec
	ProviderLatency   *prometheus.HistogramVec
	ResolutionLatency prometheus.Histogram
	ActiveAttempts    prometheus.Gauge
}

// New creates the metrics and registers them with reg. A nil reg leaves the
// collectors unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AttemptsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_attempts_started_total",
			Help: "Verification attempts started by flow",
		}, []string{"flow"}),

		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_attempt_outcomes_total",
			Help: "Settled verification attempts by outcome",
		}, []string{"outcome"}), // approved, cache_hit, declined, cancelled, expired, failed

		Signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_signals_total",
			Help: "Status signals observed by channel and status",
		}, []string{"channel", "status"}),

		DuplicateSignals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_signals_suppressed_total",
			Help: "Terminal signals ignored because the attempt was already settled",
		}, []string{"channel"}),

		DroppedSignals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_signals_dropped_total",
			Help: "Signals discarded before reconciliation",
		}, []string{"channel", "reason"}), // reason: malformed, origin, foreign_session, unconfirmed, buffer_full

		PollErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "verigate_poll_errors_total",
			Help: "Provider status polls that failed and were retried on the next tick",
		}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_cache_lookups_total",
			Help: "Session cache lookups by backend and result",
		}, []string{"backend", "result"}), // result: hit, miss, expired

		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verigate_provider_request_duration_seconds",
			Help:    "Duration of session provider calls by operation",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "result"}),

		ResolutionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "verigate_attempt_resolution_seconds",
			Help:    "Time from session creation to terminal signal",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		ActiveAttempts: f.NewGauge(prometheus.GaugeOpts{
			Name: "verigate_attempts_active",
			Help: "Attempts currently waiting for a terminal signal",
		}),
	}
}

func (m *Metrics) IncAttemptStarted(flow string) {
	if m != nil {
		m.AttemptsStarted.WithLabelValues(flow).Inc()
	}
}

func (m *Metrics) IncOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncSignal(channel, status string) {
	if m != nil {
		m.Signals.WithLabelValues(channel, status).Inc()
	}
}

func (m *Metrics) IncDuplicate(channel string) {
	if m != nil {
		m.DuplicateSignals.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) IncDropped(channel, reason string) {
	if m != nil {
		m.DroppedSignals.WithLabelValues(channel, reason).Inc()
	}
}

func (m *Metrics) IncPollError() {
	if m != nil {
		m.PollErrors.Inc()
	}
}

func (m *Metrics) IncCacheLookup(backend, result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(backend, result).Inc()
	}
}

func (m *Metrics) ObserveProvider(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProviderLatency.WithLabelValues(operation, result).Observe(d.Seconds())
}

func (m *Metrics) ObserveResolution(d time.Duration) {
	if m != nil {
		m.ResolutionLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) AttemptOpened() {
	if m != nil {
		m.ActiveAttempts.Inc()
	}
}

func (m *Metrics) AttemptSettled() {
	if m != nil {
		m.ActiveAttempts.Dec()
	}
}
