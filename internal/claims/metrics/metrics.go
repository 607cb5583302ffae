package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the claims modules.
type Metrics struct {
	// Submissions rejected before the ledger, by validation kind
	ValidationRejections *prometheus.CounterVec

	// Recorded claims by decision
	Decisions *prometheus.CounterVec

	// Reservations that drove a limit below the claimed amount
	LimitExceeded prometheus.Counter

	// Ledger reserve round trip, including the row lock wait
	ReserveLatency prometheus.Histogram

	// Best-effort sink failures by sink name
	SinkFailures *prometheus.CounterVec

	// Ledger/claim disagreement detected after commit; alert on any increase
	Inconsistencies prometheus.Counter

	// Lookup cache hits and misses
	LookupCache *prometheus.CounterVec
}

// New creates and registers the claims metrics with the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the claims metrics with reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ValidationRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimverifier_validation_rejections_total",
			Help: "Claim submissions rejected by input validation, by kind",
		}, []string{"kind"}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimverifier_decisions_total",
			Help: "Recorded claims by verification decision",
		}, []string{"decision"}),

		LimitExceeded: f.NewCounter(prometheus.CounterOpts{
			Name: "claimverifier_limit_exceeded_total",
			Help: "Reservations whose amount exceeded the available limit",
		}),

		ReserveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimverifier_ledger_reserve_duration_seconds",
			Help:    "Duration of atomic ledger reservations",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		SinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimverifier_sink_failures_total",
			Help: "Report and export sink failures after commit",
		}, []string{"sink"}),

		Inconsistencies: f.NewCounter(prometheus.CounterOpts{
			Name: "claimverifier_verification_inconsistencies_total",
			Help: "Policies whose available limit disagreed with their claim rows after commit",
		}),

		LookupCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimverifier_lookup_cache_total",
			Help: "Claims-by-email cache results",
		}, []string{"result"}), // result: "hit", "miss", "stale", "error"
	}
}

func (m *Metrics) IncrementValidationRejection(kind string) {
	if m != nil {
		m.ValidationRejections.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) IncrementLimitExceeded() {
	if m != nil {
		m.LimitExceeded.Inc()
	}
}

func (m *Metrics) ObserveReserveLatency(d time.Duration) {
	if m != nil {
		m.ReserveLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementSinkFailure(sink string) {
	if m != nil {
		m.SinkFailures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncrementInconsistency() {
	if m != nil {
		m.Inconsistencies.Inc()
	}
}

func (m *Metrics) IncrementLookupCache(result string) {
	if m != nil {
		m.LookupCache.WithLabelValues(result).Inc()
	}
}
