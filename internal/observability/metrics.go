package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parametric"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// settlement service.
type Metrics struct {
	// Policy ledger.
	PoliciesCreated   prometheus.Counter
	PoliciesCancelled prometheus.Counter
	PremiumCollected  prometheus.Counter
	RefundsPaid       prometheus.Counter

	// Claims.
	ClaimsPaid     prometheus.Counter
	PayoutAmount   prometheus.Counter
	ClaimsRejected *prometheus.CounterVec // labels: reason

	// Event registry.
	EventsReported  *prometheus.CounterVec // labels: disaster_type
	EventsValidated *prometheus.CounterVec // labels: disaster_type
	Attestations    *prometheus.CounterVec // labels: outcome

	// Advisory engines.
	RiskCalculations  *prometheus.CounterVec // labels: disaster_type, outcome
	ImpactPredictions *prometheus.CounterVec // labels: disaster_type, outcome

	// Attestation intake.
	MessagesConsumed        prometheus.Counter
	IntakeRejected          prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Notifications.
	NotificationsPublished *prometheus.CounterVec // labels: kind
	NotificationFailures   prometheus.Counter

	// Weather feed.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	WeatherCache       *prometheus.CounterVec // labels: result={hit,miss}
	WeatherAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	counter := func(name, h string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help(h)})
	}
	counterVec := func(name, h string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help(h)}, labels)
	}

	return &Metrics{
		PoliciesCreated:   counter("policies_created_total", "Policies created."),
		PoliciesCancelled: counter("policies_cancelled_total", "Policies cancelled by their holder."),
		PremiumCollected:  counter("premium_collected_total", "Premium collected into the treasury, in currency units."),
		RefundsPaid:       counter("refunds_paid_total", "Cancellation refunds paid, in currency units."),

		ClaimsPaid:     counter("claims_paid_total", "Claims settled and paid."),
		PayoutAmount:   counter("payout_amount_total", "Claim payouts, in currency units."),
		ClaimsRejected: counterVec("claims_rejected_total", "Claim attempts rejected by reason.", "reason"),

		EventsReported:  counterVec("events_reported_total", "Disaster events reported.", "disaster_type"),
		EventsValidated: counterVec("events_validated_total", "Disaster events that reached quorum.", "disaster_type"),
		Attestations:    counterVec("attestations_total", "Attestation attempts by outcome.", "outcome"),

		RiskCalculations:  counterVec("risk_calculations_total", "Risk score calculations.", "disaster_type", "outcome"),
		ImpactPredictions: counterVec("impact_predictions_total", "Impact predictions.", "disaster_type", "outcome"),

		MessagesConsumed: counter("intake_messages_consumed_total", "Attestation messages read from the intake topic."),
		IntakeRejected:   counter("intake_messages_rejected_total", "Attestation messages skipped as undecodable or rejected."),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "intake_running",
			Help:      help("1 when the attestation intake is active, 0 when shut down."),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intake_batch_size",
			Help:      help("Number of attestation messages per batch."),
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intake_batch_duration_seconds",
			Help:      help("Duration of one intake batch cycle."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),

		NotificationsPublished: counterVec("notifications_published_total", "Lifecycle notifications delivered.", "kind"),
		NotificationFailures:   counter("notification_failures_total", "Notification deliveries that failed."),

		WeatherRequests: counterVec("weather_requests_total", "Weather API requests by outcome.", "outcome"),
		WeatherCache:    counterVec("weather_cache_total", "Weather cache lookups by result.", "result"),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      help("Weather API request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PoliciesCreated,
		m.PoliciesCancelled,
		m.PremiumCollected,
		m.RefundsPaid,
		m.ClaimsPaid,
		m.PayoutAmount,
		m.ClaimsRejected,
		m.EventsReported,
		m.EventsValidated,
		m.Attestations,
		m.RiskCalculations,
		m.ImpactPredictions,
		m.MessagesConsumed,
		m.IntakeRejected,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.NotificationsPublished,
		m.NotificationFailures,
		m.WeatherRequests,
		m.WeatherCache,
		m.WeatherAPIDuration,
	}
}
