package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"contact-intake-go/internal/model"
)

// Submission outcomes
const (
	OutcomeAccepted    = "accepted"
	OutcomeSpam        = "spam"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Submissions          *prometheus.CounterVec
	SpamScores           prometheus.Histogram
	Notifications        *prometheus.CounterVec
	NotificationTime     prometheus.Histogram
	RateLimitDenials     *prometheus.CounterVec
	StatusUpdateFailures prometheus.Counter
	InFlight             prometheus.Gauge
	Saturations          prometheus.Counter
	StaleMessages        prometheus.Counter
	MessagesByStatus     *prometheus.GaugeVec
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_intake_submissions_total",
			Help: "Total number of contact submissions by outcome",
		}, []string{"outcome"}),
		SpamScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contact_intake_spam_score",
			Help:    "Distribution of spam scores of stored messages",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_intake_notifications_total",
			Help: "Total number of notification attempts by result",
		}, []string{"result"}),
		NotificationTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "contact_intake_notification_duration_seconds",
			Help:    "Time spent delivering notifications",
			Buckets: prometheus.DefBuckets,
		}),
		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_intake_rate_limited_total",
			Help: "Total number of submissions refused by a rate limit window",
		}, []string{"window"}),
		StatusUpdateFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_intake_status_update_failures_total",
			Help: "Total number of failed status updates after notification",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "contact_intake_notifications_in_flight",
			Help: "Number of notification tasks currently running",
		}),
		Saturations: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_intake_supervisor_saturated_total",
			Help: "Total number of notification tasks started above the in-flight limit",
		}),
		StaleMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "contact_intake_stale_messages_total",
			Help: "Total number of pending messages marked failed by the sweeper",
		}),
		MessagesByStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "contact_intake_messages",
			Help: "Number of stored messages by status",
		}, []string{"status"}),
	}
}

// RateLimited records a refusal by the named window
func (m *Metrics) RateLimited(window string) {
	m.RateLimitDenials.WithLabelValues(window).Inc()
}

// Submission records the outcome of a contact submission
func (m *Metrics) Submission(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

// Notification records a finished notification attempt
func (m *Metrics) Notification(success bool, seconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.Notifications.WithLabelValues(result).Inc()
	m.NotificationTime.Observe(seconds)
}

// SetStatusCounts replaces the per-status message gauges
func (m *Metrics) SetStatusCounts(counts map[model.Status]int64) {
	for _, s := range model.Statuses {
		m.MessagesByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
