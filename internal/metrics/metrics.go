package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the contact pipeline.
// All methods are safe on a nil receiver so tests can omit metrics.
type Metrics struct {
	// Submissions by outcome: accepted, invalid, duplicate, error
	Submissions *prometheus.CounterVec

	// Classified submissions by derived priority
	Classified *prometheus.CounterVec

	// Notification sends by kind (confirmation, alert, event) and result (sent, failed)
	Notifications *prometheus.CounterVec

	// Notification jobs dropped because the queue was full
	NotificationsDropped prometheus.Counter

	// Store call latency by operation
	StoreLatency *prometheus.HistogramVec

	// Archived contacts removed by the purge job
	Purged prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Contact form submissions by outcome",
		}, []string{"result"}),

		Classified: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_classified_total",
			Help: "Accepted submissions by derived priority",
		}, []string{"priority"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_notifications_total",
			Help: "Notification sends by kind and result",
		}, []string{"kind", "result"}),

		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "contact_notifications_dropped_total",
			Help: "Notification jobs dropped because the dispatch queue was full",
		}),

		StoreLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contact_store_duration_seconds",
			Help:    "Duration of contact store calls by operation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		Purged: f.NewCounter(prometheus.CounterOpts{
			Name: "contact_purged_total",
			Help: "Archived contacts deleted by the retention purge",
		}),
	}
}

// IncSubmission records a submission outcome.
func (m *Metrics) IncSubmission(result string) {
	if m != nil {
		m.Submissions.WithLabelValues(result).Inc()
	}
}

// IncClassified records the priority of an accepted submission.
func (m *Metrics) IncClassified(priority string) {
	if m != nil {
		m.Classified.WithLabelValues(priority).Inc()
	}
}

// IncNotification records the result of one notification send.
func (m *Metrics) IncNotification(kind, result string) {
	if m != nil {
		m.Notifications.WithLabelValues(kind, result).Inc()
	}
}

// IncNotificationDropped records a job rejected by a full queue.
func (m *Metrics) IncNotificationDropped() {
	if m != nil {
		m.NotificationsDropped.Inc()
	}
}

// ObserveStore records the duration of a store operation.
func (m *Metrics) ObserveStore(operation string, d time.Duration) {
	if m != nil {
		m.StoreLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// AddPurged records deleted archived contacts.
func (m *Metrics) AddPurged(n int64) {
	if m != nil && n > 0 {
		m.Purged.Add(float64(n))
	}
}
