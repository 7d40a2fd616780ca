package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the document module.
type Metrics struct {
	DocumentsCreated prometheus.Counter
	DocumentsDeleted prometheus.Counter
	DocumentsExpired prometheus.Counter
	Denials          *prometheus.CounterVec
	ListDuration     prometheus.Histogram
}

// New registers the document metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "docdesk_documents_created_total",
			Help: "Total number of documents posted",
		}),
		DocumentsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "docdesk_documents_deleted_total",
			Help: "Total number of documents deleted by their owner",
		}),
		DocumentsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "docdesk_documents_marked_expired_total",
			Help: "Total number of documents manually marked expired",
		}),
		Denials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docdesk_document_denials_total",
			Help: "Document actions denied by the authorizer, by reason",
		}, []string{"action", "reason"}),
		ListDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docdesk_document_list_duration_seconds",
			Help:    "Duration of document listing queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.DocumentsCreated.Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.DocumentsDeleted.Inc()
}

func (m *Metrics) IncrementExpired() {
	m.DocumentsExpired.Inc()
}

func (m *Metrics) IncrementDenied(action, reason string) {
	m.Denials.WithLabelValues(action, reason).Inc()
}

// ObserveList records the duration of a List call started at start.
func (m *Metrics) ObserveList(start time.Time) {
	m.ListDuration.Observe(time.Since(start).Seconds())
}
