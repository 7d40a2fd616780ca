package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the application module.
type Metrics struct {
	ApplicationsCreated prometheus.Counter
	ApplicationsDeleted prometheus.Counter
	Decisions           *prometheus.CounterVec
	Denials             *prometheus.CounterVec
	NotifyFailures      prometheus.Counter
	AttachmentCleanups  *prometheus.CounterVec
}

// New registers the application metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ApplicationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "docdesk_applications_created_total",
			Help: "Total number of applications filed",
		}),
		ApplicationsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "docdesk_applications_deleted_total",
			Help: "Total number of applications withdrawn by their applicant",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docdesk_application_decisions_total",
			Help: "Reviewer decisions by resulting status",
		}, []string{"status"}),
		Denials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docdesk_application_denials_total",
			Help: "Application actions denied by the authorizer, by reason",
		}, []string{"action", "reason"}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "docdesk_application_notify_failures_total",
			Help: "Status change notifications that could not be published",
		}),
		AttachmentCleanups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docdesk_attachment_cleanups_total",
			Help: "Best-effort attachment removals by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.ApplicationsCreated.Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.ApplicationsDeleted.Inc()
}

func (m *Metrics) IncrementDecision(status string) {
	m.Decisions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementDenied(action, reason string) {
	m.Denials.WithLabelValues(action, reason).Inc()
}

func (m *Metrics) IncrementNotifyFailure() {
	m.NotifyFailures.Inc()
}

// ObserveCleanup records whether a best-effort attachment removal succeeded.
func (m *Metrics) ObserveCleanup(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AttachmentCleanups.WithLabelValues(outcome).Inc()
}
