package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TenantsCreated         prometheus.Counter
	AuditsScheduled        prometheus.Counter
	Reconciliations        *prometheus.CounterVec
	CertificationsIssued   prometheus.Counter
	CertificationsRevoked  prometheus.Counter
	DocumentsGenerated     prometheus.Counter
	OverdueSurveillance    prometheus.Gauge
	ScheduledSurveillance  prometheus.Gauge
	RequestDuration        *prometheus.HistogramVec
	TemplateGatewayErrors  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_tenants_created_total",
			Help: "Total number of certification body tenants created",
		}),
		AuditsScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_audits_scheduled_total",
			Help: "Total number of audits scheduled",
		}),
		Reconciliations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certo_certification_reconciliations_total",
			Help: "Certification find-or-create outcomes",
		}, []string{"outcome"}), // found | created | failed
		CertificationsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_certifications_issued_total",
			Help: "Total number of certificates issued",
		}),
		CertificationsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_certifications_revoked_total",
			Help: "Total number of certificates revoked",
		}),
		DocumentsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certo_documents_generated_total",
			Help: "Total number of certificate documents rendered",
		}),
		OverdueSurveillance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "certo_surveillance_overdue",
			Help: "Certifications with at least one overdue surveillance milestone",
		}),
		ScheduledSurveillance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "certo_surveillance_scheduled",
			Help: "Certifications with upcoming surveillance milestones and none overdue",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certo_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		TemplateGatewayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certo_template_gateway_errors_total",
			Help: "Template rendering gateway failures by classified status class",
		}, []string{"class"}),
	}
}

// IncrementReconciliation records a reconcile outcome ("found", "created", "failed").
func (m *Metrics) IncrementReconciliation(outcome string) {
	m.Reconciliations.WithLabelValues(outcome).Inc()
}
