package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AuditRecordsWritten *prometheus.CounterVec
	AuditWriteFailures  prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
}

// New registers the counters on reg, or on the default registry when reg is
// nil. Tests pass their own registry to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AuditRecordsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tasktrack_audit_records_written_total",
			Help: "Total number of audit records appended, by change kind",
		}, []string{"change_kind"}),
		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tasktrack_audit_write_failures_total",
			Help: "Total number of audit writes that failed and were dropped",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tasktrack_http_requests_total",
			Help: "Total number of HTTP requests handled, by method and status",
		}, []string{"method", "status"}),
	}
}
