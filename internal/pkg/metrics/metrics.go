package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder groups the counters exported by the booking service.
type Recorder struct {
	Operations             *prometheus.CounterVec
	Rejections             *prometheus.CounterVec
	NotificationDeliveries *prometheus.CounterVec
}

// NewRecorder registers the counters on reg. A nil reg gets a private registry,
// which keeps tests from colliding on the global default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labflow",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking lifecycle operations by outcome.",
		}, []string{"operation", "outcome"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labflow",
			Subsystem: "booking",
			Name:      "check_rejections_total",
			Help:      "Conflict checker rejections by reason.",
		}, []string{"reason"}),
		NotificationDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labflow",
			Subsystem: "notification",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(r.Operations, r.Rejections, r.NotificationDeliveries)
	return r
}

// Operation counts one lifecycle call. outcome is "ok" or an error kind.
func (r *Recorder) Operation(op, outcome string) {
	if r == nil {
		return
	}
	r.Operations.WithLabelValues(op, outcome).Inc()
}

// Rejection counts one negative conflict check.
func (r *Recorder) Rejection(reason string) {
	if r == nil {
		return
	}
	r.Rejections.WithLabelValues(reason).Inc()
}

// Notification counts one delivery attempt.
func (r *Recorder) Notification(result string) {
	if r == nil {
		return
	}
	r.NotificationDeliveries.WithLabelValues(result).Inc()
}
