package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records payment settlement pool activity.
type SettlementMetrics struct {
	queueDepth prometheus.Gauge
	duration   prometheus.Histogram
	success    prometheus.Counter
	failure    prometheus.Counter
	rejected   prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payment_settlement_queue_depth",
		Help: "Payments waiting for a settlement worker.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_settlement_duration_seconds",
		Help:    "Duration of payment settlements in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	success := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_settlement_success_total",
		Help: "Payments settled successfully.",
	})
	failure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_settlement_failure_total",
		Help: "Payments settled as failed.",
	})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_settlement_rejected_total",
		Help: "Settlement submissions rejected because the queue was full.",
	})
	reg.MustRegister(queueDepth, duration, success, failure, rejected)
	return &SettlementMetrics{
		queueDepth: queueDepth,
		duration:   duration,
		success:    success,
		failure:    failure,
		rejected:   rejected,
	}
}

// SetQueueDepth records the current queue depth.
func (m *SettlementMetrics) SetQueueDepth(depth int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// ObserveDuration records how long a settlement took.
func (m *SettlementMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

// IncSuccess increments the success counter.
func (m *SettlementMetrics) IncSuccess() {
	if m == nil || m.success == nil {
		return
	}
	m.success.Inc()
}

// IncFailure increments the failure counter.
func (m *SettlementMetrics) IncFailure() {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.Inc()
}

// IncRejected increments the queue-full rejection counter.
func (m *SettlementMetrics) IncRejected() {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.Inc()
}
