package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the append path.
type Metrics struct {
	Appended        *prometheus.CounterVec
	Degraded        *prometheus.CounterVec
	AppendDuration  prometheus.Histogram
	BreakerState    prometheus.Gauge
	BreakerShedded  prometheus.Counter
	SinkForwardErrs prometheus.Counter
	SinkDropped     prometheus.Counter
}

// NewMetrics creates and registers recorder metrics. Register once per
// process; promauto registration panics on duplicates.
func NewMetrics() *Metrics {
	return &Metrics{
		Appended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_audit_appended_total",
			Help: "Total audit records durably appended, by stream",
		}, []string{"stream"}),
		Degraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_audit_degraded_total",
			Help: "Total audit records lost to store failures or an open circuit, by stream",
		}, []string{"stream"}),
		AppendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_audit_append_duration_seconds",
			Help:    "Latency of audit store appends",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_audit_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		BreakerShedded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_circuit_breaker_shedded_total",
			Help: "Total appends skipped because the circuit breaker was open",
		}),
		SinkForwardErrs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_sink_forward_errors_total",
			Help: "Total security events that failed to forward to the SIEM sink",
		}),
		SinkDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_sink_dropped_total",
			Help: "Total security events dropped because the sink queue was full",
		}),
	}
}

func (m *Metrics) observeAppend(stream string, seconds float64) {
	if m == nil {
		return
	}
	m.Appended.WithLabelValues(stream).Inc()
	m.AppendDuration.Observe(seconds)
}

func (m *Metrics) incDegraded(stream string) {
	if m == nil {
		return
	}
	m.Degraded.WithLabelValues(stream).Inc()
}

func (m *Metrics) incShedded(stream string) {
	if m == nil {
		return
	}
	m.BreakerShedded.Inc()
	m.Degraded.WithLabelValues(stream).Inc()
}

func (m *Metrics) setBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}

func (m *Metrics) incSinkForwardErr() {
	if m == nil {
		return
	}
	m.SinkForwardErrs.Inc()
}

func (m *Metrics) incSinkDropped() {
	if m == nil {
		return
	}
	m.SinkDropped.Inc()
}
