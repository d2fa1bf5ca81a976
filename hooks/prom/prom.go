// Package promhook exports observations as Prometheus metrics.
package promhook

import (
	"github.com/prometheus/client_golang/prometheus"

	rc "github.com/unkn0wn-root/recordcache"
)

// Observer counts calls and records their latency by operation and outcome.
type Observer struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ rc.Observer = (*Observer)(nil)

// New registers the collectors with reg (nil skips registration).
func New(reg prometheus.Registerer) *Observer {
	o := &Observer{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recordcache",
			Name:      "operations_total",
			Help:      "Instrumented calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recordcache",
			Name:      "operation_duration_seconds",
			Help:      "Latency of instrumented calls.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"operation", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(o.calls, o.duration)
	}
	return o
}

func (o *Observer) OperationObserved(ob rc.Observation) {
	outcome := string(ob.Outcome)
	o.calls.WithLabelValues(ob.Operation, outcome).Inc()
	o.duration.WithLabelValues(ob.Operation, outcome).Observe(ob.Duration.Seconds())
}
