// Package metrics instruments the dispatch hub with Prometheus
// collectors, one bundle per hub instance. Hubs that share a registerer
// need distinct namespaces: registering the same metric names twice on
// one registerer panics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters, gauges, and histograms the hub updates as
// connections come and go, calls are made, and envelopes are published.
type Metrics struct {
	PeerConnections       prometheus.Gauge
	CallsInflight         prometheus.Gauge
	CallDuration          prometheus.Histogram
	CallTimeoutsTotal     prometheus.Counter
	CallErrorsTotal       prometheus.Counter
	PublishTotal          *prometheus.CounterVec
	PublishDeliveredTotal *prometheus.CounterVec
	SubscriptionsActive   prometheus.Gauge
}

// New builds a Metrics bundle and registers it with reg. Passing nil
// registers against prometheus.DefaultRegisterer, matching the ecosystem's
// usual zero-config default.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWithPrefix(namespace+"_", reg)

	m := &Metrics{
		PeerConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peer_connections",
			Help: "Number of live peer connections held by this hub.",
		}),
		CallsInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calls_inflight",
			Help: "Number of synchronous calls awaiting a response.",
		}),
		CallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "call_duration_seconds",
			Help:    "Latency of synchronous calls from transmit to response or timeout.",
			Buckets: prometheus.DefBuckets,
		}),
		CallTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "call_timeouts_total",
			Help: "Number of synchronous calls that exceeded their timeout.",
		}),
		CallErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "call_errors_total",
			Help: "Number of synchronous calls that completed with an invocation error.",
		}),
		PublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "publish_total",
			Help: "Number of values published, labeled by type.",
		}, []string{"type"}),
		PublishDeliveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "publish_delivered_total",
			Help: "Number of subscriber deliveries, labeled by type and locality.",
		}, []string{"type", "locality"}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subscriptions_active",
			Help: "Number of active subscriptions held by this hub's index.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.PeerConnections, m.CallsInflight, m.CallDuration,
		m.CallTimeoutsTotal, m.CallErrorsTotal, m.PublishTotal,
		m.PublishDeliveredTotal, m.SubscriptionsActive,
	} {
		factory.MustRegister(c)
	}
	return m
}
