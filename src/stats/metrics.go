package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	received      prometheus.Counter
	outOfTime     prometheus.Counter
	rejected      *prometheus.CounterVec
	delivered     prometheus.Counter
	undeliverable prometheus.Counter
	latency       prometheus.Histogram
	members       prometheus.Gauge
	pipeline      prometheus.Gauge
	standby       prometheus.Gauge
}

// newMetrics creates the collectors. A nil registry leaves them unregistered.
func newMetrics(registry prometheus.Registerer) *metrics {
	factory := promauto.With(registry)

	return &metrics{
		received: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_received_total",
			Help: "Elements received from peers",
		}),
		outOfTime: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_out_of_time_total",
			Help: "Elements rejected for their timestamp",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_rejected_total",
			Help: "Elements and quorums dropped by protocol checks",
		}, []string{"reason"}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_delivered_total",
			Help: "Elements delivered to the application",
		}),
		undeliverable: factory.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_undeliverable_total",
			Help: "Finalized elements without a handler for their type",
		}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_latency_seconds",
			Help:    "Delay between an element's timestamp and its reception",
			Buckets: prometheus.DefBuckets,
		}),
		members: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_members",
			Help: "Active members in the registry",
		}),
		pipeline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_pipeline_entries",
			Help: "Entries in the pipeline",
		}),
		standby: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_standby_entries",
			Help: "Elements waiting for their quorum",
		}),
	}
}
