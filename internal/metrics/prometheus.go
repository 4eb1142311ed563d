package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hunter"

type promCollectors struct {
	trades         *prometheus.CounterVec
	evaluations    prometheus.Counter
	candidates     prometheus.Counter
	skipped        *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	registryErrors prometheus.Counter
	liquidity      prometheus.Histogram
	sendLatency    prometheus.Histogram
	wsConnected    prometheus.Gauge
	queueDepth     prometheus.Gauge
}

func newPromCollectors(reg prometheus.Registerer) *promCollectors {
	f := promauto.With(reg)

	return &promCollectors{
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_received_total",
			Help:      "Trade events received from the feed, by side.",
		}, []string{"side"}),
		evaluations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "BUY events evaluated against the subscriber registry.",
		}),
		candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Subscribers returned by candidate queries.",
		}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_skipped_total",
			Help:      "Candidates not alerted, by reason.",
		}, []string{"reason"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert dispatch attempts, by delivery result.",
		}, []string{"result"}),
		registryErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_errors_total",
			Help:      "Failed subscriber registry queries.",
		}),
		liquidity: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "liquidity_percent",
			Help:      "Share of order-book depth represented by evaluated trades.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
		}),
		sendLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_latency_seconds",
			Help:      "Latency of message sends.",
			Buckets:   prometheus.DefBuckets,
		}),
		wsConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_connected",
			Help:      "1 while the trade feed websocket is connected.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Trade events waiting for an evaluator worker.",
		}),
	}
}
