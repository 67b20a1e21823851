package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the relay.
type Metrics struct {
	SessionRequests *prometheus.CounterVec
	UpstreamLatency prometheus.Histogram
	ClientLogEvents *prometheus.CounterVec
	PageRenders     prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SessionRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_requests_total",
			Help:      "Session broker requests by outcome.",
		}, []string{"outcome"}),
		UpstreamLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_ms",
			Help:      "Latency of upstream session-creation calls in milliseconds.",
			Buckets:   []float64{50, 100, 200, 400, 800, 1500, 3000, 10000, 30000},
		}),
		ClientLogEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_log_events_total",
			Help:      "Client log events accepted, by transport.",
		}, []string{"transport"}),
		PageRenders: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webrtc_page_renders_total",
			Help:      "Renders of the WebRTC bootstrap page.",
		}),
	}
}

func (m *Metrics) ObserveUpstreamLatency(d time.Duration) {
	m.UpstreamLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
