// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private to the process so tests can build several routers without
// duplicate-registration panics on the default registerer.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "board",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "board",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	ViewIncrements = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "board",
		Name:      "post_view_increments_total",
		Help:      "Post view increments by result (ok, failed, dropped).",
	}, []string{"result"})

	ViewQueueLen = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "board",
		Name:      "post_view_queue_length",
		Help:      "Sampled length of the async view increment queue.",
	})

	OutboxPublished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "board",
		Name:      "outbox_events_total",
		Help:      "Outbox events relayed by topic and result.",
	}, []string{"topic", "result"})

	SessionEvents = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "board",
		Name:      "session_events_total",
		Help:      "Session change notifications by type.",
	}, []string{"type"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
