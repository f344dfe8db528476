package hxnav

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRenders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hxnav",
		Name:      "renders_total",
		Help:      "Dispatched renders by result kind and response status.",
	}, []string{"kind", "status"})
	metricRenderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hxnav",
		Name:      "render_failures_total",
		Help:      "Renders that ended in a 500 error page.",
	})
	metricRenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hxnav",
		Name:      "render_duration_seconds",
		Help:      "Time spent in the renderer, by result kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
	metricCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hxnav",
		Name:      "render_cache_total",
		Help:      "Render cache lookups by result (hit, miss, shared, bypass).",
	}, []string{"result"})
)

func observeRender(kind string, status int, seconds float64) {
	metricRenders.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	metricRenderDuration.WithLabelValues(kind).Observe(seconds)
}
