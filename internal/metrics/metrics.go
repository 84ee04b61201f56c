// Package metrics collects Prometheus metrics for country lookups and
// favorites bookkeeping, and serves them over HTTP when enabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the API client, the listing
// reconciler and the session store.
type Recorder interface {
	RecordLookup(kind string, duration time.Duration, err error)
	RecordHTTPStatus(statusCode int)
	RecordStaleResult()
	RecordFavoriteChange(op string)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordLookup(string, time.Duration, error) {}
func (Nop) RecordHTTPStatus(int)                      {}
func (Nop) RecordStaleResult()                        {}
func (Nop) RecordFavoriteChange(string)               {}

// Collector records metrics into Prometheus collectors.
type Collector struct {
	lookups         *prometheus.CounterVec
	lookupLatency   *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
	staleResults    prometheus.Counter
	favoriteChanges *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_lookups_total",
			Help: "Country lookups by kind and outcome.",
		}, []string{"kind", "outcome"}),
		lookupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "atlas_lookup_latency_seconds",
			Help:    "Country lookup latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_http_status_total",
			Help: "REST Countries responses by status code.",
		}, []string{"status_code"}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_stale_results_total",
			Help: "Listing results discarded because a newer request superseded them.",
		}),
		favoriteChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_favorite_changes_total",
			Help: "Favorites mutations by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.lookups,
		c.lookupLatency,
		c.httpStatus,
		c.staleResults,
		c.favoriteChanges,
	)
	return c
}

// RecordLookup counts a lookup and observes its latency.
func (c *Collector) RecordLookup(kind string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.lookups.WithLabelValues(kind, outcome).Inc()
	c.lookupLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordHTTPStatus counts a response status code.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordStaleResult counts a superseded listing result.
func (c *Collector) RecordStaleResult() {
	c.staleResults.Inc()
}

// RecordFavoriteChange counts an add or remove.
func (c *Collector) RecordFavoriteChange(op string) {
	c.favoriteChanges.WithLabelValues(op).Inc()
}

// Router serves /metrics from gatherer and a trivial /healthz.
func Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}
