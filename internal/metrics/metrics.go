// Package metrics exposes Prometheus instruments for unit mutations, the
// sales feed and lapsed holds on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service's collectors.
type Metrics struct {
	Registry *prometheus.Registry

	mutations    *prometheus.CounterVec
	feedFetches  *prometheus.CounterVec
	feedLatency  prometheus.Histogram
	feedSold     prometheus.Gauge
	expiredHolds prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "unit_mutations_total",
			Help:      "Unit mutations by action and outcome.",
		}, []string{"action", "outcome"}),
		feedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "sales_feed_fetches_total",
			Help:      "Sales feed fetch attempts by success.",
		}, []string{"ok"}),
		feedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "inventory",
			Name:      "sales_feed_fetch_seconds",
			Help:      "Sales feed fetch latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		feedSold: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inventory",
			Name:      "sales_feed_sold_units",
			Help:      "Units listed as sold in the last good feed snapshot.",
		}),
		expiredHolds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inventory",
			Name:      "expired_temporary_holds",
			Help:      "Reserved units whose temporary hold has lapsed.",
		}),
	}
	m.Registry.MustRegister(
		m.mutations, m.feedFetches, m.feedLatency, m.feedSold, m.expiredHolds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// MutationApplied counts a mutation attempt.
func (m *Metrics) MutationApplied(action, outcome string) {
	m.mutations.WithLabelValues(action, outcome).Inc()
}

// FeedFetched records one feed refresh.
func (m *Metrics) FeedFetched(ok bool, took time.Duration) {
	m.feedFetches.WithLabelValues(strconv.FormatBool(ok)).Inc()
	m.feedLatency.Observe(took.Seconds())
}

// FeedSoldUnits sets the size of the last good feed snapshot.
func (m *Metrics) FeedSoldUnits(n int) { m.feedSold.Set(float64(n)) }

// ExpiredHolds sets the lapsed-hold gauge.
func (m *Metrics) ExpiredHolds(n int) { m.expiredHolds.Set(float64(n)) }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
