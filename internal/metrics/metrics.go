// Package metrics holds the Prometheus collectors of the API and consumers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	SeatOperations      *prometheus.CounterVec
	AggregationRuns     *prometheus.CounterVec
	AggregationSkipped  prometheus.Counter
	AggregationDuration prometheus.Histogram
	ConsumedMessages    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoreline",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shoreline",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		SeatOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoreline",
			Name:      "seat_operations_total",
			Help:      "Seat bookings and releases by outcome.",
		}, []string{"operation", "outcome"}),
		AggregationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoreline",
			Name:      "analytics_aggregations_total",
			Help:      "Analytics aggregations by report.",
		}, []string{"report"}),
		AggregationSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shoreline",
			Name:      "analytics_skipped_records_total",
			Help:      "Completion records skipped for an unparsable date.",
		}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shoreline",
			Name:      "analytics_aggregation_duration_seconds",
			Help:      "Time spent aggregating completion records.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		ConsumedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoreline",
			Name:      "consumed_messages_total",
			Help:      "NATS messages handled by subject and outcome.",
		}, []string{"subject", "outcome"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.SeatOperations,
		m.AggregationRuns,
		m.AggregationSkipped,
		m.AggregationDuration,
		m.ConsumedMessages,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Outcome maps an error to the "ok"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
