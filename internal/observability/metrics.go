package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forecast"

// Metrics holds the Prometheus collectors for the refresh workflow.
type Metrics struct {
	Refreshes         *prometheus.CounterVec // labels: outcome={success,feed_error,pipeline_error,store_error,stale}
	RefreshesRejected prometheus.Counter
	RefreshDuration   prometheus.Histogram
	RefreshInFlight   prometheus.Gauge

	PipelineDuration prometheus.Histogram
	ObservationsSeen prometheus.Gauge
	DaysProduced     prometheus.Gauge

	FeedRequests        *prometheus.CounterVec   // labels: feed, outcome={success,error}
	FeedRequestDuration *prometheus.HistogramVec // labels: feed

	MessagesPublished prometheus.Counter
	PublishErrors     prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Accepted refreshes by outcome.",
		}, []string{"outcome"}),
		RefreshesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_rejected_total",
			Help:      "Refresh requests rejected because another refresh was outstanding.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-aggregate-store cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RefreshInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_in_flight",
			Help:      "1 while a refresh is outstanding.",
		}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent grouping, aggregating and sorting one batch.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		ObservationsSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observations",
			Help:      "Observations in the latest stored forecast.",
		}),
		DaysProduced: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "days",
			Help:      "Day summaries in the latest stored forecast.",
		}),
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Observation feed requests by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_request_duration_seconds",
			Help:      "Observation feed request duration, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feed"}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Day summary messages written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publish attempts.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Refreshes,
		m.RefreshesRejected,
		m.RefreshDuration,
		m.RefreshInFlight,
		m.PipelineDuration,
		m.ObservationsSeen,
		m.DaysProduced,
		m.FeedRequests,
		m.FeedRequestDuration,
		m.MessagesPublished,
		m.PublishErrors,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
