package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the fetcher.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	BackoffSeconds  *prometheus.HistogramVec
	PagesTotal      prometheus.Counter
	DetailsTotal    *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamfetch_requests_total",
			Help: "Total fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "steamfetch_request_duration_seconds",
			Help:    "Latency of single fetch attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steamfetch_retries_total",
			Help: "Total number of retries scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamfetch_errors_total",
			Help: "Failed attempts by classification.",
		},
		[]string{"kind"},
	)
	backoff := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steamfetch_backoff_seconds",
			Help:    "Backoff waits by classification.",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "steamfetch_list_pages_total",
			Help: "List pages merged.",
		},
	)
	details := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steamfetch_details_total",
			Help: "Detail fetches by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, backoff, pages, details)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		BackoffSeconds:  backoff,
		PagesTotal:      pages,
		DetailsTotal:    details,
	}
}

// IncRequest increments the requests counter for an outcome.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a single attempt duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a kind.
func (m *Metrics) IncError(kind Kind) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(string(kind)).Inc()
}

// ObserveBackoff records a computed retry wait.
func (m *Metrics) ObserveBackoff(kind Kind, d time.Duration) {
	if m == nil {
		return
	}
	m.BackoffSeconds.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// IncPages increments the merged list pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncDetails increments the details counter for a result (fetched, skipped, failed).
func (m *Metrics) IncDetails(result string) {
	if m == nil {
		return
	}
	m.DetailsTotal.WithLabelValues(result).Inc()
}
