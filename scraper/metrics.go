package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ItemsScrapedTotal  prometheus.Counter
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	WarningsTotal      *prometheus.CounterVec
	PagesFailedTotal   *prometheus.CounterVec
	ImagesFetchedTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of listing records sent to the pipeline.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	warnings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_extraction_warnings_total",
			Help: "Recoverable field and item extraction failures by kind.",
		},
		[]string{"kind"},
	)
	pagesFailed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_failed_total",
			Help: "Pages dropped from the run by pipeline stage.",
		},
		[]string{"stage"},
	)
	images := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_images_fetched_total",
			Help: "Total number of gallery images resolved.",
		},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, retries, errorsTotal, warnings, pagesFailed, images)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		ItemsScrapedTotal:  itemsScraped,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
		WarningsTotal:      warnings,
		PagesFailedTotal:   pagesFailed,
		ImagesFetchedTotal: images,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IncItems increments the items scraped counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncWarning increments the extraction warnings counter for a warning kind.
func (m *Metrics) IncWarning(kind string) {
	if m == nil {
		return
	}
	m.WarningsTotal.WithLabelValues(kind).Inc()
}

// IncPageFailure increments the failed pages counter for a pipeline stage.
func (m *Metrics) IncPageFailure(stage string) {
	if m == nil {
		return
	}
	m.PagesFailedTotal.WithLabelValues(stage).Inc()
}

// AddImages adds n to the resolved images counter.
func (m *Metrics) AddImages(n int) {
	if m == nil {
		return
	}
	m.ImagesFetchedTotal.Add(float64(n))
}
