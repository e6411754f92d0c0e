package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	ItemsScrapedTotal  prometheus.Counter
	ImagesSavedTotal   prometheus.Counter
	CategoriesWritten  prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	ProductFailedTotal prometheus.Counter
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
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of product records accumulated.",
		},
	)
	imagesSaved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_images_saved_total",
			Help: "Total number of product images written to disk.",
		},
	)
	categoriesWritten := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_categories_written_total",
			Help: "Total number of category output files written.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	productFailed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_products_failed_total",
			Help: "Total number of product URLs skipped after a failure.",
		},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, imagesSaved, categoriesWritten, errorsTotal, productFailed)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		ItemsScrapedTotal:  itemsScraped,
		ImagesSavedTotal:   imagesSaved,
		CategoriesWritten:  categoriesWritten,
		ErrorsTotal:        errorsTotal,
		ProductFailedTotal: productFailed,
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
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItems increments the items scraped counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncImages increments the saved images counter.
func (m *Metrics) IncImages() {
	if m == nil {
		return
	}
	m.ImagesSavedTotal.Inc()
}

// IncCategoriesWritten increments the written categories counter.
func (m *Metrics) IncCategoriesWritten() {
	if m == nil {
		return
	}
	m.CategoriesWritten.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncProductFailed increments the skipped products counter.
func (m *Metrics) IncProductFailed() {
	if m == nil {
		return
	}
	m.ProductFailedTotal.Inc()
}
