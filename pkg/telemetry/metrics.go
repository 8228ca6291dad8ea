package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus observability primitives for the marketplace.
type Metrics struct {
	apiRequests       *prometheus.CounterVec
	apiDuration       *prometheus.HistogramVec
	purchases         *prometheus.CounterVec
	purchaseFailures  *prometheus.CounterVec
	purchaseAmount    *prometheus.HistogramVec
	gatewayOrders     *prometheus.CounterVec
	counterFailures   prometheus.Counter
	uploads           *prometheus.CounterVec
	uploadBytes       prometheus.Histogram
	downloadRedirects *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec
}

// NewMetrics registers the marketplace metrics on the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the marketplace metrics on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataverse_api_requests_total",
		Help: "Counts API requests by method, route, and status.",
	}, []string{"method", "route", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataverse_api_duration_seconds",
		Help:    "API request latency per method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataverse_purchases_total",
		Help: "Purchases recorded by payment method and confirmation state.",
	}, []string{"method", "confirmed"})

	purchaseFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataverse_purchase_failures_total",
		Help: "Purchase attempts that ended without a record, by method and reason.",
	}, []string{"method", "reason"})

	purchaseAmount := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dataverse_purchase_amount",
		Help:    "Purchase amount distribution per currency.",
		Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 100, 500, 1000, 5000},
	}, []string{"currency"})

	gatewayOrders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataverse_gateway_orders_total",
		Help: "Gateway orders created by source and verification state.",
	}, []string{"source", "verified"})

	counterFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dataverse_download_counter_failures_total",
		Help: "Best-effort download counter increments that failed after a recorded purchase.",
	})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataverse_uploads_total",
		Help: "Dataset uploads by file type and status.",
	}, []string{"file_type", "status"})

	uploadBytes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dataverse_upload_bytes",
		Help:    "Uploaded dataset file sizes.",
		Buckets: prometheus.ExponentialBuckets(1024, 8, 8),
	})

	downloadRedirects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataverse_download_redirects_total",
		Help: "Download requests by entitlement outcome.",
	}, []string{"outcome"})

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dataverse_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter.",
	}, []string{"route"})

	reg.MustRegister(
		apiRequests,
		apiDuration,
		purchases,
		purchaseFailures,
		purchaseAmount,
		gatewayOrders,
		counterFailures,
		uploads,
		uploadBytes,
		downloadRedirects,
		rateLimited,
	)

	return &Metrics{
		apiRequests:       apiRequests,
		apiDuration:       apiDuration,
		purchases:         purchases,
		purchaseFailures:  purchaseFailures,
		purchaseAmount:    purchaseAmount,
		gatewayOrders:     gatewayOrders,
		counterFailures:   counterFailures,
		uploads:           uploads,
		uploadBytes:       uploadBytes,
		downloadRedirects: downloadRedirects,
		rateLimited:       rateLimited,
	}
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := sanitizeLabel(method)
	routeLabel := sanitizeLabel(route)
	m.apiRequests.WithLabelValues(methodLabel, routeLabel, sanitizeLabel(status)).Inc()
	m.apiDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}

// RecordPurchase counts a persisted purchase and its amount.
func (m *Metrics) RecordPurchase(method, currency string, confirmed bool, amount float64) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(sanitizeLabel(method), boolLabel(confirmed)).Inc()
	m.purchaseAmount.WithLabelValues(sanitizeLabel(currency)).Observe(amount)
}

// RecordPurchaseFailure counts an attempt that ended before or during persistence.
func (m *Metrics) RecordPurchaseFailure(method, reason string) {
	if m == nil {
		return
	}
	m.purchaseFailures.WithLabelValues(sanitizeLabel(method), sanitizeLabel(reason)).Inc()
}

// RecordGatewayOrder counts a created gateway order.
func (m *Metrics) RecordGatewayOrder(source string, verified bool) {
	if m == nil {
		return
	}
	m.gatewayOrders.WithLabelValues(sanitizeLabel(source), boolLabel(verified)).Inc()
}

// RecordCounterFailure counts a failed download counter increment.
func (m *Metrics) RecordCounterFailure() {
	if m == nil {
		return
	}
	m.counterFailures.Inc()
}

// RecordUpload counts an upload attempt and, on success, its size.
func (m *Metrics) RecordUpload(fileType, status string, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(sanitizeLabel(fileType), sanitizeLabel(status)).Inc()
	if status == "success" && size > 0 {
		m.uploadBytes.Observe(float64(size))
	}
}

// RecordDownload counts a download request by outcome (granted, denied).
func (m *Metrics) RecordDownload(outcome string) {
	if m == nil {
		return
	}
	m.downloadRedirects.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

// RecordRateLimited counts a rejected request.
func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(sanitizeLabel(route)).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
