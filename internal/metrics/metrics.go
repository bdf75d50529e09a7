// Package metrics defines the Prometheus metrics of the service on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons a sale is rejected, used as the "reason" label.
const (
	ReasonInvalidQuantity   = "invalid_quantity"
	ReasonProductNotFound   = "product_not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonPartialFailure    = "partial_failure"
	ReasonConflict          = "conflict"
	ReasonStore             = "store"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SalesRecorded  prometheus.Counter
	SalesRejected  *prometheus.CounterVec
	SalesVoided    prometheus.Counter
	Revenue        prometheus.Counter
	LowStockAlerts prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SalesRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "zaloga_sales_recorded_total",
			Help: "Sales recorded with stock taken.",
		}),
		SalesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zaloga_sales_rejected_total",
			Help: "Sale attempts that did not complete, by reason.",
		}, []string{"reason"}),
		SalesVoided: f.NewCounter(prometheus.CounterOpts{
			Name: "zaloga_sales_voided_total",
			Help: "Sales written and then voided because stock could not be taken.",
		}),
		Revenue: f.NewCounter(prometheus.CounterOpts{
			Name: "zaloga_revenue_total",
			Help: "Sum of recorded sale totals.",
		}),
		LowStockAlerts: f.NewCounter(prometheus.CounterOpts{
			Name: "zaloga_low_stock_alerts_total",
			Help: "Sales that left an item at or below its threshold.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "zaloga_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zaloga_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		}, []string{"method", "route"}),
	}
}

// TrackInventory exports the item count and low-stock count, read at scrape time.
func (m *Metrics) TrackInventory(items, lowStock func() int) {
	if m == nil {
		return
	}
	f := promauto.With(m.registry)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "zaloga_inventory_items",
		Help: "Items in the inventory.",
	}, func() float64 { return float64(items()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "zaloga_inventory_low_stock_items",
		Help: "Items at or below their threshold.",
	}, func() float64 { return float64(lowStock()) })
}

// SaleRecorded counts a completed sale of the given total.
func (m *Metrics) SaleRecorded(total float64, lowStock bool) {
	if m == nil {
		return
	}
	m.SalesRecorded.Inc()
	m.Revenue.Add(total)
	if lowStock {
		m.LowStockAlerts.Inc()
	}
}

// SaleRejected counts a failed sale attempt.
func (m *Metrics) SaleRejected(reason string) {
	if m == nil {
		return
	}
	m.SalesRejected.WithLabelValues(reason).Inc()
}

// SaleVoided counts a compensated sale.
func (m *Metrics) SaleVoided() {
	if m == nil {
		return
	}
	m.SalesVoided.Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
