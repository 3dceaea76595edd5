// Package metrics owns the Prometheus registry of the server: HTTP request
// counters and latencies plus billing and reporting business counters.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	billsCreated     *prometheus.CounterVec
	billAmount       prometheus.Histogram
	billNumberRetry  prometheus.Counter
	paymentsRecorded *prometheus.CounterVec
	reportsCompleted prometheus.Counter
	authAttempts     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		billsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labdesk_bills_created_total",
				Help: "Bills created, by tenant and payment status",
			},
			[]string{"tenant", "payment_status"},
		),
		billAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "labdesk_bill_final_amount",
			Help:    "Final payable amount of created bills",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000},
		}),
		billNumberRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labdesk_bill_number_retries_total",
			Help: "Bill creations retried after a bill number collision",
		}),
		paymentsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labdesk_payments_recorded_total",
				Help: "Payment entries added to existing bills, by mode",
			},
			[]string{"mode"},
		),
		reportsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labdesk_reports_completed_total",
			Help: "Reports whose every row received a result",
		}),
		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labdesk_auth_attempts_total",
				Help: "Login and PIN verification attempts",
			},
			[]string{"method", "status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.billsCreated,
		m.billAmount,
		m.billNumberRetry,
		m.paymentsRecorded,
		m.reportsCompleted,
		m.authAttempts,
	)
	return m
}

// Registry exposes the underlying registry, e.g. for the pool collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by route template
// so ids do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) BillCreated(tenant, paymentStatus string, finalAmount float64) {
	if m == nil {
		return
	}
	m.billsCreated.WithLabelValues(tenant, paymentStatus).Inc()
	m.billAmount.Observe(finalAmount)
}

func (m *Metrics) BillNumberRetried() {
	if m == nil {
		return
	}
	m.billNumberRetry.Inc()
}

func (m *Metrics) PaymentRecorded(mode string) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(mode).Inc()
}

func (m *Metrics) ReportCompleted() {
	if m == nil {
		return
	}
	m.reportsCompleted.Inc()
}

func (m *Metrics) AuthAttempt(method string, success bool) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
	}
	m.authAttempts.WithLabelValues(method, status).Inc()
}
