// Package metrics holds the Prometheus collectors for HTTP traffic and the
// guest-house domain events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "guesthouse"

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing, which keeps services usable in tests without a registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	AuthAttempts     *prometheus.CounterVec
	Assignments      *prometheus.CounterVec
	VisitTransitions *prometheus.CounterVec
	SweepUpdates     *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Login and refresh attempts by outcome",
		}, []string{"operation", "outcome"}),
		Assignments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Assignment operations by resource kind, operation and outcome",
		}, []string{"kind", "operation", "outcome"}),
		VisitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_transitions_total",
			Help:      "Guest visit status transitions by target status and source",
		}, []string{"status", "source"}),
		SweepUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_rows_updated_total",
			Help:      "Rows changed by the periodic status sweep",
		}, []string{"step"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification publish and delivery results by channel",
		}, []string{"channel", "outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < 400 {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{c.Request().Method, path, strconv.Itoa(status)}
			m.HTTPRequests.WithLabelValues(labels...).Inc()
			m.HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveAuth counts a login or refresh attempt.
func (m *Metrics) ObserveAuth(operation string, err error) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveAssignment counts an assign, update or close of kind.
func (m *Metrics) ObserveAssignment(kind, operation string, err error) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(kind, operation, outcome(err)).Inc()
}

// ObserveTransition counts a visit moving into status. source is "api" or
// "sweep".
func (m *Metrics) ObserveTransition(status, source string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.VisitTransitions.WithLabelValues(status, source).Add(float64(n))
}

func (m *Metrics) ObserveSweep(step string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SweepUpdates.WithLabelValues(step).Add(float64(n))
}

// ObserveNotification counts a publish or delivery result.
func (m *Metrics) ObserveNotification(channel, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(channel, result).Inc()
}
