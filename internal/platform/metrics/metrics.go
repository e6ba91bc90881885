// Package metrics provides Prometheus collectors for the odontogram service:
//   - http_request_total / http_request_duration_seconds / http_request_in_flight
//   - odontogram_chart_edits_total by action and result (applied, rejected)
//   - odontogram_editing_sessions currently open
//   - odontogram_exports_total by format and outcome
//   - odontogram_export_skipped_teeth_total for teeth whose marks could not be placed
//   - odontogram_template_fetch_total by sheet and source
//   - http_recovered_panics_total by route
//
// All collectors are registered with the default registry at init.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	ChartEdits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odontogram_chart_edits_total",
			Help: "Chart edits by action and result",
		},
		[]string{"action", "result"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "odontogram_editing_sessions",
			Help: "Open chart editing sessions",
		},
	)

	Exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odontogram_exports_total",
			Help: "Chart exports by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	SkippedTeeth = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "odontogram_export_skipped_teeth_total",
			Help: "Teeth whose export marks were skipped",
		},
	)

	TemplateFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odontogram_template_fetch_total",
			Help: "Template loads by sheet and source (cache, remote, error)",
		},
		[]string{"sheet", "source"},
	)

	RecoveredPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_recovered_panics_total",
			Help: "Handler panics turned into 500 responses",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(ChartEdits)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(Exports)
	prometheus.MustRegister(SkippedTeeth)
	prometheus.MustRegister(TemplateFetches)
	prometheus.MustRegister(RecoveredPanics)
}

// Sessions feeds editing session activity into ChartEdits and ActiveSessions.
type Sessions struct{}

func (Sessions) EditApplied(action string, applied bool) {
	result := "rejected"
	if applied {
		result = "applied"
	}
	ChartEdits.WithLabelValues(action, result).Inc()
}

func (Sessions) SessionsOpen(n int) {
	ActiveSessions.Set(float64(n))
}

// Middleware records request count, latency and in-flight requests. The
// route pattern is used as the path label to keep cardinality bounded.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			HTTPRequestInFlight.Inc()
			defer HTTPRequestInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			HTTPRequestTotals.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
