package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	IntakeReceivedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_emails_received_total",
			Help: "Emails received from the classification workflow",
		},
		[]string{"classification", "outcome"}, // outcome: created, updated, failed
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_store_operation_duration_seconds",
			Help:    "Record store operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"backend", "operation", "status"},
	)

	RepliesSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_replies_sent_total",
			Help: "Customer replies sent through the mail provider",
		},
		[]string{"kind", "status"},
	)

	WorkflowCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_workflow_call_latency_ms",
			Help:    "Classification workflow call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		},
		[]string{"status"},
	)

	ReviewCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_reviews_total",
			Help: "Interpreter runs by derived status",
		},
		[]string{"status", "transitioned"},
	)

	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_live_clients",
			Help: "Connected server-sent event clients",
		},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementIntakeReceived(classification, outcome string) {
	if classification == "" {
		classification = "none"
	}
	IntakeReceivedCount.WithLabelValues(classification, outcome).Inc()
}

func RecordStoreOperation(backend, operation string, err error, duration time.Duration) {
	StoreOperationDuration.WithLabelValues(backend, operation, outcome(err)).Observe(duration.Seconds())
}

func IncrementRepliesSent(kind string, err error) {
	RepliesSentCount.WithLabelValues(kind, outcome(err)).Inc()
}

func RecordWorkflowCallLatency(err error, duration time.Duration) {
	WorkflowCallLatency.WithLabelValues(outcome(err)).Observe(float64(duration.Milliseconds()))
}

func IncrementReview(status string, transitioned bool) {
	ReviewCount.WithLabelValues(status, strconv.FormatBool(transitioned)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records request durations labelled by route pattern.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			RecordHTTPRequestDuration(c.Request().Method, path, strconv.Itoa(status), time.Since(start))
			return err
		}
	}
}

// Handler serves the default registry for /metrics.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
