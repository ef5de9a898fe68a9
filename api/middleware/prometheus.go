package middleware

import (
	"errors"
	"strconv"
	"time"

	"creaverse/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "service"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	messageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_operations_total",
			Help: "Total number of direct message operations",
		},
		[]string{"operation", "status", "service"},
	)

	messageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messages_operation_duration_seconds",
			Help:    "Duration of direct message operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "service"},
	)

	messageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_errors_total",
			Help: "Total number of direct message operation errors",
		},
		[]string{"operation", "error_type", "service"},
	)
)

func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
			serviceName,
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			serviceName,
		).Observe(duration)
	}
}

// RecordMessageOperation учитывает операцию с сообщениями (send, list, read)
func RecordMessageOperation(operation, serviceName string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	messageOperationsTotal.WithLabelValues(operation, status, serviceName).Inc()
	messageOperationDuration.WithLabelValues(operation, serviceName).Observe(duration.Seconds())

	if err != nil {
		messageErrors.WithLabelValues(operation, errorType(err), serviceName).Inc()
	}
}

// errorType keeps label cardinality bounded.
func errorType(err error) string {
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, services.ErrNotParticipant):
		return "not_participant"
	case errors.Is(err, services.ErrNotFound):
		return "not_found"
	case errors.Is(err, services.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, services.ErrAlreadyExists):
		return "conflict"
	default:
		return "internal"
	}
}
