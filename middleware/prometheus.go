package middleware

import (
	"net/http"

	"digimy/engine"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digimy_requests_total",
			Help: "Total number of requests processed by the payments web server.",
		},
		[]string{"path", "status"},
	)

	ErrorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digimy_requests_errors_total",
			Help: "Total number of error requests processed by the payments web server.",
		},
		[]string{"path", "status"},
	)
)

// PrometheusInit registers the HTTP metrics and the engine verdict metrics.
func PrometheusInit() {
	prometheus.MustRegister(RequestCount)
	prometheus.MustRegister(ErrorCount)
	engine.PrometheusInit()
}

// TrackMetrics is a middleware that tracks request metrics
func TrackMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		err := c.Next()
		status := c.Response().StatusCode()

		RequestCount.WithLabelValues(path, http.StatusText(status)).Inc()
		if status >= 400 {
			ErrorCount.WithLabelValues(path, http.StatusText(status)).Inc()
		}

		return err
	}
}
