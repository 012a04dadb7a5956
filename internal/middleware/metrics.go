package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"gateway-proxy-go/internal/metrics"
)

// MetricsMiddleware returns an Echo middleware that records Prometheus metrics
// for each inbound request, labelled by the matched route prefix.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			req := c.Request()
			labels := []string{
				metrics.NormalizeMethod(req.Method),
				strconv.Itoa(responseStatus(c, err)),
				m.NormalizePath(req.URL.Path),
			}
			m.RequestsTotal.WithLabelValues(labels...).Inc()
			m.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// responseStatus returns the status the client will see. An *echo.HTTPError
// returned by the handler is written later by Echo's error handler.
func responseStatus(c echo.Context, err error) int {
	var he *echo.HTTPError
	if err != nil && !c.Response().Committed && errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}
