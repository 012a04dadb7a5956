package middleware

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"gateway-proxy-go/internal/config"
	"gateway-proxy-go/internal/metrics"
)

// Chain returns the server middleware in installation order. m is only used
// when metrics are enabled and may be nil otherwise.
func Chain(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) []echo.MiddlewareFunc {
	chain := []echo.MiddlewareFunc{
		echomw.Recover(),
		echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}),
		RequestLogger(logger),
	}
	if cfg.Metrics.Enabled && m != nil {
		chain = append(chain, MetricsMiddleware(m))
	}
	chain = append(chain,
		echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)),
		SecurityHeaders(),
	)
	if cfg.Server.RateLimit.Enabled {
		chain = append(chain, RateLimit(cfg.Server.RateLimit))
	}
	return chain
}
