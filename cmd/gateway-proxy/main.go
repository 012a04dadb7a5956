package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"gateway-proxy-go/internal/client"
	"gateway-proxy-go/internal/config"
	"gateway-proxy-go/internal/handler"
	"gateway-proxy-go/internal/mapper"
	"gateway-proxy-go/internal/metrics"
	"gateway-proxy-go/internal/middleware"
	"gateway-proxy-go/internal/router"
	"gateway-proxy-go/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("gateway-proxy"),
		kong.Description("Reverse proxy that maps inbound requests onto configured downstream routes."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newEcho,
			newRequestMapper,
			router.New,
			client.NewDownstreamClient,
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newMetrics labels inbound traffic by route prefix.
func newMetrics(cfg *config.Config) *metrics.Metrics {
	prefixes := make([]string, 0, len(cfg.Routes)+1)
	for _, r := range cfg.Routes {
		prefixes = append(prefixes, r.UpstreamPathPrefix)
	}
	if cfg.Metrics.Enabled {
		prefixes = append(prefixes, cfg.Metrics.Path)
	}
	return metrics.New(prefixes...)
}

func newRequestMapper(cfg *config.Config, logger *slog.Logger) *mapper.RequestMapper {
	rm := mapper.New(mapper.NewHeaderPolicy(cfg.Mapper.ExcludeHeaders), cfg.Mapper.MultipartMaxMemoryBytes)
	logger.Info("request mapper configured",
		"excluded_headers", rm.Policy().ExcludedHeaders(),
		"content_headers", rm.Policy().ContentHeaders(),
		"multipart_max_memory_bytes", cfg.Mapper.MultipartMaxMemoryBytes,
	)
	return rm
}

func newEcho(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// No WriteTimeout: downstream responses are streamed and bounded by the
	// downstream client timeout instead.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(middleware.Chain(cfg, m, logger)...)
	if cfg.Server.RateLimit.Enabled {
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr, "routes", len(cfg.Routes))
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
