package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"gateway-proxy-go/internal/client"
	"gateway-proxy-go/internal/config"
	"gateway-proxy-go/internal/mapper"
	"gateway-proxy-go/internal/router"
	"gateway-proxy-go/internal/service"
)

// ProxyHandler forwards requests to the downstream service of the matching route.
type ProxyHandler struct {
	service             *service.ProxyService
	trustForwardedProto bool
	multipartMaxMemory  int64
	logger              *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:             svc,
		trustForwardedProto: cfg.Server.TrustForwardedProto,
		multipartMaxMemory:  cfg.Mapper.MultipartMaxMemoryBytes,
		logger:              logger.With("component", "proxy_handler"),
	}
}

// Handle forwards the request and streams the downstream response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	in, err := newInboundRequest(req, h.trustForwardedProto, h.multipartMaxMemory)
	if err != nil {
		return h.mapError(c, err)
	}
	if in.Form != nil {
		defer func() { _ = in.Form.RemoveAll() }()
	}

	resp, err := h.service.Forward(req.Context(), in)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already sent; a failed copy leaves a truncated response.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	path := c.Request().URL.Path

	switch {
	case errors.Is(err, router.ErrNoRoute):
		h.logger.Debug("no route", "path", path)
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "no route for request path",
		})

	case errors.Is(err, mapper.ErrMalformedURI):
		h.logger.Warn("malformed request URI", "err", err, "path", path)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "malformed request URI",
		})

	case errors.Is(err, mapper.ErrBodyRead):
		if errors.Is(err, context.Canceled) {
			h.logger.Warn("client disconnected", "err", err, "path", path)
			return c.JSON(http.StatusBadGateway, map[string]string{
				"error": "client disconnected",
			})
		}
		h.logger.Warn("reading request body", "err", err, "path", path)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "could not read request body",
		})
	}

	h.logger.Error("proxy error", "err", err, "path", path)

	if errors.Is(err, client.ErrUnsupportedVersion) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "downstream HTTP version not supported",
		})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "downstream request timed out",
		})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "client disconnected",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "downstream host unreachable",
		})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "downstream connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "downstream request failed",
	})
}
