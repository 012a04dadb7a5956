// Package service implements the core proxy forwarding logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"gateway-proxy-go/internal/client"
	"gateway-proxy-go/internal/mapper"
	"gateway-proxy-go/internal/metrics"
	"gateway-proxy-go/internal/model"
	"gateway-proxy-go/internal/router"
)

// ProxyService resolves, maps and forwards inbound requests.
type ProxyService struct {
	router  *router.Router
	mapper  *mapper.RequestMapper
	client  *client.DownstreamClient
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProxyService creates a ProxyService.
// The metrics parameter is optional; pass nil to disable mapping metrics.
func NewProxyService(
	r *router.Router,
	rm *mapper.RequestMapper,
	c *client.DownstreamClient,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ProxyService {
	return &ProxyService{
		router:  r,
		mapper:  rm,
		client:  c,
		metrics: m,
		logger:  logger.With("component", "proxy_service"),
	}
}

// Forward maps in onto its downstream route and sends it.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(ctx context.Context, in *model.InboundRequest) (*model.ProxyResponse, error) {
	route, err := s.router.Match(in.Path)
	if err != nil {
		s.recordMappingError(err)
		return nil, err
	}

	out, err := s.mapper.Map(ctx, in, route.Downstream)
	if err != nil {
		s.recordMappingError(err)
		return nil, err
	}
	if err := route.Retarget(out.URL); err != nil {
		s.recordMappingError(err)
		return nil, fmt.Errorf("%w: %w", mapper.ErrMalformedURI, err)
	}
	s.recordMapped(out)

	attrs := []any{
		"method", out.Method,
		"upstream_prefix", route.UpstreamPrefix,
		"downstream_host", route.Host,
		"content", contentLabel(out),
	}
	if mc, ok := out.Content.(*model.MultipartContent); ok {
		attrs = append(attrs, "form_parts", len(mc.Parts()))
	}
	s.logger.Debug("forwarding request", attrs...)

	resp, err := s.client.Do(ctx, out)
	if err != nil {
		// Streamed bodies are read while sending.
		if errors.Is(err, mapper.ErrBodyRead) {
			s.recordMappingError(err)
		}
		return nil, fmt.Errorf("forward to downstream: %w", err)
	}

	resp.Header = stripHopByHop(resp.Header)
	return resp, nil
}

func (s *ProxyService) recordMapped(out *model.OutboundRequest) {
	if s.metrics == nil {
		return
	}
	s.metrics.MappedRequests.WithLabelValues(contentLabel(out)).Inc()
}

func (s *ProxyService) recordMappingError(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.MappingErrors.WithLabelValues(mappingErrorKind(err)).Inc()
}

func contentLabel(out *model.OutboundRequest) string {
	if out.Content == nil {
		return "none"
	}
	return string(out.Content.Kind())
}

// mappingErrorKind returns a bounded label for err.
func mappingErrorKind(err error) string {
	switch {
	case errors.Is(err, router.ErrNoRoute):
		return "no_route"
	case errors.Is(err, mapper.ErrBodyRead):
		return "body_read"
	default:
		return "malformed_uri"
	}
}

// stripHopByHop drops connection-level headers, including any named by the
// downstream Connection header.
func stripHopByHop(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		return make(http.Header)
	}
	for _, v := range dst.Values("Connection") {
		for _, name := range splitTokens(v) {
			dst.Del(name)
		}
	}
	for _, name := range model.HopByHopHeaders {
		dst.Del(name)
	}
	return dst
}

func splitTokens(v string) []string {
	var out []string
	for tok := range strings.SplitSeq(v, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
