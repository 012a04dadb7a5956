// Package client provides the downstream HTTP client.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/http2"

	"gateway-proxy-go/internal/config"
	"gateway-proxy-go/internal/metrics"
	"gateway-proxy-go/internal/model"
)

// ErrUnsupportedVersion is returned when a route demands an HTTP version the
// client cannot speak.
var ErrUnsupportedVersion = errors.New("unsupported downstream HTTP version")

// DownstreamClient sends mapped requests to downstream services. The transport
// is chosen per request from the outbound HTTP version and version policy.
type DownstreamClient struct {
	negotiate *http.Client // HTTP/1.1 or HTTP/2 via ALPN
	http1     *http.Client // HTTP/1.x only
	h2        *http.Client // HTTP/2 over TLS only
	h2c       *http.Client // HTTP/2 over cleartext TCP only
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewDownstreamClient creates a DownstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable downstream metrics recording.
func NewDownstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *DownstreamClient {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	proxy := proxyFunc(cfg.Downstream.ProxyURL)
	timeout := time.Duration(cfg.Downstream.TimeoutSeconds) * time.Second

	newTransport := func(allowH2 bool) *http.Transport {
		t := &http.Transport{
			Proxy:               proxy,
			MaxIdleConns:        cfg.Downstream.IdleConnections,
			MaxIdleConnsPerHost: cfg.Downstream.IdleConnections,
			IdleConnTimeout:     90 * time.Second,
			DialContext:         dialer.DialContext,
			ForceAttemptHTTP2:   allowH2,
			// Content-Encoding is forwarded untouched.
			DisableCompression: true,
		}
		if !allowH2 {
			// A non-nil empty map disables HTTP/2.
			t.TLSNextProto = make(map[string]func(string, *tls.Conn) http.RoundTripper)
		}
		return t
	}

	h2 := &http2.Transport{
		DisableCompression: true,
		IdleConnTimeout:    90 * time.Second,
	}
	h2c := &http2.Transport{
		AllowHTTP:          true,
		DisableCompression: true,
		IdleConnTimeout:    90 * time.Second,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}

	return &DownstreamClient{
		negotiate: &http.Client{Transport: newTransport(true), Timeout: timeout, CheckRedirect: noRedirect},
		http1:     &http.Client{Transport: newTransport(false), Timeout: timeout, CheckRedirect: noRedirect},
		h2:        &http.Client{Transport: h2, Timeout: timeout, CheckRedirect: noRedirect},
		h2c:       &http.Client{Transport: h2c, Timeout: timeout, CheckRedirect: noRedirect},
		logger:    logger.With("component", "downstream_client"),
		metrics:   m,
	}
}

// noRedirect hands redirects back to the caller unchanged.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// proxyFunc returns the egress proxy selector. Without an explicit proxy URL
// the usual HTTP_PROXY/HTTPS_PROXY/NO_PROXY environment is honoured.
func proxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL == "" {
		return http.ProxyFromEnvironment
	}
	pc := &httpproxy.Config{HTTPProxy: proxyURL, HTTPSProxy: proxyURL}
	fn := pc.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return fn(req.URL)
	}
}

// Do sends out and returns the raw response.
// The caller is responsible for closing the response body.
// The context controls the lifetime of the downstream request: when it is
// canceled (e.g. client disconnects), the downstream request is canceled too.
func (c *DownstreamClient) Do(ctx context.Context, out *model.OutboundRequest) (*model.ProxyResponse, error) {
	hc, err := c.clientFor(out)
	if err != nil {
		return nil, err
	}

	req, err := out.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("downstream request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"http_version", out.HTTPVersion,
		"version_policy", string(out.VersionPolicy),
	)

	start := time.Now()
	resp, err := hc.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)
	if err != nil {
		if c.metrics != nil {
			c.metrics.DownstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("downstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.DownstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.DownstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// clientFor picks the client whose transport satisfies the version policy.
func (c *DownstreamClient) clientFor(out *model.OutboundRequest) (*http.Client, error) {
	major := versionMajor(out.HTTPVersion)
	policy := out.VersionPolicy

	switch {
	case major >= 3 && policy != model.VersionOrLower:
		return nil, fmt.Errorf("%w: HTTP/%s with %s", ErrUnsupportedVersion, out.HTTPVersion, policy)
	case major == 2 && policy == model.VersionExact:
		if strings.EqualFold(out.URL.Scheme, "https") {
			return c.h2, nil
		}
		return c.h2c, nil
	case major <= 1 && policy != model.VersionOrHigher:
		return c.http1, nil
	default:
		return c.negotiate, nil
	}
}

// versionMajor parses the major number of versions like "1.1" or "2".
// An empty or unparsable version counts as HTTP/1.
func versionMajor(v string) int {
	major, _, _ := strings.Cut(v, ".")
	n, err := strconv.Atoi(major)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
