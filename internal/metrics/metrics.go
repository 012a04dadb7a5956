// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"cmp"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for API latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	DownstreamDuration  *prometheus.HistogramVec
	DownstreamResponses *prometheus.CounterVec

	MappedRequests *prometheus.CounterVec
	MappingErrors  *prometheus.CounterVec

	prefixes []string // path label values, longest first
}

// builtinPrefixes are the proxy's own endpoints.
var builtinPrefixes = []string{"/healthz", "/proxy/status", "/metrics"}

// New creates a Metrics instance with a custom registry and all collectors registered.
// extraPrefixes (route prefixes, a custom metrics path) become additional
// bounded values of the path_prefix label.
func New(extraPrefixes ...string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),
		DownstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_proxy_downstream_request_duration_seconds",
			Help:    "Downstream call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),
		DownstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_proxy_downstream_responses_total",
			Help: "Total downstream responses by method and status code.",
		}, []string{"method", "status_code"}),
		MappedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_proxy_mapped_requests_total",
			Help: "Requests mapped for forwarding, by attached content kind.",
		}, []string{"content"}),
		MappingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_proxy_mapping_errors_total",
			Help: "Requests that could not be mapped, by error kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.DownstreamDuration,
		m.DownstreamResponses,
		m.MappedRequests,
		m.MappingErrors,
	)

	m.prefixes = append(slices.Clone(builtinPrefixes), extraPrefixes...)
	for i, p := range m.prefixes {
		if p != "/" {
			m.prefixes[i] = strings.TrimSuffix(p, "/")
		}
	}
	slices.SortFunc(m.prefixes, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})
	m.prefixes = slices.Compact(m.prefixes)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// NormalizePath returns a bounded path label for Prometheus metrics: the
// longest known prefix of path, or "other".
func (m *Metrics) NormalizePath(path string) string {
	for _, prefix := range m.prefixes {
		if prefix == "/" {
			return prefix
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return prefix
		}
	}
	return "other"
}
