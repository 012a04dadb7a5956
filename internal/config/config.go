// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"gateway-proxy-go/internal/model"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/gateway-proxy/config.toml",
	"configs/config.toml",
}

// reservedPaths are served by the proxy itself and cannot be routed or used for metrics.
var reservedPaths = []string{"/healthz", "/proxy/status"}

// supportedHTTPVersions lists the accepted values of routes.http_version.
var supportedHTTPVersions = []string{"1.0", "1.1", "2.0", "3.0"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Downstream DownstreamConfig `toml:"downstream"`
	Mapper     MapperConfig     `toml:"mapper"`
	Log        LogConfig        `toml:"log"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Routes     []RouteConfig    `toml:"routes"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
	// TrustForwardedProto takes the inbound scheme from X-Forwarded-Proto.
	TrustForwardedProto bool `toml:"trust_forwarded_proto"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DownstreamConfig holds downstream connection settings.
type DownstreamConfig struct {
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
	ProxyURL        string `toml:"proxy_url"` // optional egress proxy
}

// MapperConfig tunes request mapping.
type MapperConfig struct {
	MultipartMaxMemoryBytes int64    `toml:"multipart_max_memory_bytes"`
	ExcludeHeaders          []string `toml:"exclude_headers"` // in addition to Host and Transfer-Encoding
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// RouteConfig describes one downstream route.
type RouteConfig struct {
	UpstreamPathPrefix   string `toml:"upstream_path_prefix"`
	DownstreamScheme     string `toml:"downstream_scheme"`
	DownstreamHost       string `toml:"downstream_host"`
	DownstreamPathPrefix string `toml:"downstream_path_prefix"`
	Method               string `toml:"method"`
	HTTPVersion          string `toml:"http_version"`
	VersionPolicy        string `toml:"version_policy"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/gateway-proxy/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Downstream.TimeoutSeconds < 0 {
		return fmt.Errorf("downstream.timeout_seconds must be non-negative; got %d", c.Downstream.TimeoutSeconds)
	}
	if c.Downstream.IdleConnections < 0 {
		return fmt.Errorf("downstream.idle_connections must be non-negative; got %d", c.Downstream.IdleConnections)
	}
	if c.Mapper.MultipartMaxMemoryBytes < 0 {
		return fmt.Errorf("mapper.multipart_max_memory_bytes must be non-negative; got %d", c.Mapper.MultipartMaxMemoryBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	if c.Downstream.ProxyURL != "" {
		u, err := url.Parse(c.Downstream.ProxyURL)
		if err != nil {
			return fmt.Errorf("downstream.proxy_url is not a valid URL: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("downstream.proxy_url must be an absolute URL; got %q", c.Downstream.ProxyURL)
		}
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedPaths {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	if len(c.Routes) == 0 {
		return fmt.Errorf("at least one [[routes]] entry is required")
	}
	seen := make(map[string]bool, len(c.Routes))
	for i := range c.Routes {
		if err := c.Routes[i].validate(); err != nil {
			return fmt.Errorf("routes[%d]: %w", i, err)
		}
		prefix := strings.TrimSuffix(c.Routes[i].UpstreamPathPrefix, "/")
		if seen[prefix] {
			return fmt.Errorf("routes[%d]: duplicate upstream_path_prefix %q", i, c.Routes[i].UpstreamPathPrefix)
		}
		seen[prefix] = true

		if c.Downstream.ProxyURL != "" && c.Routes[i].exactHTTP2() {
			return fmt.Errorf("routes[%d]: exact HTTP/2 routes cannot use downstream.proxy_url", i)
		}
	}

	return nil
}

func (r *RouteConfig) validate() error {
	if r.UpstreamPathPrefix == "" || r.UpstreamPathPrefix[0] != '/' {
		return fmt.Errorf("upstream_path_prefix must start with '/'; got %q", r.UpstreamPathPrefix)
	}
	for _, reserved := range reservedPaths {
		if r.UpstreamPathPrefix == reserved || strings.HasPrefix(r.UpstreamPathPrefix, reserved+"/") {
			return fmt.Errorf("upstream_path_prefix %q conflicts with reserved route %q", r.UpstreamPathPrefix, reserved)
		}
	}
	switch strings.ToLower(r.DownstreamScheme) {
	case "http", "https", "":
		// valid
	default:
		return fmt.Errorf("downstream_scheme must be http or https; got %q", r.DownstreamScheme)
	}
	if r.DownstreamHost == "" {
		return fmt.Errorf("downstream_host is required")
	}
	if strings.ContainsAny(r.DownstreamHost, "/?#@ ") {
		return fmt.Errorf("downstream_host must be host or host:port; got %q", r.DownstreamHost)
	}
	if r.DownstreamPathPrefix != "" && r.DownstreamPathPrefix[0] != '/' {
		return fmt.Errorf("downstream_path_prefix must start with '/'; got %q", r.DownstreamPathPrefix)
	}
	if _, err := url.PathUnescape(r.DownstreamPathPrefix); err != nil {
		return fmt.Errorf("downstream_path_prefix is not a valid encoded path: %w", err)
	}
	if r.HTTPVersion != "" && !slices.Contains(supportedHTTPVersions, r.HTTPVersion) {
		return fmt.Errorf("http_version must be one of %v; got %q", supportedHTTPVersions, r.HTTPVersion)
	}
	if _, err := model.ParseVersionPolicy(r.VersionPolicy); err != nil {
		return fmt.Errorf("version_policy: %w", err)
	}
	return nil
}

// exactHTTP2 reports whether the route is pinned to HTTP/2, which is sent
// over a dedicated connection that bypasses the egress proxy.
func (r *RouteConfig) exactHTTP2() bool {
	return strings.HasPrefix(r.HTTPVersion, "2") && r.VersionPolicy == string(model.VersionExact)
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key. Setting port=0 in
// the config file therefore results in the default port (8000).
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Downstream.TimeoutSeconds == 0 {
		c.Downstream.TimeoutSeconds = 120
	}
	if c.Downstream.IdleConnections == 0 {
		c.Downstream.IdleConnections = 100
	}
	if c.Mapper.MultipartMaxMemoryBytes == 0 {
		c.Mapper.MultipartMaxMemoryBytes = 32 * 1024 * 1024 // 32 MB
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	for i := range c.Routes {
		r := &c.Routes[i]
		if r.DownstreamScheme == "" {
			r.DownstreamScheme = "http"
		}
		r.DownstreamScheme = strings.ToLower(r.DownstreamScheme)
		if r.HTTPVersion == "" {
			r.HTTPVersion = "1.1"
		}
		if r.VersionPolicy == "" {
			r.VersionPolicy = string(model.VersionOrLower)
		}
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
