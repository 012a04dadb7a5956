// Package router resolves inbound request paths to downstream routes.
package router

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"gateway-proxy-go/internal/config"
	"gateway-proxy-go/internal/model"
)

// ErrNoRoute is returned when no route matches the request path.
var ErrNoRoute = errors.New("no route matches request path")

// Route is a resolved downstream target plus the overrides applied while
// mapping requests sent to it.
type Route struct {
	UpstreamPrefix   string // encoded, without trailing slash ("/" for the catch-all)
	Scheme           string
	Host             string
	DownstreamPrefix string // encoded, without trailing slash
	Downstream       model.DownstreamRoute
}

// Router matches paths against the configured routes, longest prefix first.
type Router struct {
	routes []*Route
}

// New builds a Router from the validated configuration.
func New(cfg *config.Config) (*Router, error) {
	routes := make([]*Route, 0, len(cfg.Routes))
	for i, rc := range cfg.Routes {
		policy, err := model.ParseVersionPolicy(rc.VersionPolicy)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		routes = append(routes, &Route{
			UpstreamPrefix:   normalizePrefix(rc.UpstreamPathPrefix),
			Scheme:           rc.DownstreamScheme,
			Host:             rc.DownstreamHost,
			DownstreamPrefix: strings.TrimSuffix(rc.DownstreamPathPrefix, "/"),
			Downstream: model.DownstreamRoute{
				Method:        rc.Method,
				HTTPVersion:   rc.HTTPVersion,
				VersionPolicy: policy,
			},
		})
	}

	slices.SortStableFunc(routes, func(a, b *Route) int {
		return cmp.Compare(len(b.UpstreamPrefix), len(a.UpstreamPrefix))
	})
	return &Router{routes: routes}, nil
}

func normalizePrefix(p string) string {
	if p == "/" {
		return p
	}
	return strings.TrimSuffix(p, "/")
}

// Match returns the route whose prefix matches the encoded path on a segment
// boundary. "/api" matches "/api" and "/api/x" but not "/apix".
func (r *Router) Match(path string) (*Route, error) {
	for _, rt := range r.routes {
		if rt.matches(path) {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoRoute, path)
}

// Len returns the number of configured routes.
func (r *Router) Len() int {
	return len(r.routes)
}

func (rt *Route) matches(path string) bool {
	if rt.UpstreamPrefix == "/" {
		return true
	}
	return path == rt.UpstreamPrefix || strings.HasPrefix(path, rt.UpstreamPrefix+"/")
}

// Retarget points u at the route's downstream: scheme and host are replaced
// and the upstream path prefix is swapped for the downstream one. The work is
// done on the encoded path and the query is left untouched.
func (rt *Route) Retarget(u *url.URL) error {
	rest := u.EscapedPath()
	if rt.UpstreamPrefix != "/" {
		rest = strings.TrimPrefix(rest, rt.UpstreamPrefix)
	}
	raw := rt.DownstreamPrefix + rest
	if raw == "" {
		raw = "/"
	}

	p, err := url.PathUnescape(raw)
	if err != nil {
		return fmt.Errorf("retarget path %q: %w", raw, err)
	}

	u.Scheme = rt.Scheme
	u.Host = rt.Host
	u.Path = p
	u.RawPath = raw
	return nil
}
