package mapper

import (
	"net/http"
	"slices"
	"strings"
)

// hopByHopHeaders are never copied to the downstream request.
var hopByHopHeaders = []string{"Host", "Transfer-Encoding"}

// contentHeaders are copied from the inbound request onto non-empty content,
// in this order, in addition to Content-Type.
var contentHeaders = []string{
	"Content-Length",
	"Content-Language",
	"Content-Location",
	"Content-Range",
	"Content-MD5",
	"Content-Disposition",
	"Content-Encoding",
}

// HeaderPolicy is the immutable set of header rules used by a RequestMapper.
// A single policy is built at startup and shared by all mapping calls.
type HeaderPolicy struct {
	excluded       map[string]struct{} // lower-cased names
	contentHeaders []string
}

// DefaultHeaderPolicy excludes only Host and Transfer-Encoding.
func DefaultHeaderPolicy() *HeaderPolicy {
	return NewHeaderPolicy(nil)
}

// NewHeaderPolicy returns a policy that excludes the hop-by-hop headers plus
// extraExcluded. Names are matched case-insensitively.
func NewHeaderPolicy(extraExcluded []string) *HeaderPolicy {
	p := &HeaderPolicy{
		excluded:       make(map[string]struct{}, len(hopByHopHeaders)+len(extraExcluded)),
		contentHeaders: slices.Clone(contentHeaders),
	}
	for _, name := range hopByHopHeaders {
		p.excluded[strings.ToLower(name)] = struct{}{}
	}
	for _, name := range extraExcluded {
		if name = strings.TrimSpace(name); name != "" {
			p.excluded[strings.ToLower(name)] = struct{}{}
		}
	}
	return p
}

// Excluded reports whether key must not be copied downstream.
func (p *HeaderPolicy) Excluded(key string) bool {
	_, ok := p.excluded[strings.ToLower(key)]
	return ok
}

// ContentHeaders returns a copy of the content header list.
func (p *HeaderPolicy) ContentHeaders() []string {
	return slices.Clone(p.contentHeaders)
}

// ExcludedHeaders returns the excluded header names in canonical form, sorted.
func (p *HeaderPolicy) ExcludedHeaders() []string {
	names := make([]string, 0, len(p.excluded))
	for name := range p.excluded {
		names = append(names, http.CanonicalHeaderKey(name))
	}
	slices.Sort(names)
	return names
}

// headerValues returns the values stored under name, matching keys
// case-insensitively so non-canonical keys are found too.
func headerValues(h http.Header, name string) []string {
	if vals, ok := h[http.CanonicalHeaderKey(name)]; ok {
		return vals
	}
	for k, vals := range h {
		if strings.EqualFold(k, name) {
			return vals
		}
	}
	return nil
}
