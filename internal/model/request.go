// Package model defines shared types for the proxy.
package model

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// InboundRequest is a client request as received by the proxy front end.
// URI components are kept in their on-the-wire encoded form.
type InboundRequest struct {
	Method string
	Scheme string
	Host   string
	Path   string // encoded path, e.g. "/a%20b"
	Query  string // encoded query without the leading '?'

	Header http.Header
	// Body is nil when the request carries no body.
	Body io.ReadCloser
	// ContentLength is the declared body length, or -1 when none was declared.
	ContentLength int64
	ContentType   string
	// Form is set only for multipart/form-data requests.
	Form *multipart.Form
}

// HasDeclaredLength reports whether the client declared a body length.
func (r *InboundRequest) HasDeclaredLength() bool {
	return r.ContentLength >= 0
}

// OutboundRequest is the request sent to the downstream service.
type OutboundRequest struct {
	Method        string
	URL           *url.URL
	HTTPVersion   string
	VersionPolicy VersionPolicy
	Header        http.Header
	// Content is nil when the request has no body.
	Content Content
}

// HTTPRequest converts o into a request for an http.Client. Content headers
// replace any same-named entries in o.Header. The returned request takes
// ownership of the content body.
func (o *OutboundRequest) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, o.Method, o.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build downstream request: %w", err)
	}

	req.Header = make(http.Header, len(o.Header))
	for k, vals := range o.Header {
		req.Header[k] = append([]string(nil), vals...)
	}

	if major, minor, ok := http.ParseHTTPVersion("HTTP/" + o.HTTPVersion); ok {
		req.Proto = "HTTP/" + o.HTTPVersion
		req.ProtoMajor = major
		req.ProtoMinor = minor
	}

	if o.Content == nil {
		return req, nil
	}

	for k, vals := range o.Content.Header() {
		deleteHeaderFold(req.Header, k)
		req.Header[k] = append([]string(nil), vals...)
	}
	// net/http writes Content-Length from req.ContentLength.
	deleteHeaderFold(req.Header, "Content-Length")
	req.ContentLength = o.Content.Len()
	req.Body = o.Content.Body()
	return req, nil
}

// deleteHeaderFold removes every key of h equal to key under case folding,
// including keys that were not stored in canonical form.
func deleteHeaderFold(h http.Header, key string) {
	for k := range h {
		if strings.EqualFold(k, key) {
			delete(h, k)
		}
	}
}
