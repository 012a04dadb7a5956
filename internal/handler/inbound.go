package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"gateway-proxy-go/internal/mapper"
	"gateway-proxy-go/internal/model"
)

// newInboundRequest captures r as the mapper expects it: URI components in
// their raw encoded form and headers as the client sent them.
func newInboundRequest(r *http.Request, trustForwardedProto bool, maxMemory int64) (*model.InboundRequest, error) {
	path, query := requestTarget(r)

	in := &model.InboundRequest{
		Method:        r.Method,
		Scheme:        requestScheme(r, trustForwardedProto),
		Host:          r.Host,
		Path:          path,
		Query:         query,
		Header:        r.Header.Clone(),
		ContentLength: declaredLength(r),
		ContentType:   r.Header.Get("Content-Type"),
	}
	if in.Header == nil {
		in.Header = make(http.Header)
	}

	// net/http moves these out of the header map.
	if r.Host != "" {
		in.Header.Set("Host", r.Host)
	}
	if len(r.TransferEncoding) > 0 {
		in.Header.Set("Transfer-Encoding", strings.Join(r.TransferEncoding, ", "))
	}

	if hasBody(r) {
		in.Body = r.Body
	}

	if in.Body != nil && in.ContentLength != 0 && isMultipartForm(in.ContentType) {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
				return in, nil
			}
			return nil, fmt.Errorf("%w: parse multipart form: %w", mapper.ErrBodyRead, err)
		}
		in.Form = r.MultipartForm
	}
	return in, nil
}

// requestTarget splits the raw origin-form request-target into path and query.
func requestTarget(r *http.Request) (path, query string) {
	target := r.RequestURI
	if target == "" || target[0] != '/' {
		return r.URL.EscapedPath(), r.URL.RawQuery
	}
	path, query, _ = strings.Cut(target, "?")
	return path, query
}

func requestScheme(r *http.Request, trustForwardedProto bool) string {
	if trustForwardedProto {
		switch proto := strings.ToLower(r.Header.Get("X-Forwarded-Proto")); proto {
		case "http", "https":
			return proto
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// hasBody reports whether the client sent a body. Middleware such as
// BodyLimit replaces r.Body, so http.NoBody alone cannot be relied on.
func hasBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	return r.ContentLength != 0 || r.Header.Get("Content-Length") != "" || len(r.TransferEncoding) > 0
}

// declaredLength returns the Content-Length sent by the client, or -1.
func declaredLength(r *http.Request) int64 {
	switch {
	case r.ContentLength > 0:
		return r.ContentLength
	case r.ContentLength == 0 && r.Header.Get("Content-Length") != "":
		return 0
	default:
		return -1
	}
}

func isMultipartForm(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "multipart/form-data"
}
