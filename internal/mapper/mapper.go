// Package mapper translates inbound proxy requests into downstream requests.
//
// A RequestMapper carries no per-request state and is safe for concurrent use.
// It performs no logging and no retries; errors are returned to the caller.
//
// Bodies are streamed through unless the request is multipart/form-data, in
// which case the form is re-encoded and every uploaded file is held in memory
// until the downstream request is sent. Memory use on that path grows with the
// upload size; [server] body_max_bytes bounds it.
package mapper

import (
	"context"
	"net/http"

	"gateway-proxy-go/internal/model"
)

// DefaultMultipartMaxMemory is the in-memory budget for multipart forms the
// mapper has to parse itself; larger file parts spill to temporary files.
const DefaultMultipartMaxMemory = 32 << 20

// RequestMapper builds an OutboundRequest from an InboundRequest.
type RequestMapper struct {
	policy             *HeaderPolicy
	multipartMaxMemory int64
}

// New creates a RequestMapper. A nil policy selects DefaultHeaderPolicy and a
// non-positive multipartMaxMemory selects DefaultMultipartMaxMemory.
func New(policy *HeaderPolicy, multipartMaxMemory int64) *RequestMapper {
	if policy == nil {
		policy = DefaultHeaderPolicy()
	}
	if multipartMaxMemory <= 0 {
		multipartMaxMemory = DefaultMultipartMaxMemory
	}
	return &RequestMapper{policy: policy, multipartMaxMemory: multipartMaxMemory}
}

// Map returns the downstream request for in. The route's HTTP version and
// version policy are copied without interpretation.
//
// Errors wrap ErrMalformedURI or ErrBodyRead. On error no request is returned
// and nothing must be forwarded.
func (m *RequestMapper) Map(ctx context.Context, in *model.InboundRequest, route model.DownstreamRoute) (*model.OutboundRequest, error) {
	content, err := m.mapContent(ctx, in)
	if err != nil {
		return nil, err
	}

	u, err := mapURI(in)
	if err != nil {
		return nil, err
	}

	out := &model.OutboundRequest{
		Method:        mapMethod(in, route),
		URL:           u,
		HTTPVersion:   route.HTTPVersion,
		VersionPolicy: route.VersionPolicy,
		Header:        make(http.Header, len(in.Header)),
		Content:       content,
	}
	mapHeaders(m.policy, in.Header, out.Header)
	return out, nil
}

// Policy returns the header policy in use.
func (m *RequestMapper) Policy() *HeaderPolicy {
	return m.policy
}
