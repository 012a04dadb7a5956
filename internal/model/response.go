package model

import (
	"io"
	"net/http"
)

// ProxyResponse represents the downstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
