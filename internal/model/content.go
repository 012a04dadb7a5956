package model

import (
	"bytes"
	"io"
	"net/http"
)

// ContentKind names the body representation attached to an outbound request.
type ContentKind string

// Content kinds.
const (
	ContentEmpty     ContentKind = "empty"
	ContentStreamed  ContentKind = "streamed"
	ContentMultipart ContentKind = "multipart"
)

// Content is the body of an outbound request together with the headers that
// describe it.
type Content interface {
	Kind() ContentKind
	// Header holds the content headers (Content-Type, Content-Length, ...).
	Header() http.Header
	// Len returns the body length in bytes, or -1 when unknown.
	Len() int64
	// Body returns the body reader. Streamed content can be read only once.
	Body() io.ReadCloser
}

// EmptyContent is a present body of zero bytes.
type EmptyContent struct {
	header http.Header
}

// NewEmptyContent returns an EmptyContent with no headers.
func NewEmptyContent() *EmptyContent {
	return &EmptyContent{header: make(http.Header)}
}

func (c *EmptyContent) Kind() ContentKind   { return ContentEmpty }
func (c *EmptyContent) Header() http.Header { return c.header }
func (c *EmptyContent) Len() int64          { return 0 }
func (c *EmptyContent) Body() io.ReadCloser { return http.NoBody }

// StreamContent passes the inbound body through without buffering it.
type StreamContent struct {
	header http.Header
	body   io.ReadCloser
	length int64
}

// NewStreamContent wraps body. length is the declared size, or -1 when unknown.
func NewStreamContent(body io.ReadCloser, length int64) *StreamContent {
	if body == nil {
		body = http.NoBody
	}
	return &StreamContent{header: make(http.Header), body: body, length: length}
}

func (c *StreamContent) Kind() ContentKind   { return ContentStreamed }
func (c *StreamContent) Header() http.Header { return c.header }
func (c *StreamContent) Len() int64          { return c.length }
func (c *StreamContent) Body() io.ReadCloser { return c.body }

// FormPart is a single part of a reconstructed multipart form.
type FormPart struct {
	Name        string
	FileName    string // empty for plain fields
	ContentType string // file parts only; may be empty
	Data        []byte
}

// IsFile reports whether the part is a file upload.
func (p FormPart) IsFile() bool {
	return p.FileName != ""
}

// MultipartContent is a multipart/form-data body rebuilt from parsed form
// data. The encoded body is held in memory.
type MultipartContent struct {
	header http.Header
	parts  []FormPart
	data   []byte
}

// NewMultipartContent returns content for the already encoded body.
func NewMultipartContent(parts []FormPart, encoded []byte) *MultipartContent {
	return &MultipartContent{header: make(http.Header), parts: parts, data: encoded}
}

func (c *MultipartContent) Kind() ContentKind   { return ContentMultipart }
func (c *MultipartContent) Header() http.Header { return c.header }
func (c *MultipartContent) Len() int64          { return int64(len(c.data)) }

func (c *MultipartContent) Body() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(c.data))
}

// Parts returns the parts in encoding order.
func (c *MultipartContent) Parts() []FormPart {
	return c.parts
}
