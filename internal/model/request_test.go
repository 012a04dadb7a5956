package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestOutboundRequest_HTTPRequest_ContentOverlay(t *testing.T) {
	content := NewStreamContent(io.NopCloser(strings.NewReader("hello")), 5)
	content.Header().Set("Content-Type", "text/plain")
	content.Header().Set("Content-Length", "5")

	out := &OutboundRequest{
		Method:      http.MethodPost,
		URL:         mustParse(t, "http://downstream.local/a%2Fb?x=1"),
		HTTPVersion: "1.0",
		Header: http.Header{
			"content-type": {"application/json"},
			"Accept":       {"*/*"},
		},
		Content: content,
	}

	req, err := out.HTTPRequest(context.Background())
	if err != nil {
		t.Fatalf("HTTPRequest() error = %v", err)
	}

	if req.URL.String() != "http://downstream.local/a%2Fb?x=1" {
		t.Errorf("URL = %q", req.URL.String())
	}
	if got := req.Header.Values("Content-Type"); len(got) != 1 || got[0] != "text/plain" {
		t.Errorf("Content-Type = %v, want [text/plain]", got)
	}
	if _, ok := req.Header["content-type"]; ok {
		t.Error("non-canonical content-type key survived the overlay")
	}
	if req.Header.Get("Content-Length") != "" {
		t.Error("Content-Length header should be carried by req.ContentLength")
	}
	if req.ContentLength != 5 {
		t.Errorf("ContentLength = %d, want 5", req.ContentLength)
	}
	if req.ProtoMajor != 1 || req.ProtoMinor != 0 {
		t.Errorf("Proto = %d.%d, want 1.0", req.ProtoMajor, req.ProtoMinor)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil || string(body) != "hello" {
		t.Errorf("body = %q, %v; want %q", body, err, "hello")
	}
}

func TestOutboundRequest_HTTPRequest_NoContent(t *testing.T) {
	out := &OutboundRequest{
		Method: http.MethodGet,
		URL:    mustParse(t, "http://downstream.local/"),
		Header: http.Header{"X-Trace": {"1"}},
	}

	req, err := out.HTTPRequest(context.Background())
	if err != nil {
		t.Fatalf("HTTPRequest() error = %v", err)
	}
	if req.Body != nil {
		t.Error("Body should be nil without content")
	}
	if req.ContentLength != 0 {
		t.Errorf("ContentLength = %d, want 0", req.ContentLength)
	}

	// The outbound header must not be aliased.
	req.Header.Set("X-Trace", "2")
	if out.Header.Get("X-Trace") != "1" {
		t.Error("HTTPRequest() shares its header map with the outbound request")
	}
}

func TestOutboundRequest_HTTPRequest_EmptyContent(t *testing.T) {
	out := &OutboundRequest{
		Method:  http.MethodPost,
		URL:     mustParse(t, "http://downstream.local/"),
		Header:  http.Header{},
		Content: NewEmptyContent(),
	}

	req, err := out.HTTPRequest(context.Background())
	if err != nil {
		t.Fatalf("HTTPRequest() error = %v", err)
	}
	if req.Body != http.NoBody {
		t.Errorf("Body = %v, want http.NoBody", req.Body)
	}
	if req.ContentLength != 0 {
		t.Errorf("ContentLength = %d, want 0", req.ContentLength)
	}
}

func TestOutboundRequest_HTTPRequest_InvalidMethod(t *testing.T) {
	out := &OutboundRequest{
		Method: "BAD METHOD",
		URL:    mustParse(t, "http://downstream.local/"),
	}
	if _, err := out.HTTPRequest(context.Background()); err == nil {
		t.Error("HTTPRequest() error = nil, want invalid method error")
	}
}

func TestParseVersionPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    VersionPolicy
		wantErr bool
	}{
		{"", VersionOrLower, false},
		{"RequestVersionOrLower", VersionOrLower, false},
		{"RequestVersionOrHigher", VersionOrHigher, false},
		{"RequestVersionExact", VersionExact, false},
		{"exact", "", true},
	}
	for _, tt := range tests {
		got, err := ParseVersionPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersionPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVersionPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMultipartContent(t *testing.T) {
	parts := []FormPart{{Name: "f", FileName: "a.bin", Data: []byte{1}}, {Name: "v", Data: []byte("x")}}
	c := NewMultipartContent(parts, []byte("encoded"))

	if c.Kind() != ContentMultipart {
		t.Errorf("Kind() = %q", c.Kind())
	}
	if c.Len() != int64(len("encoded")) {
		t.Errorf("Len() = %d", c.Len())
	}
	if !c.Parts()[0].IsFile() || c.Parts()[1].IsFile() {
		t.Error("IsFile() mismatch")
	}
	// The buffered body can be read more than once.
	for range 2 {
		data, err := io.ReadAll(c.Body())
		if err != nil || string(data) != "encoded" {
			t.Errorf("Body() = %q, %v", data, err)
		}
	}
}
