package mapper

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gateway-proxy-go/internal/model"
)

func TestMapHeaders(t *testing.T) {
	src := http.Header{
		"Host":              {"gateway.local"},
		"HOST":              {"other"},
		"Transfer-Encoding": {"chunked"},
		"transfer-encoding": {"gzip, chunked"},
		"Accept":            {"text/html", "application/json"},
		"x-lower-case":      {"kept as-is"},
		"Cookie":            {"a=1", "b=2"},
		"Content-Type":      {"application/json"},
		"X-Empty":           {},
		"X-Bad-Value":       {"line\x7fbreak"},
	}
	dst := make(http.Header)

	mapHeaders(DefaultHeaderPolicy(), src, dst)

	want := http.Header{
		"Accept":       {"text/html", "application/json"},
		"x-lower-case": {"kept as-is"},
		"Cookie":       {"a=1", "b=2"},
		"Content-Type": {"application/json"},
		"X-Bad-Value":  {"line\x7fbreak"},
	}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestMapHeaders_ExtraExclusions(t *testing.T) {
	src := http.Header{
		"Connection":      {"keep-alive"},
		"X-Forwarded-For": {"10.0.0.1"},
		"Accept":          {"*/*"},
	}
	dst := make(http.Header)

	mapHeaders(NewHeaderPolicy([]string{"connection", " X-Forwarded-For ", ""}), src, dst)

	want := http.Header{"Accept": {"*/*"}}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestMapMethod(t *testing.T) {
	tests := []struct {
		name     string
		inbound  string
		override string
		want     string
	}{
		{"override wins", http.MethodGet, http.MethodPut, http.MethodPut},
		{"no override", http.MethodPatch, "", http.MethodPatch},
		{"custom inbound method kept", "PROPFIND", "", "PROPFIND"},
		{"override used verbatim", http.MethodGet, "post", "post"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newInbound()
			in.Method = tt.inbound
			got := mapMethod(in, model.DownstreamRoute{Method: tt.override})
			if got != tt.want {
				t.Errorf("mapMethod() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeaderPolicy(t *testing.T) {
	p := NewHeaderPolicy([]string{"x-internal"})

	for _, name := range []string{"host", "HOST", "Transfer-Encoding", "X-Internal"} {
		if !p.Excluded(name) {
			t.Errorf("Excluded(%q) = false, want true", name)
		}
	}
	if p.Excluded("Accept") {
		t.Error("Excluded(\"Accept\") = true, want false")
	}

	wantExcluded := []string{"Host", "Transfer-Encoding", "X-Internal"}
	if diff := cmp.Diff(wantExcluded, p.ExcludedHeaders()); diff != "" {
		t.Errorf("ExcludedHeaders mismatch (-want +got):\n%s", diff)
	}

	got := p.ContentHeaders()
	if diff := cmp.Diff(contentHeaders, got); diff != "" {
		t.Errorf("ContentHeaders mismatch (-want +got):\n%s", diff)
	}
	got[0] = "X-Mutated"
	if p.ContentHeaders()[0] != "Content-Length" {
		t.Error("ContentHeaders() exposes internal state")
	}
}
