package mapper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"gateway-proxy-go/internal/model"
)

// newInbound returns a body-less GET for http://gateway.local/.
func newInbound() *model.InboundRequest {
	return &model.InboundRequest{
		Method:        http.MethodGet,
		Scheme:        "http",
		Host:          "gateway.local",
		Path:          "/",
		Header:        http.Header{},
		ContentLength: -1,
	}
}

var defaultRoute = model.DownstreamRoute{
	HTTPVersion:   "1.1",
	VersionPolicy: model.VersionOrLower,
}

func TestMap_NoBody(t *testing.T) {
	m := New(nil, 0)
	in := newInbound()
	in.Path = "/a/b"
	in.Query = "x=1"
	in.Header.Set("Accept", "application/json")

	out, err := m.Map(context.Background(), in, defaultRoute)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if out.Content != nil {
		t.Errorf("Content = %v, want nil", out.Content.Kind())
	}
	if out.Method != http.MethodGet {
		t.Errorf("Method = %q, want %q", out.Method, http.MethodGet)
	}
	if got := out.URL.String(); got != "http://gateway.local/a/b?x=1" {
		t.Errorf("URL = %q, want %q", got, "http://gateway.local/a/b?x=1")
	}
	if out.HTTPVersion != "1.1" {
		t.Errorf("HTTPVersion = %q, want %q", out.HTTPVersion, "1.1")
	}
	if out.VersionPolicy != model.VersionOrLower {
		t.Errorf("VersionPolicy = %q, want %q", out.VersionPolicy, model.VersionOrLower)
	}
	if got := out.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want %q", got, "application/json")
	}
}

func TestMap_VersionFieldsPassedThrough(t *testing.T) {
	m := New(nil, 0)
	route := model.DownstreamRoute{HTTPVersion: "2.0", VersionPolicy: model.VersionExact}

	out, err := m.Map(context.Background(), newInbound(), route)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if out.HTTPVersion != "2.0" || out.VersionPolicy != model.VersionExact {
		t.Errorf("version = %q/%q, want %q/%q", out.HTTPVersion, out.VersionPolicy, "2.0", model.VersionExact)
	}
}

func TestMap_MethodOverride(t *testing.T) {
	m := New(nil, 0)
	in := newInbound()
	route := defaultRoute
	route.Method = http.MethodPut

	out, err := m.Map(context.Background(), in, route)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if out.Method != http.MethodPut {
		t.Errorf("Method = %q, want %q", out.Method, http.MethodPut)
	}
}

func TestMap_MalformedURI(t *testing.T) {
	m := New(nil, 0)
	in := newInbound()
	in.Path = "/bad%zz"

	out, err := m.Map(context.Background(), in, defaultRoute)
	if !errors.Is(err, ErrMalformedURI) {
		t.Fatalf("Map() error = %v, want ErrMalformedURI", err)
	}
	if out != nil {
		t.Error("Map() returned a request alongside the error")
	}
}

func TestMap_BodyReadFailureFromMultipart(t *testing.T) {
	m := New(nil, 0)
	in := newInbound()
	in.Method = http.MethodPost
	in.ContentType = "multipart/form-data" // no boundary
	in.ContentLength = 10
	in.Body = io.NopCloser(bytes.NewReader([]byte("0123456789")))

	out, err := m.Map(context.Background(), in, defaultRoute)
	if !errors.Is(err, ErrBodyRead) {
		t.Fatalf("Map() error = %v, want ErrBodyRead", err)
	}
	if out != nil {
		t.Error("Map() returned a request alongside the error")
	}
}

func TestMap_HeadersNeverCarryHopByHop(t *testing.T) {
	m := New(nil, 0)
	in := newInbound()
	in.Method = http.MethodPost
	in.Body = io.NopCloser(bytes.NewReader([]byte("abc")))
	in.Header = http.Header{
		"Host":              {"gateway.local"},
		"transfer-encoding": {"chunked"},
		"X-Trace":           {"1", "2"},
	}

	out, err := m.Map(context.Background(), in, defaultRoute)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	want := http.Header{"X-Trace": {"1", "2"}}
	if diff := cmp.Diff(want, out.Header); diff != "" {
		t.Errorf("Header mismatch (-want +got):\n%s", diff)
	}
	if out.Content == nil || out.Content.Kind() != model.ContentStreamed {
		t.Fatalf("Content = %v, want streamed", out.Content)
	}
	if got := out.Content.Len(); got != -1 {
		t.Errorf("Len() = %d, want -1 for chunked body", got)
	}
}

func TestMap_ConcurrentCallsAreIndependent(t *testing.T) {
	m := New(nil, 0)
	g, ctx := errgroup.WithContext(context.Background())

	for i := range 64 {
		g.Go(func() error {
			body := fmt.Sprintf("payload-%d", i)
			in := newInbound()
			in.Method = http.MethodPost
			in.Path = fmt.Sprintf("/items/%d", i)
			in.Header.Set("X-Request-Index", fmt.Sprint(i))
			in.ContentLength = int64(len(body))
			in.Body = io.NopCloser(bytes.NewReader([]byte(body)))

			out, err := m.Map(ctx, in, defaultRoute)
			if err != nil {
				return err
			}
			got, err := io.ReadAll(out.Content.Body())
			if err != nil {
				return err
			}
			if string(got) != body {
				return fmt.Errorf("request %d: body = %q, want %q", i, got, body)
			}
			if h := out.Header.Get("X-Request-Index"); h != fmt.Sprint(i) {
				return fmt.Errorf("request %d: X-Request-Index = %q", i, h)
			}
			if p := out.URL.Path; p != fmt.Sprintf("/items/%d", i) {
				return fmt.Errorf("request %d: path = %q", i, p)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestNew_Defaults(t *testing.T) {
	m := New(nil, -5)
	if m.Policy() == nil {
		t.Fatal("Policy() = nil, want default policy")
	}
	if m.multipartMaxMemory != DefaultMultipartMaxMemory {
		t.Errorf("multipartMaxMemory = %d, want %d", m.multipartMaxMemory, DefaultMultipartMaxMemory)
	}
}
