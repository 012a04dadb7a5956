package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gateway-proxy-go/internal/config"
)

func TestNewRequestMapper_LogsPolicy(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cfg := &config.Config{Mapper: config.MapperConfig{
		MultipartMaxMemoryBytes: 1 << 20,
		ExcludeHeaders:          []string{"x-forwarded-host"},
	}}

	rm := newRequestMapper(cfg, logger)
	if !rm.Policy().Excluded("X-Forwarded-Host") {
		t.Error("configured exclusion not applied")
	}

	var entry struct {
		Excluded []string `json:"excluded_headers"`
		Content  []string `json:"content_headers"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log entry %q: %v", buf.String(), err)
	}
	want := []string{"Host", "Transfer-Encoding", "X-Forwarded-Host"}
	if diff := cmp.Diff(want, entry.Excluded); diff != "" {
		t.Errorf("excluded_headers mismatch (-want +got):\n%s", diff)
	}
	if len(entry.Content) == 0 || entry.Content[0] != "Content-Length" {
		t.Errorf("content_headers = %v, want the content header list", entry.Content)
	}
}
