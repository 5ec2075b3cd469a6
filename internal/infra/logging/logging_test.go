//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"media-transcoder/internal/config"
)

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "json"}, false)

	ctx := WithJobID(WithTraceID(context.Background(), "trace-1"), "job-1")
	With(ctx, Component(base, "supervisor")).Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for k, want := range map[string]string{"trace_id": "trace-1", "job_id": "job-1", "component": "supervisor", "message": "hello"} {
		if entry[k] != want {
			t.Errorf("%s = %v, want %q", k, entry[k], want)
		}
	}
	if got := TraceID(ctx); got != "trace-1" {
		t.Errorf("TraceID() = %q", got)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, config.LogConfig{Level: "bogus"}, false)
	l.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output should be filtered at info level, got %q", buf.String())
	}
	l.Info().Msg("shown")
	if buf.Len() == 0 {
		t.Fatal("info output missing")
	}
}
