package lgr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	xerrors "github.com/mdobak/go-xerrors"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONErrorCarriesTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "json", Writer: &buf})

	logger.Error("upload failed", slog.Any("error", xerrors.New("bucket not found")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	errAttr, ok := rec["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error group, got %v", rec["error"])
	}
	if errAttr["msg"] != "bucket not found" {
		t.Errorf("unexpected msg: %v", errAttr["msg"])
	}
	if _, ok := errAttr["trace"]; !ok {
		t.Error("expected stack trace in error group")
	}
}

func TestPlainErrorHasNoTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "json", Writer: &buf})

	logger.Error("publish failed", slog.Any("error", errors.New("timeout")))

	if strings.Contains(buf.String(), `"trace"`) {
		t.Errorf("did not expect a trace: %s", buf.String())
	}
}

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "debug", Writer: &buf})

	logger.With(slog.String("runId", "r1")).Debug("frame captured", slog.Int("frames", 3))

	out := buf.String()
	for _, want := range []string{"frame captured", `"runId":"r1"`, `"frames":3`, "DEBUG:"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Writer: &buf})

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %q", buf.String())
	}
}

func TestTraceIDsFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "json", Writer: &buf})

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "iteration")

	if !strings.Contains(buf.String(), `"traceId":"0102030405060708090a0b0c0d0e0f10"`) {
		t.Errorf("expected trace id in %q", buf.String())
	}
}
