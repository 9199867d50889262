package observability

import (
	"context"
	"strings"
	"testing"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestWriterLogger(t *testing.T) {
	var sb strings.Builder
	log := NewWriterLogger(&sb, false)
	log.Debug("hidden")
	log.Info("loaded", Int("pages", 3))
	out := sb.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("debug emitted without verbose")
	}
	if !strings.Contains(out, "loaded") || !strings.Contains(out, "pages=3") {
		t.Fatalf("missing info line: %q", out)
	}
}

func TestWriterLoggerWith(t *testing.T) {
	var sb strings.Builder
	log := NewWriterLogger(&sb, true).With(String("tool", "merge"))
	log.Debug("start")
	if !strings.Contains(sb.String(), "tool=merge") {
		t.Fatalf("bound field missing: %q", sb.String())
	}
}
