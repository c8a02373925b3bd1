package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriterRenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelInfo)

	log.Info("load failed", "error", "boom")

	out := buf.String()
	if !strings.Contains(out, "err=boom") {
		t.Fatalf("expected err=boom in output, got %q", out)
	}
	if strings.Contains(out, "error=") {
		t.Fatalf("error key should be renamed, got %q", out)
	}
}

func TestNewWithWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelWarn)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("below-level records leaked: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	log := NewNop()
	log.Info("ignored")
	log.Error("ignored", "error", "boom")
}
