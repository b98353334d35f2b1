package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_UsesJSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(Options{Level: "debug", Writer: &buf, Component: "landform"})
	lg.Debug("boot", "k", "v")

	out := strings.TrimSpace(buf.String())
	if !strings.Contains(out, `"level":"DEBUG"`) {
		t.Fatalf("expected DEBUG level, got %s", out)
	}
	if !strings.Contains(out, `"component":"landform"`) {
		t.Fatalf("expected component field, got %s", out)
	}
}

func TestNewLogger_TextFormatAndFiltering(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(Options{Level: "warn", Format: "text", Writer: &buf})
	lg.Info("dropped")
	lg.Warn("kept", "project_id", "p1")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info should be filtered at warn level, got %s", out)
	}
	if !strings.Contains(out, "msg=kept") || !strings.Contains(out, "project_id=p1") {
		t.Fatalf("expected text handler output, got %s", out)
	}
}

func TestDiscard_DropsErrors(t *testing.T) {
	lg := Discard()
	if lg.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("discard logger should not be enabled for error level")
	}
}
