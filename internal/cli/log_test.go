package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLoggerFromContext_Fallback(t *testing.T) {
	if loggerFromContext(context.Background()) == nil {
		t.Fatal("expected default logger for bare context")
	}
}

func TestLoggerFromContext_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, log.DebugLevel)
	ctx := withLogger(context.Background(), l)

	got := loggerFromContext(ctx)
	if got != l {
		t.Fatal("logger did not round-trip through context")
	}
	got.Debug("probe")
	if !strings.Contains(buf.String(), "probe") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, log.InfoLevel)
	l.Debug("hidden")
	l.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message leaked at info level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info message missing")
	}
}

func TestProgress_Done(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(newLogger(&buf, log.InfoLevel))
	p.done("Refreshed 3 repositories")

	out := buf.String()
	if !strings.Contains(out, "Refreshed 3 repositories") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "(") || !strings.Contains(out, "s)") {
		t.Errorf("output missing elapsed time: %q", out)
	}
}
