package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LogLevelDebug},
		{"INFO", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{" error ", LogLevelError},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogLevelWarn, "test")

	l.Debugf("debug line")
	l.Infof("info line")
	l.Warnf("warn line")
	l.Errorf("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("lines below warn were written: %q", out)
	}
	if !strings.Contains(out, "WARN test: warn line") {
		t.Errorf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "ERROR test: error line") {
		t.Errorf("missing error line: %q", out)
	}
}

func TestLogger_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogLevelDebug, "poller")
	l.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }

	l.Infof("poll_done attempt=%d", 3)

	want := "2026-10-19T09:00:00Z INFO poller: poll_done attempt=3\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestLogger_WithKeepsOutputAndLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, LogLevelInfo, "runner")
	child := parent.With("mercury")

	child.Debugf("hidden")
	child.Infof("visible")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("child logger ignored parent level")
	}
	if !strings.Contains(buf.String(), "INFO mercury: visible") {
		t.Errorf("child component not applied: %q", buf.String())
	}
}

func TestLogger_NilIsSafe(t *testing.T) {
	var l *Logger
	l.Infof("nothing %d", 1)
	if l.With("x") != nil {
		t.Error("With on nil logger should return nil")
	}
}
