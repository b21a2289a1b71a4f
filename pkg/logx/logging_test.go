package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestLoggerWritesFieldsInOrder(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, "debug").With(String("comp", "engine"))

	log.Info("action fired", String("comp", "override"), Int("pending", 2), Err(errors.New("boom")))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if got["message"] != "action fired" {
		t.Fatalf("message = %v", got["message"])
	}
	if got["comp"] != "override" {
		t.Fatalf("comp = %v, want call-site field to win", got["comp"])
	}
	if got["pending"] != float64(2) {
		t.Fatalf("pending = %v", got["pending"])
	}
	if _, ok := got["caller"]; !ok {
		t.Fatal("expected caller field")
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, "warn")
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	if log.Enabled(LevelInfo) {
		t.Fatal("info should be disabled")
	}
	log.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("warn not written")
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	t.Parallel()
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	log.Error("nothing happens")
	if Nop().IsZero() {
		t.Fatal("Nop logger is not zero")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]Level{
		"trace":   LevelTrace,
		" DEBUG ": LevelDebug,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
