package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	oldLogger := defaultLogger
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f()
	defaultLogger = oldLogger
	return buf.String()
}

func decode(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", line, err)
	}
	return m
}

func TestInitLoggerTo(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		format  Format
		logFn   func()
		want    string
		visible bool
	}{
		{"json info", LevelInfo, FormatJSON, func() { Info("hello", "k", "v") }, `"msg":"hello"`, true},
		{"text info", LevelInfo, FormatText, func() { Info("hello", "k", "v") }, "msg=hello", true},
		{"debug hidden at info", LevelInfo, FormatText, func() { Debug("quiet") }, "quiet", false},
		{"debug shown at debug", LevelDebug, FormatText, func() { Debug("loud") }, "loud", true},
		{"warn hidden at error", LevelError, FormatJSON, func() { Warn("careful") }, "careful", false},
		{"error shown at error", LevelError, FormatJSON, func() { Error("boom") }, "boom", true},
	}
	defer InitLogger(LevelInfo, FormatText)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitLoggerTo(&buf, tt.level, tt.format)
			tt.logFn()
			if got := strings.Contains(buf.String(), tt.want); got != tt.visible {
				t.Errorf("output %q contains %q = %v, want %v", buf.String(), tt.want, got, tt.visible)
			}
		})
	}
}

func TestReplaceAttrTimestamp(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelInfo, FormatJSON)
	defer InitLogger(LevelInfo, FormatText)

	Info("stamp")
	m := decode(t, strings.TrimSpace(buf.String()))
	ts, ok := m["time"].(string)
	if !ok {
		t.Fatalf("no time field in %v", m)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	levels := map[string]Level{
		"debug": LevelDebug, "INFO": LevelInfo, "warn": LevelWarn,
		"warning": LevelWarn, " error ": LevelError, "bogus": LevelInfo,
	}
	for in, want := range levels {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if ParseFormat("JSON") != FormatJSON || ParseFormat("text") != FormatText || ParseFormat("") != FormatText {
		t.Error("ParseFormat mismatch")
	}
}

func TestSessionID(t *testing.T) {
	ctx := context.Background()
	if GetSessionID(ctx) != "" {
		t.Error("empty context should have no session ID")
	}
	ctx = WithSessionID(ctx, "abc-123")
	if got := GetSessionID(ctx); got != "abc-123" {
		t.Errorf("GetSessionID() = %q", got)
	}

	output := captureLogOutput(func() {
		LoggerFromContext(ctx).Info("with session")
	})
	if m := decode(t, strings.TrimSpace(output)); m["session_id"] != "abc-123" {
		t.Errorf("session_id = %v", m["session_id"])
	}
}

func TestDocumentEvents(t *testing.T) {
	ctx := WithSessionID(context.Background(), "s1")
	output := captureLogOutput(func() {
		DocumentStart(ctx, "import", "doc1", "files", 5)
		DocumentDone(ctx, "import", "doc1", 1500*time.Millisecond)
		DocumentFailed(ctx, "import", "doc2", errors.New("unresolved pointer"))
	})

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), output)
	}
	start := decode(t, lines[0])
	if start["msg"] != "document_start" || start["document"] != "doc1" || start["files"] != float64(5) {
		t.Errorf("start = %v", start)
	}
	done := decode(t, lines[1])
	if done["duration_ms"] != float64(1500) || done["session_id"] != "s1" {
		t.Errorf("done = %v", done)
	}
	failed := decode(t, lines[2])
	if failed["level"] != "ERROR" || failed["error"] != "unresolved pointer" {
		t.Errorf("failed = %v", failed)
	}
}

func TestDroppedMarkable(t *testing.T) {
	output := captureLogOutput(func() {
		DroppedMarkable(nil, "doc.mark.xml", "m1", "#tok_9", errors.New("target does not exist"))
	})
	m := decode(t, strings.TrimSpace(output))
	if m["level"] != "WARN" || m["msg"] != "dropped_markable" || m["href"] != "#tok_9" || m["id"] != "m1" {
		t.Errorf("dropped_markable = %v", m)
	}

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	DroppedMarkable(l, "f.xml", "m2", "#x", errors.New("gone"))
	if !strings.Contains(buf.String(), "id=m2") {
		t.Errorf("explicit logger not used: %q", buf.String())
	}
}
