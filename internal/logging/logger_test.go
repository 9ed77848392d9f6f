package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogExtraction_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	log.LogExtraction(context.Background(), "ok.png", nil)
	if buf.Len() != 0 {
		t.Errorf("successful extraction should log at debug, got %s", buf.String())
	}

	log.LogExtraction(context.Background(), "bad.png", errors.New("decode failed"))
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" || rec["filename"] != "bad.png" || rec["error"] != "decode failed" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "text").With("request_id", "r1")
	log.LogDelete(context.Background(), "a.png", nil)
	if !strings.Contains(buf.String(), "request_id=r1") || !strings.Contains(buf.String(), "filename=a.png") {
		t.Errorf("expected request_id and filename, got %s", buf.String())
	}
}
