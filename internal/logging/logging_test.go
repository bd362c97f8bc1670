package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"msg=\"job admitted\"", "job_id=42", "service=gosched"}},
		{"TEXT", []string{"job_id=42"}},
		{"json", []string{`"msg":"job admitted"`, `"job_id":42`, `"service":"gosched"`}},
		{"", []string{"job_id=42"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(slog.LevelInfo, tt.format, &buf)
			logger.Info("job admitted", "job_id", 42)

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %q missing %q", out, w)
				}
			}
		})
	}
}

func TestNewLoggerWithWriter_JSONIsParseable(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter(slog.LevelDebug, "json", &buf).
		With("component", "scheduler").
		Debug("executor reaped", "outcome", "completed")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["component"] != "scheduler" || rec["outcome"] != "completed" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("job queued")
	logger.Warn("executor did not stop in time")

	out := buf.String()
	if strings.Contains(out, "job queued") {
		t.Errorf("INFO record leaked at WARN level: %s", out)
	}
	if !strings.Contains(out, "executor did not stop in time") {
		t.Errorf("WARN record missing: %s", out)
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic and must accept child loggers.
	Discard().With("component", "x").Error("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{" info ", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"Error", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevelStrict(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevelStrict(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevelStrict(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if lenient := ParseLevel(tt.input); lenient != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, lenient, tt.want)
		}
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"text", "json", "JSON"} {
		if !ValidFormat(f) {
			t.Errorf("ValidFormat(%q) = false", f)
		}
	}
	for _, f := range []string{"", "xml", "logfmt"} {
		if ValidFormat(f) {
			t.Errorf("ValidFormat(%q) = true", f)
		}
	}
}
