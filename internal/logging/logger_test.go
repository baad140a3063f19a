package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidmerge/internal/config"
	"vidmerge/internal/logging"
	"vidmerge/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "console"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "vidmerge.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "merge").Info("message without caller", logging.String("video_id", "abc"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
	if !strings.Contains(line, "merge: message without caller") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "video_id=abc") {
		t.Fatalf("expected field, got %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestJSONLoggerRenamesKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["level"] != "info" || payload["k"] != "v" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithRequestID(context.Background(), "req-xyz")
	ctx = services.WithStage(ctx, "join")
	ctx = services.WithRunID(ctx, "merge-1")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, logger).Info("contextual log")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for key, want := range map[string]string{
		logging.FieldCorrelationID: "req-xyz",
		logging.FieldStage:         "join",
		logging.FieldRunID:         "merge-1",
	} {
		if payload[key] != want {
			t.Fatalf("field %s = %v, want %q", key, payload[key], want)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "cleanup failed", "staging_cleanup_failed")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing %s in %v", key, payload)
		}
	}
}
