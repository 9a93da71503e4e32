package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Console: true, Stdout: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("result_batch_save", zap.Int("count", 1))
	logger.Warn("result_service_failure", zap.String("op", "save_all"))
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["msg"] != "result_service_failure" || rec["op"] != "save_all" || rec["level"] != "warn" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "desk.log")
	logger, err := New(Options{Format: "legacy", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("result_games_load", zap.Int("games", 3))
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "result_games_load") || !strings.Contains(string(b), " | ") {
		t.Fatalf("unexpected log file contents: %q", b)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", "")
	t.Setenv("LOG_CALLER", "")

	o := OptionsFromEnv("resultsd")
	if o.Level != "debug" || o.Format != "console" || o.Console || o.ShowCaller {
		t.Fatalf("unexpected options: %+v", o)
	}
	if o.File != filepath.Join("logs", "resultsd.log") {
		t.Fatalf("File = %q", o.File)
	}

	t.Setenv("LOG_TO_FILE", "")
	if o := OptionsFromEnv(""); o.File != "" {
		t.Fatalf("file output should be off by default, got %q", o.File)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING") != zap.WarnLevel || parseLevel("nonsense") != zap.InfoLevel {
		t.Fatalf("unexpected level mapping")
	}
}
