package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dougsko/fmd/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn, false)

	logger.Infof("fm", "hidden %d", 1)
	logger.Warnf("fm", "shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected info line to be filtered")
	}
	if !strings.Contains(out, "[WARN] fm: shown 2") {
		t.Errorf("Unexpected output: %q", out)
	}

	logger.SetLevel(LevelDebug)
	logger.Debug("reader", "now visible", Fields{"b": 2, "a": 1})
	if !strings.Contains(buf.String(), "reader: now visible [a=1 b=2]") {
		t.Errorf("Expected sorted fields, got %q", buf.String())
	}
}

func TestStructuredFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo, true)

	logger.WithFields(Fields{"khz": 98100}).Infof("engine", "tuned to %q", "BBC")

	var line map[string]string
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("Expected valid JSON, got %q: %v", buf.String(), err)
	}
	if line["component"] != "engine" || line["level"] != "INFO" {
		t.Errorf("Unexpected line: %v", line)
	}
	if line["message"] != `tuned to "BBC"` {
		t.Errorf("Expected quoted message to survive, got %q", line["message"])
	}
	if line["khz"] != "98100" {
		t.Errorf("Expected field khz, got %v", line)
	}
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Logging.Level = "debug"
	cfg.Logging.File = filepath.Join(dir, "logs", "fmd.log")
	cfg.Logging.MaxSize = 1

	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("storage", "recorded scan")
	if err := logger.Close(); err != nil {
		t.Fatalf("Failed to close logger: %v", err)
	}

	data, err := os.ReadFile(cfg.Logging.File)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(data), "storage: recorded scan") {
		t.Errorf("Unexpected log file content: %q", data)
	}
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := GetGlobalLogger()
	SetGlobalLogger(NewWriterLogger(&buf, LevelDebug, false))
	defer SetGlobalLogger(prev)

	Errorf("main", "boom: %v", "x")
	if !strings.Contains(buf.String(), "[ERROR] main: boom: x") {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}
