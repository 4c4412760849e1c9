package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.ArtifactBucket != "sandia-jobs" {
		t.Errorf("ArtifactBucket = %s, want sandia-jobs", cfg.ArtifactBucket)
	}
	if cfg.ResultsBucket != "sandia-analysis-results" {
		t.Errorf("ResultsBucket = %s, want sandia-analysis-results", cfg.ResultsBucket)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 10 {
		t.Errorf("PollMaxAttempts = %d, want 10", cfg.PollMaxAttempts)
	}
	if cfg.AnalyzeTimeout != 90*time.Second {
		t.Errorf("AnalyzeTimeout = %v, want 90s", cfg.AnalyzeTimeout)
	}
	if cfg.ServerPort != "8181" {
		t.Errorf("ServerPort = %s, want 8181", cfg.ServerPort)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SANDIA_RESULTS_BUCKET", "custom-results")
	t.Setenv("SANDIA_POLL_INTERVAL", "250ms")
	t.Setenv("SANDIA_POLL_MAX_ATTEMPTS", "3")
	t.Setenv("SANDIA_LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.ResultsBucket != "custom-results" {
		t.Errorf("ResultsBucket = %s, want custom-results", cfg.ResultsBucket)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 3 {
		t.Errorf("PollMaxAttempts = %d, want 3", cfg.PollMaxAttempts)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("SANDIA_POLL_MAX_ATTEMPTS", "lots")
	t.Setenv("SANDIA_POLL_INTERVAL", "soon")
	t.Setenv("SANDIA_LOG_LEVEL", "chatty")

	cfg := Load()

	if cfg.PollMaxAttempts != 10 {
		t.Errorf("PollMaxAttempts = %d, want default 10", cfg.PollMaxAttempts)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want default 5s", cfg.PollInterval)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want default info", cfg.LogLevel)
	}
}

func TestLoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
resultsBucket: file-results
ruleFunction: file-scanner
pollInterval: 2s
pollMaxAttempts: 4
logLevel: warn
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// Environment beats the file.
	t.Setenv("SANDIA_RESULTS_BUCKET", "env-results")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}

	if cfg.ResultsBucket != "env-results" {
		t.Errorf("ResultsBucket = %s, want env-results (env wins)", cfg.ResultsBucket)
	}
	if cfg.RuleFunction != "file-scanner" {
		t.Errorf("RuleFunction = %s, want file-scanner", cfg.RuleFunction)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 4 {
		t.Errorf("PollMaxAttempts = %d, want 4", cfg.PollMaxAttempts)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
	// Untouched values keep their defaults.
	if cfg.ServerPort != "8181" {
		t.Errorf("ServerPort = %s, want 8181", cfg.ServerPort)
	}
}

func TestLoadWithFile_Errors(t *testing.T) {
	if _, err := LoadWithFile("/nonexistent/config.yaml"); err == nil {
		t.Error("missing file must be an error")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("pollInterval: [broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWithFile(bad); err == nil {
		t.Error("malformed YAML must be an error")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// The fanout must produce human-readable text on one side and structured
// JSON on the other, at the same level.
func TestNewLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := NewLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("analysis started", "artifact_id", "abc123")
	logger.Debug("suppressed")

	if !bytes.Contains(stderr.Bytes(), []byte("analysis started")) {
		t.Error("text output missing message")
	}
	if bytes.Contains(stderr.Bytes(), []byte("suppressed")) {
		t.Error("debug record must be filtered at info level")
	}

	var record map[string]any
	if err := json.Unmarshal(file.Bytes(), &record); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if record["artifact_id"] != "abc123" {
		t.Errorf("artifact_id = %v, want abc123", record["artifact_id"])
	}
}
