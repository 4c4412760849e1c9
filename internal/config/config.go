// Package config holds runtime configuration for the analysis orchestrator.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values. Everything the orchestrator needs
// is passed in explicitly at construction; nothing reads the environment
// after startup.
type Config struct {
	// AWS
	AWSRegion      string
	ArtifactBucket string
	ResultsBucket  string

	// Engine function names
	RuleFunction       string
	StructuralFunction string
	SemanticFunction   string

	// Orchestration budgets
	PollInterval    time.Duration
	PollMaxAttempts int
	AnalyzeTimeout  time.Duration

	// HTTP API
	ServerPort string
	ServerURL  string // client side

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		AWSRegion:      getEnv("SANDIA_AWS_REGION", ""),
		ArtifactBucket: getEnv("SANDIA_ARTIFACT_BUCKET", "sandia-jobs"),
		ResultsBucket:  getEnv("SANDIA_RESULTS_BUCKET", "sandia-analysis-results"),

		RuleFunction:       getEnv("SANDIA_RULE_FUNCTION", "sandia-static-analyzer"),
		StructuralFunction: getEnv("SANDIA_STRUCTURAL_FUNCTION", "sandia-gnn-analyzer"),
		SemanticFunction:   getEnv("SANDIA_SEMANTIC_FUNCTION", "sandia-bert-analyzer"),

		PollInterval:    getEnvDuration("SANDIA_POLL_INTERVAL", 5*time.Second),
		PollMaxAttempts: getEnvInt("SANDIA_POLL_MAX_ATTEMPTS", 10),
		AnalyzeTimeout:  getEnvDuration("SANDIA_ANALYZE_TIMEOUT", 90*time.Second),

		ServerPort: getEnv("SANDIA_SERVER_PORT", "8181"),
		ServerURL:  getEnv("SANDIA_SERVER_URL", "http://localhost:8181"),

		LogFile:  getEnv("SANDIA_LOG_FILE", "/tmp/sandia.log"),
		LogLevel: parseLogLevel(getEnv("SANDIA_LOG_LEVEL", "INFO")),
	}
}

// fileConfig is the YAML shape of a config file. Durations are strings in
// Go duration syntax ("5s", "2m").
type fileConfig struct {
	AWSRegion      string `yaml:"awsRegion"`
	ArtifactBucket string `yaml:"artifactBucket"`
	ResultsBucket  string `yaml:"resultsBucket"`

	RuleFunction       string `yaml:"ruleFunction"`
	StructuralFunction string `yaml:"structuralFunction"`
	SemanticFunction   string `yaml:"semanticFunction"`

	PollInterval    string `yaml:"pollInterval"`
	PollMaxAttempts int    `yaml:"pollMaxAttempts"`
	AnalyzeTimeout  string `yaml:"analyzeTimeout"`

	ServerPort string `yaml:"serverPort"`
	ServerURL  string `yaml:"serverUrl"`

	LogFile  string `yaml:"logFile"`
	LogLevel string `yaml:"logLevel"`
}

// LoadWithFile layers a YAML config file under the environment: file values
// fill the gaps, environment variables win.
func LoadWithFile(path string) (Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	applyIfUnset("SANDIA_AWS_REGION", fc.AWSRegion, &cfg.AWSRegion)
	applyIfUnset("SANDIA_ARTIFACT_BUCKET", fc.ArtifactBucket, &cfg.ArtifactBucket)
	applyIfUnset("SANDIA_RESULTS_BUCKET", fc.ResultsBucket, &cfg.ResultsBucket)
	applyIfUnset("SANDIA_RULE_FUNCTION", fc.RuleFunction, &cfg.RuleFunction)
	applyIfUnset("SANDIA_STRUCTURAL_FUNCTION", fc.StructuralFunction, &cfg.StructuralFunction)
	applyIfUnset("SANDIA_SEMANTIC_FUNCTION", fc.SemanticFunction, &cfg.SemanticFunction)
	applyIfUnset("SANDIA_SERVER_PORT", fc.ServerPort, &cfg.ServerPort)
	applyIfUnset("SANDIA_SERVER_URL", fc.ServerURL, &cfg.ServerURL)
	applyIfUnset("SANDIA_LOG_FILE", fc.LogFile, &cfg.LogFile)

	if fc.LogLevel != "" && os.Getenv("SANDIA_LOG_LEVEL") == "" {
		cfg.LogLevel = parseLogLevel(fc.LogLevel)
	}
	if fc.PollMaxAttempts > 0 && os.Getenv("SANDIA_POLL_MAX_ATTEMPTS") == "" {
		cfg.PollMaxAttempts = fc.PollMaxAttempts
	}
	if fc.PollInterval != "" && os.Getenv("SANDIA_POLL_INTERVAL") == "" {
		d, err := time.ParseDuration(fc.PollInterval)
		if err != nil {
			return cfg, fmt.Errorf("parse pollInterval: %w", err)
		}
		cfg.PollInterval = d
	}
	if fc.AnalyzeTimeout != "" && os.Getenv("SANDIA_ANALYZE_TIMEOUT") == "" {
		d, err := time.ParseDuration(fc.AnalyzeTimeout)
		if err != nil {
			return cfg, fmt.Errorf("parse analyzeTimeout: %w", err)
		}
		cfg.AnalyzeTimeout = d
	}

	return cfg, nil
}

func applyIfUnset(envKey, fileVal string, target *string) {
	if fileVal != "" && os.Getenv(envKey) == "" {
		*target = fileVal
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
