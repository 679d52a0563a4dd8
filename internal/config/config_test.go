package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:         8080,
			Address:      "0.0.0.0",
			ReadTimeout:  60,
			WriteTimeout: 30,
		},
		Chunking: ChunkingConfig{
			MaxChunkBytes:    20 * 1024 * 1024,
			MaxChunkDuration: 600,
			MinChunkDuration: 30,
		},
		Pipeline: PipelineConfig{
			MaxParallelRequests: 1,
			MaxUploadBytes:      100 * 1024 * 1024,
			MaxActiveRuns:       2,
		},
		Transcription: TranscriptionConfig{
			Backend:       "http",
			Endpoint:      "https://api.example.com/transcribe",
			APIKey:        "test-key",
			Timeout:       30,
			MaxConcurrent: 4,
		},
		Runs: RunsConfig{
			Retention:       3600,
			CleanupInterval: 60,
		},
		Events: EventsConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			modify:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid http port",
			modify:      func(c *Config) { c.HTTP.Port = 70000 },
			expectError: true,
			errorMsg:    "http port must be between 1 and 65535",
		},
		{
			name: "min chunk duration greater than max",
			modify: func(c *Config) {
				c.Chunking.MinChunkDuration = 700
			},
			expectError: true,
			errorMsg:    "max_chunk_duration",
		},
		{
			name:        "non-positive chunk bytes",
			modify:      func(c *Config) { c.Chunking.MaxChunkBytes = 0 },
			expectError: true,
			errorMsg:    "max_chunk_bytes must be positive",
		},
		{
			name:        "zero parallel requests",
			modify:      func(c *Config) { c.Pipeline.MaxParallelRequests = 0 },
			expectError: true,
			errorMsg:    "max_parallel_requests must be at least 1",
		},
		{
			name:        "unknown backend",
			modify:      func(c *Config) { c.Transcription.Backend = "grpc" },
			expectError: true,
			errorMsg:    "backend must be 'http' or 'openai'",
		},
		{
			name:        "http backend without endpoint",
			modify:      func(c *Config) { c.Transcription.Endpoint = "" },
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name: "openai backend without endpoint",
			modify: func(c *Config) {
				c.Transcription.Backend = "openai"
				c.Transcription.Endpoint = ""
			},
			expectError: false,
		},
		{
			name: "openai backend without key",
			modify: func(c *Config) {
				c.Transcription.Backend = "openai"
				c.Transcription.APIKey = ""
			},
			expectError: true,
			errorMsg:    "api_key cannot be empty",
		},
		{
			name:        "zero retention",
			modify:      func(c *Config) { c.Runs.Retention = 0 },
			expectError: true,
			errorMsg:    "retention must be at least 1 second",
		},
		{
			name:        "events enabled without brokers",
			modify:      func(c *Config) { c.Events.Enabled = true; c.Events.Topic = "t" },
			expectError: true,
			errorMsg:    "brokers cannot be empty",
		},
		{
			name:        "invalid log level",
			modify:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modify(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestDefaultIsValidWithEndpoint(t *testing.T) {
	config := Default()
	config.Transcription.Endpoint = "http://localhost:8000/transcribe"
	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate once an endpoint is set: %v", err)
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("TEST_STT_KEY", "secret-from-env")

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
		check       func(t *testing.T, c *Config)
	}{
		{
			name: "valid config file",
			configYAML: `
http:
  port: 9090
  address: "127.0.0.1"
chunking:
  max_chunk_bytes: 10485760
  max_chunk_duration: 300
  min_chunk_duration: 15
pipeline:
  max_parallel_requests: 2
transcription:
  backend: "http"
  endpoint: "https://api.example.com/transcribe"
  api_key: "${TEST_STT_KEY}"
  timeout: 30
  max_concurrent: 4
events:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topic: "transcripts"
logging:
  level: "debug"
  format: "text"
`,
			check: func(t *testing.T, c *Config) {
				if c.HTTP.Port != 9090 {
					t.Errorf("Expected port 9090, got %d", c.HTTP.Port)
				}
				if c.Transcription.APIKey != "secret-from-env" {
					t.Errorf("Expected expanded api key, got %q", c.Transcription.APIKey)
				}
				if c.Chunking.MaxChunkDuration != 300 {
					t.Errorf("Expected max chunk duration 300, got %v", c.Chunking.MaxChunkDuration)
				}
				if len(c.Events.Brokers) != 2 {
					t.Errorf("Expected 2 brokers, got %d", len(c.Events.Brokers))
				}
				// Missing keys keep their defaults
				if c.Runs.Retention != 3600 {
					t.Errorf("Expected default retention, got %d", c.Runs.Retention)
				}
				if c.HTTP.ReadTimeout != 60 {
					t.Errorf("Expected default read timeout, got %d", c.HTTP.ReadTimeout)
				}
			},
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
http:
  port: invalid_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing required fields",
			configYAML: `
transcription:
  backend: "http"
`,
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.configYAML), 0644)
			if err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if tt.check != nil {
				tt.check(t, config)
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	http := HTTPConfig{ReadTimeout: 60, WriteTimeout: 30}
	if http.GetReadTimeout() != 60*time.Second {
		t.Errorf("Expected 60 seconds, got %v", http.GetReadTimeout())
	}
	if http.GetWriteTimeout() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", http.GetWriteTimeout())
	}

	transcription := TranscriptionConfig{Timeout: 30}
	if transcription.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", transcription.GetTimeoutDuration())
	}

	runs := RunsConfig{Retention: 3600, CleanupInterval: 60}
	if runs.GetRetentionDuration() != time.Hour {
		t.Errorf("Expected 1 hour, got %v", runs.GetRetentionDuration())
	}
	if runs.GetCleanupInterval() != time.Minute {
		t.Errorf("Expected 1 minute, got %v", runs.GetCleanupInterval())
	}
}
