package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Runs          RunsConfig          `yaml:"runs"`
	Events        EventsConfig        `yaml:"events"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port         int    `yaml:"port"`
	Address      string `yaml:"address"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// ChunkingConfig contains chunk planning limits
type ChunkingConfig struct {
	MaxChunkBytes    int64   `yaml:"max_chunk_bytes"`
	MaxChunkDuration float64 `yaml:"max_chunk_duration"` // seconds
	MinChunkDuration float64 `yaml:"min_chunk_duration"` // seconds
}

// PipelineConfig contains run execution limits
type PipelineConfig struct {
	MaxParallelRequests int   `yaml:"max_parallel_requests"`
	MaxUploadBytes      int64 `yaml:"max_upload_bytes"`
	MaxActiveRuns       int   `yaml:"max_active_runs"`
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Backend       string `yaml:"backend"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// RunsConfig contains run registry configuration
type RunsConfig struct {
	Retention       int `yaml:"retention"`        // seconds
	CleanupInterval int `yaml:"cleanup_interval"` // seconds
}

// EventsConfig contains Kafka event publishing configuration
type EventsConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	Principal string   `yaml:"principal"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. ${VAR} references are
// expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration used for keys missing from the file
func Default() *Config {
	return &Config{
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
			MaxUploadBytes:      512 * 1024 * 1024,
			MaxActiveRuns:       4,
		},
		Transcription: TranscriptionConfig{
			Backend:       "http",
			Timeout:       120,
			MaxConcurrent: 4,
		},
		Runs: RunsConfig{
			Retention:       3600,
			CleanupInterval: 60,
		},
		Events: EventsConfig{
			Topic: "transcriptions",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Runs.Validate(); err != nil {
		return fmt.Errorf("runs config: %w", err)
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty")
	}

	if h.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", h.ReadTimeout)
	}

	if h.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", h.WriteTimeout)
	}

	return nil
}

// Validate validates chunking configuration
func (c *ChunkingConfig) Validate() error {
	if c.MaxChunkBytes <= 0 {
		return fmt.Errorf("max_chunk_bytes must be positive, got %d", c.MaxChunkBytes)
	}

	if c.MinChunkDuration <= 0 {
		return fmt.Errorf("min_chunk_duration must be positive, got %f", c.MinChunkDuration)
	}

	if c.MaxChunkDuration < c.MinChunkDuration {
		return fmt.Errorf("max_chunk_duration (%f) cannot be less than min_chunk_duration (%f)",
			c.MaxChunkDuration, c.MinChunkDuration)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.MaxParallelRequests < 1 {
		return fmt.Errorf("max_parallel_requests must be at least 1, got %d", p.MaxParallelRequests)
	}

	if p.MaxUploadBytes < 1024 {
		return fmt.Errorf("max_upload_bytes must be at least 1024 bytes, got %d", p.MaxUploadBytes)
	}

	if p.MaxActiveRuns < 0 {
		return fmt.Errorf("max_active_runs cannot be negative, got %d", p.MaxActiveRuns)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	switch t.Backend {
	case "http":
		if t.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the http backend")
		}
	case "openai":
		if t.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for the openai backend")
		}
	default:
		return fmt.Errorf("backend must be 'http' or 'openai', got '%s'", t.Backend)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates run registry configuration
func (r *RunsConfig) Validate() error {
	if r.Retention < 1 {
		return fmt.Errorf("retention must be at least 1 second, got %d", r.Retention)
	}

	if r.CleanupInterval < 1 {
		return fmt.Errorf("cleanup_interval must be at least 1 second, got %d", r.CleanupInterval)
	}

	return nil
}

// Validate validates events configuration
func (e *EventsConfig) Validate() error {
	if !e.Enabled {
		return nil
	}

	if len(e.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty when events are enabled")
	}

	for i, broker := range e.Brokers {
		if strings.TrimSpace(broker) == "" {
			return fmt.Errorf("broker %d is empty", i)
		}
	}

	if e.Topic == "" {
		return fmt.Errorf("topic cannot be empty when events are enabled")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output is stdout, stderr or a file path
	return nil
}

// GetReadTimeout returns the HTTP read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetRetentionDuration returns the run retention as a time.Duration
func (r *RunsConfig) GetRetentionDuration() time.Duration {
	return time.Duration(r.Retention) * time.Second
}

// GetCleanupInterval returns the cleanup interval as a time.Duration
func (r *RunsConfig) GetCleanupInterval() time.Duration {
	return time.Duration(r.CleanupInterval) * time.Second
}
