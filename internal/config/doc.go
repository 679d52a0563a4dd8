// Package config provides configuration loading and validation for the chunked
// transcription service. It handles YAML-based configuration with ${VAR}
// environment expansion and per-section validation.
package config
