// Package server implements the HTTP API of the transcription service: audio
// uploads that start pipeline runs, run polling and cancellation, and the
// monitoring endpoints (health, stats, config, Prometheus metrics).
package server
