// Package events publishes terminal run events to Kafka.
// Without brokers the publisher runs in log-only mode.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/skypro1111/chunked-transcriber/internal/metrics"
	"github.com/skypro1111/chunked-transcriber/internal/pipeline"
)

// Event types
const (
	TypeCompleted = "run.completed"
	TypeFailed    = "run.failed"
)

// RunEvent describes a finished run
type RunEvent struct {
	Type            string               `json:"type"`
	RunID           string               `json:"run_id"`
	Filename        string               `json:"filename"`
	MIMEType        string               `json:"mime_type"`
	SizeBytes       int64                `json:"size_bytes"`
	DurationSeconds float64              `json:"duration_seconds"`
	Transcript      *pipeline.Transcript `json:"transcript,omitempty"`
	FailedPhase     pipeline.Phase       `json:"failed_phase,omitempty"`
	ChunkIndex      *int                 `json:"chunk_index,omitempty"`
	Error           string               `json:"error,omitempty"`
	StartedAt       time.Time            `json:"started_at"`
	FinishedAt      time.Time            `json:"finished_at"`
}

// Config holds Kafka publisher configuration
type Config struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	Principal string
}

// Publisher writes run events to a single Kafka topic
type Publisher struct {
	writer    *kafka.Writer
	topic     string
	principal string
	enabled   bool
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates a publisher. A nil or disabled config, or one without brokers,
// yields a log-only publisher.
func New(cfg *Config, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg == nil {
		logger.Info("Kafka disabled (nil config), using log-only mode")
		return &Publisher{logger: logger, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info("Kafka disabled, using log-only mode")
		return &Publisher{
			topic:     cfg.Topic,
			principal: cfg.Principal,
			logger:    logger,
			metrics:   m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport: &kafka.Transport{
			Dial: dialer.DialFunc,
		},
	}

	logger.Info("Kafka publisher initialized",
		slog.Any("brokers", cfg.Brokers),
		slog.String("topic", cfg.Topic),
		slog.String("principal", cfg.Principal),
	)

	return &Publisher{
		writer:    writer,
		topic:     cfg.Topic,
		principal: cfg.Principal,
		enabled:   true,
		logger:    logger,
		metrics:   m,
	}
}

// Enabled reports whether events reach Kafka
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Publish writes the event keyed by its run ID
func (p *Publisher) Publish(ctx context.Context, event RunEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.metrics.RecordEventPublished(event.Type, err)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.logger.Debug("Publishing event",
		slog.String("topic", p.topic),
		slog.String("type", event.Type),
		slog.String("run_id", event.RunID),
		slog.Int("payload_size", len(payload)),
	)

	if !p.enabled || p.writer == nil {
		p.metrics.RecordEventPublished(event.Type, nil)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(event.Type)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to write to Kafka",
			slog.String("topic", p.topic),
			slog.String("run_id", event.RunID),
			slog.String("error", err.Error()),
		)
		p.metrics.RecordEventPublished(event.Type, err)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.metrics.RecordEventPublished(event.Type, nil)
	return nil
}

// Close closes the Kafka writer
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Error closing Kafka writer", slog.String("error", err.Error()))
		return err
	}
	return nil
}
