package transcription

import (
	"context"
	"fmt"
	"time"
)

// Supported backends
const (
	BackendHTTP   = "http"
	BackendOpenAI = "openai"
)

// Transcriber converts one audio file to text
type Transcriber interface {
	Transcribe(ctx context.Context, request *Request) (*Response, error)
}

// Request is a single audio upload
type Request struct {
	ChunkIndex int // 0 for the original file on the single-shot path
	Filename   string
	MIMEType   string
	Audio      []byte
}

// Response holds the transcribed text of one upload
type Response struct {
	Text     string   `json:"transcription"`
	Duration *float64 `json:"duration,omitempty"`
}

// RequestError reports a failed transcription request. StatusCode is 0 when
// no HTTP response was received.
type RequestError struct {
	ChunkIndex int
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("transcription of chunk %d failed with HTTP %d: %s", e.ChunkIndex, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("transcription of chunk %d failed: %v", e.ChunkIndex, e.Err)
	default:
		return fmt.Sprintf("transcription of chunk %d failed", e.ChunkIndex)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Config contains transcription client configuration
type Config struct {
	Backend       string // "http" or "openai"
	Endpoint      string
	APIKey        string
	Model         string
	Language      string
	Timeout       time.Duration
	MaxConcurrent int
}

// New creates the transcriber for the configured backend
func New(config Config) (Transcriber, error) {
	switch config.Backend {
	case BackendHTTP, "":
		return NewClient(config)
	case BackendOpenAI:
		return NewOpenAIClient(config)
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", config.Backend)
	}
}

// truncate limits error bodies kept in memory and logs
func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
