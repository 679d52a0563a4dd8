package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient transcribes audio through the OpenAI-compatible audio API
type OpenAIClient struct {
	client    *openai.Client
	model     string
	language  string
	semaphore chan struct{}
}

// NewOpenAIClient creates a transcriber backed by go-openai. Endpoint, when
// set, overrides the API base URL (e.g. a self-hosted Whisper server).
func NewOpenAIClient(config Config) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty for the openai backend")
	}
	if config.Model == "" {
		config.Model = openai.Whisper1
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.Endpoint != "" {
		clientConfig.BaseURL = config.Endpoint
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     config.Model,
		language:  config.Language,
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe uploads one audio file via CreateTranscription
func (c *OpenAIClient) Transcribe(ctx context.Context, request *Request) (*Response, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, &RequestError{ChunkIndex: request.ChunkIndex, Err: ctx.Err()}
	}

	filename := request.Filename
	if filename == "" {
		filename = "audio.wav"
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: filename,
		Reader:   bytes.NewReader(request.Audio),
		Language: c.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, mapOpenAIError(request.ChunkIndex, err)
	}

	result := &Response{Text: resp.Text}
	if resp.Duration > 0 {
		duration := resp.Duration
		result.Duration = &duration
	}
	return result, nil
}

func mapOpenAIError(chunkIndex int, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RequestError{ChunkIndex: chunkIndex, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RequestError{ChunkIndex: chunkIndex, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &RequestError{ChunkIndex: chunkIndex, Err: err}
}
