package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Endpoint:      ts.URL + "/transcribe",
		APIKey:        "test-key",
		Timeout:       5 * time.Second,
		MaxConcurrent: 2,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestTranscribeSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/transcribe" {
			t.Errorf("expected /transcribe, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("missing audio field: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "RIFF-chunk" {
			t.Errorf("unexpected audio payload %q", data)
		}
		if header.Filename != "chunk_001.wav" {
			t.Errorf("expected filename chunk_001.wav, got %s", header.Filename)
		}
		if got := header.Header.Get("Content-Type"); got != "audio/wav" {
			t.Errorf("expected audio/wav part, got %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"transcription": "hello world", "duration": 12.5}`)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	resp, err := c.Transcribe(context.Background(), &Request{
		ChunkIndex: 1,
		Filename:   "chunk_001.wav",
		MIMEType:   "audio/wav",
		Audio:      []byte("RIFF-chunk"),
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if resp.Text != "hello world" {
		t.Errorf("expected text 'hello world', got %q", resp.Text)
	}
	if resp.Duration == nil || *resp.Duration != 12.5 {
		t.Errorf("expected duration 12.5, got %v", resp.Duration)
	}

	stats := c.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 || stats.FailedRequests != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestTranscribeWithoutDuration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"transcription": ""}`)
	}))
	defer ts.Close()

	resp, err := newTestClient(t, ts).Transcribe(context.Background(), &Request{Audio: []byte("x")})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if resp.Text != "" || resp.Duration != nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestTranscribeErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, "boom", 500},
		{"rate limited", http.StatusTooManyRequests, "slow down", 429},
		{"malformed json", http.StatusOK, "{not json", 200},
		{"missing field", http.StatusOK, `{"text": "wrong shape"}`, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			c := newTestClient(t, ts)
			_, err := c.Transcribe(context.Background(), &Request{ChunkIndex: 3, Audio: []byte("x")})

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected RequestError, got %v", err)
			}
			if reqErr.ChunkIndex != 3 {
				t.Errorf("expected chunk index 3, got %d", reqErr.ChunkIndex)
			}
			if reqErr.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, reqErr.StatusCode)
			}
			if !strings.Contains(reqErr.Body, tt.body) {
				t.Errorf("expected body to be preserved, got %q", reqErr.Body)
			}
			if n := atomic.LoadInt32(&calls); n != 1 {
				t.Errorf("expected exactly 1 request (no retries), got %d", n)
			}
			if c.GetStats().FailedRequests != 1 {
				t.Errorf("expected 1 failed request in stats")
			}
		})
	}
}

func TestTranscribeNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, ts)
	ts.Close()

	_, err := c.Transcribe(context.Background(), &Request{ChunkIndex: 0, Audio: []byte("x")})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("expected status 0 for transport failure, got %d", reqErr.StatusCode)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty audio")
	}))
	defer ts.Close()

	_, err := newTestClient(t, ts).Transcribe(context.Background(), &Request{})
	if err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestTranscribeCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, ts).Transcribe(ctx, &Request{Audio: []byte("x")})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error for empty endpoint")
	}

	c, err := NewClient(Config{Endpoint: "http://localhost:9000/transcribe"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.config.Timeout != 120*time.Second || c.config.MaxConcurrent != 10 {
		t.Errorf("defaults not applied: %+v", c.config)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{BackendHTTP, false},
		{BackendOpenAI, false},
		{"grpc", true},
	}
	for _, tt := range tests {
		_, err := New(Config{Backend: tt.backend, Endpoint: "http://localhost:9000", APIKey: "k"})
		if (err != nil) != tt.wantErr {
			t.Errorf("backend %q: expected error=%v, got %v", tt.backend, tt.wantErr, err)
		}
	}
}
