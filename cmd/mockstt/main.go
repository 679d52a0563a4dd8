// Command mockstt is a fake transcription endpoint for local runs and tests.
// It accepts the multipart "audio" field and answers with
// {"transcription": ..., "duration": ...}.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/skypro1111/chunked-transcriber/internal/audio"
)

type transcriptionResponse struct {
	Transcription string   `json:"transcription"`
	Duration      *float64 `json:"duration,omitempty"`
}

type mockServer struct {
	logger   *slog.Logger
	delay    time.Duration
	text     string
	failRate int64
	requests atomic.Int64
}

func (s *mockServer) transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	n := s.requests.Add(1)
	attrs := []any{
		slog.Int64("request", n),
		slog.String("filename", header.Filename),
		slog.String("content_type", header.Header.Get("Content-Type")),
		slog.Int("audio_size", len(audioData)),
	}

	var duration *float64
	if info, err := audio.GetWAVInfo(audioData); err == nil {
		d := info.Duration
		duration = &d
		attrs = append(attrs,
			slog.Int("sample_rate", int(info.SampleRate)),
			slog.Int("channels", int(info.Channels)),
			slog.Float64("duration", d),
		)
	}
	s.logger.Info("Transcription request received", attrs...)

	if s.failRate > 0 && n%s.failRate == 0 {
		s.logger.Warn("Simulating upstream failure", slog.Int64("request", n))
		http.Error(w, "simulated failure", http.StatusServiceUnavailable)
		return
	}

	time.Sleep(s.delay)

	response := transcriptionResponse{
		Transcription: fmt.Sprintf("%s (%s)", s.text, header.Filename),
		Duration:      duration,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time per request")
	text := flag.String("text", "This is a test transcription", "Text returned for every chunk")
	failEvery := flag.Int64("fail-every", 0, "Fail every Nth request with 503 (0 disables)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	srv := &mockServer{
		logger:   logger,
		delay:    *delay,
		text:     *text,
		failRate: *failEvery,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", srv.transcribeHandler)

	logger.Info("Mock transcription server starting",
		slog.String("addr", *addr),
		slog.String("endpoint", fmt.Sprintf("http://localhost%s/transcribe", *addr)),
	)

	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
