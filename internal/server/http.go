package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/chunked-transcriber/internal/audio"
	"github.com/skypro1111/chunked-transcriber/internal/config"
	"github.com/skypro1111/chunked-transcriber/internal/metrics"
	"github.com/skypro1111/chunked-transcriber/internal/runs"
	"github.com/skypro1111/chunked-transcriber/internal/transcription"
)

const (
	serviceName    = "chunked-transcriber"
	serviceVersion = "1.0.0"

	// uploadField is the multipart form field carrying the audio file
	uploadField = "audio"

	// multipartMemory is kept in memory before ParseMultipartForm spills to disk
	multipartMemory = 32 << 20
)

// statsProvider is implemented by transcription clients that keep statistics
type statsProvider interface {
	GetStats() transcription.ClientStats
}

// HTTPServer provides the upload API plus monitoring and management endpoints
type HTTPServer struct {
	server      *http.Server
	router      chi.Router
	logger      *slog.Logger
	config      *config.Config
	runMgr      *runs.Manager
	transcriber transcription.Transcriber
	metrics     *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger,
	runMgr *runs.Manager, transcriber transcription.Transcriber, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		config:      appConfig,
		runMgr:      runMgr,
		transcriber: transcriber,
		metrics:     m,
		startTime:   time.Now(),
	}

	h.router = h.setupRoutes()

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:      h.router,
		ReadTimeout:  appConfig.HTTP.GetReadTimeout(),
		WriteTimeout: appConfig.HTTP.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the routed HTTP handler
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.withMetrics("/", h.handleRoot))
	r.Get("/health", h.withMetrics("/health", h.handleHealth))
	r.Get("/stats", h.withMetrics("/stats", h.handleStats))
	r.Get("/config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint (not instrumented itself)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/transcriptions", func(r chi.Router) {
		r.Post("/", h.withMetrics("/v1/transcriptions", h.handleUpload))
		r.Get("/", h.withMetrics("/v1/transcriptions", h.handleListRuns))
		r.Get("/{id}", h.withMetrics("/v1/transcriptions/{id}", h.handleGetRun))
		r.Delete("/{id}", h.withMetrics("/v1/transcriptions/{id}", h.handleCancelRun))
	})

	return r
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleUpload implements POST /v1/transcriptions
func (h *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.config.Pipeline.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", h.config.Pipeline.MaxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Pipeline.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", h.config.Pipeline.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("missing %q file field", uploadField))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if _, err := audio.DetectFormat(data, mimeType); err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	src := audio.NewSource(data, mimeType, header.Filename)
	run, err := h.runMgr.Start(src)
	switch {
	case errors.Is(err, runs.ErrTooManyRuns):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, runs.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("Accepted audio upload",
		slog.String("run_id", run.ID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("filename", header.Filename),
		slog.String("mime_type", mimeType),
		slog.Int("size_bytes", len(data)),
	)

	w.Header().Set("Location", "/v1/transcriptions/"+run.ID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":         run.ID,
		"status_url": "/v1/transcriptions/" + run.ID,
	})
}

// handleListRuns implements GET /v1/transcriptions
func (h *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	infos := h.runMgr.List()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_runs": len(infos),
		"timestamp":  time.Now().UTC(),
		"runs":       infos,
	})
}

// handleGetRun implements GET /v1/transcriptions/{id}
func (h *HTTPServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, exists := h.runMgr.Get(chi.URLParam(r, "id"))
	if !exists {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, run.Info())
}

// handleCancelRun implements DELETE /v1/transcriptions/{id}
func (h *HTTPServer) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.runMgr.Cancel(id); err != nil {
		if errors.Is(err, runs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	run, exists := h.runMgr.Get(id)
	if !exists {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusAccepted, run.Info())
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]interface{}{
			"run_manager": map[string]interface{}{
				"status":      "running",
				"runs":        h.runMgr.GetRunCount(),
				"active_runs": h.runMgr.GetActiveRunCount(),
			},
			"transcription": map[string]interface{}{
				"status":  "running",
				"backend": h.config.Transcription.Backend,
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"runs": map[string]interface{}{
			"total_count":  h.runMgr.GetRunCount(),
			"active_count": h.runMgr.GetActiveRunCount(),
		},
	}
	if provider, ok := h.transcriber.(statsProvider); ok {
		stats["transcription"] = provider.GetStats()
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	// API key is omitted
	sanitizedConfig := map[string]interface{}{
		"chunking": map[string]interface{}{
			"max_chunk_bytes":    h.config.Chunking.MaxChunkBytes,
			"max_chunk_duration": h.config.Chunking.MaxChunkDuration,
			"min_chunk_duration": h.config.Chunking.MinChunkDuration,
		},
		"pipeline": map[string]interface{}{
			"max_parallel_requests": h.config.Pipeline.MaxParallelRequests,
			"max_upload_bytes":      h.config.Pipeline.MaxUploadBytes,
			"max_active_runs":       h.config.Pipeline.MaxActiveRuns,
		},
		"transcription": map[string]interface{}{
			"backend":        h.config.Transcription.Backend,
			"endpoint":       h.config.Transcription.Endpoint,
			"model":          h.config.Transcription.Model,
			"language":       h.config.Transcription.Language,
			"timeout":        h.config.Transcription.Timeout,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
		},
		"runs": map[string]interface{}{
			"retention":        h.config.Runs.Retention,
			"cleanup_interval": h.config.Runs.CleanupInterval,
		},
		"events": map[string]interface{}{
			"enabled": h.config.Events.Enabled,
			"topic":   h.config.Events.Topic,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	apiDoc := map[string]interface{}{
		"service": serviceName,
		"version": serviceVersion,
		"endpoints": map[string]interface{}{
			"GET /":                          "API documentation",
			"GET /health":                    "Service health check",
			"GET /stats":                     "Service statistics",
			"GET /config":                    "Service configuration",
			"GET /metrics":                   "Prometheus metrics",
			"POST /v1/transcriptions":        "Upload audio (multipart field \"audio\") and start a run",
			"GET /v1/transcriptions":         "List runs",
			"GET /v1/transcriptions/{id}":    "Run progress and transcript",
			"DELETE /v1/transcriptions/{id}": "Cancel a run",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
