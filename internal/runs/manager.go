package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/chunked-transcriber/internal/audio"
	"github.com/skypro1111/chunked-transcriber/internal/events"
	"github.com/skypro1111/chunked-transcriber/internal/pipeline"
)

var (
	// ErrNotFound is returned for unknown run IDs
	ErrNotFound = errors.New("run not found")
	// ErrTooManyRuns is returned when the active run limit is reached
	ErrTooManyRuns = errors.New("too many active runs")
	// ErrStopped is returned after Stop
	ErrStopped = errors.New("run manager stopped")
)

// Runner executes one transcription run
type Runner interface {
	Run(ctx context.Context, src audio.Source, observer pipeline.ProgressFunc) (*pipeline.Transcript, error)
}

// Publisher receives terminal run events
type Publisher interface {
	Publish(ctx context.Context, event events.RunEvent) error
}

// Config contains configuration for the run manager
type Config struct {
	// Retention is how long finished runs stay queryable
	Retention       time.Duration
	CleanupInterval time.Duration
	// MaxActive limits concurrently executing runs; 0 means unlimited
	MaxActive int
}

// Run is one transcription run and its latest state
type Run struct {
	ID        string
	Filename  string
	MIMEType  string
	SizeBytes int64
	StartedAt time.Time

	progress   pipeline.Progress
	transcript *pipeline.Transcript
	err        error
	finishedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.RWMutex
}

// RunInfo is a point-in-time view of a run for APIs
type RunInfo struct {
	ID         string               `json:"id"`
	Filename   string               `json:"filename"`
	MIMEType   string               `json:"mime_type"`
	SizeBytes  int64                `json:"size_bytes"`
	Progress   pipeline.Progress    `json:"progress"`
	Transcript *pipeline.Transcript `json:"transcript,omitempty"`
	Error      string               `json:"error,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Elapsed    time.Duration        `json:"elapsed"`
}

// Manager manages all transcription runs
type Manager struct {
	runs      map[string]*Run
	mu        sync.RWMutex
	logger    *slog.Logger
	config    Config
	runner    Runner
	publisher Publisher

	active  int
	stopped bool
	wg      sync.WaitGroup

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a run manager and starts its cleanup routine.
// publisher may be nil.
func NewManager(logger *slog.Logger, config Config, runner Runner, publisher Publisher) (*Manager, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config.Retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 30 * time.Second
	}
	if config.MaxActive < 0 {
		return nil, fmt.Errorf("max active runs cannot be negative")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		runs:      make(map[string]*Run),
		logger:    logger,
		config:    config,
		runner:    runner,
		publisher: publisher,
		ctx:       ctx,
		cancel:    cancel,
		cleanup:   make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr, nil
}

// Start registers a run for src and executes it in the background
func (m *Manager) Start(src audio.Source) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, ErrStopped
	}
	if m.config.MaxActive > 0 && m.active >= m.config.MaxActive {
		return nil, ErrTooManyRuns
	}

	runCtx, runCancel := context.WithCancel(m.ctx)
	run := &Run{
		ID:        uuid.NewString(),
		Filename:  src.Filename,
		MIMEType:  src.MIMEType,
		SizeBytes: src.SizeBytes,
		StartedAt: time.Now(),
		progress: pipeline.Progress{
			Phase:             pipeline.PhaseIdle,
			CurrentChunkIndex: -1,
		},
		cancel: runCancel,
		done:   make(chan struct{}),
	}

	m.runs[run.ID] = run
	m.active++
	m.wg.Add(1)

	m.logger.Info("Created transcription run",
		slog.String("run_id", run.ID),
		slog.String("filename", run.Filename),
		slog.String("mime_type", run.MIMEType),
		slog.Int64("size_bytes", run.SizeBytes),
	)

	go m.execute(runCtx, run, src)

	return run, nil
}

// execute runs the pipeline and records the outcome
func (m *Manager) execute(ctx context.Context, run *Run, src audio.Source) {
	defer m.wg.Done()
	defer run.cancel()

	logger := m.logger.With(slog.String("run_id", run.ID))
	runner := m.runner
	if p, ok := runner.(*pipeline.Pipeline); ok {
		runner = p.WithLogger(logger)
	}

	transcript, err := runner.Run(ctx, src, run.setProgress)

	run.mu.Lock()
	run.transcript = transcript
	run.err = err
	run.finishedAt = time.Now()
	if err == nil && !run.progress.Phase.Terminal() {
		run.progress.Phase = pipeline.PhaseCompleted
		run.progress.Percent = 100
	}
	if err != nil && run.progress.Phase != pipeline.PhaseFailed {
		run.progress.Phase = pipeline.PhaseFailed
		run.progress.Error = err.Error()
	}
	run.mu.Unlock()

	m.mu.Lock()
	m.active--
	m.mu.Unlock()

	close(run.done)

	m.publish(run)
}

// publish emits the terminal event of a run
func (m *Manager) publish(run *Run) {
	if m.publisher == nil {
		return
	}

	info := run.Info()
	event := events.RunEvent{
		Type:       events.TypeCompleted,
		RunID:      run.ID,
		Filename:   run.Filename,
		MIMEType:   run.MIMEType,
		SizeBytes:  run.SizeBytes,
		Transcript: info.Transcript,
		StartedAt:  run.StartedAt,
	}
	if info.Transcript != nil {
		event.DurationSeconds = info.Transcript.TotalDurationSeconds
	}
	if info.FinishedAt != nil {
		event.FinishedAt = *info.FinishedAt
	}

	if err := run.Err(); err != nil {
		event.Type = events.TypeFailed
		event.Error = err.Error()
		var perr *pipeline.PipelineError
		if errors.As(err, &perr) {
			event.FailedPhase = perr.Phase
			if perr.ChunkIndex >= 0 {
				idx := perr.ChunkIndex
				event.ChunkIndex = &idx
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("Failed to publish run event",
			slog.String("run_id", run.ID),
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}

// Get retrieves a run by ID
func (m *Manager) Get(id string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[id]
	return run, exists
}

// Cancel aborts a running run. Cancelling a finished run is a no-op.
func (m *Manager) Cancel(id string) error {
	run, exists := m.Get(id)
	if !exists {
		return ErrNotFound
	}

	if !run.Finished() {
		m.logger.Info("Cancelling transcription run", slog.String("run_id", id))
	}
	run.cancel()
	return nil
}

// Remove cancels the run if needed and forgets it
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	run, exists := m.runs[id]
	if exists {
		delete(m.runs, id)
	}
	m.mu.Unlock()

	if !exists {
		return false
	}
	run.cancel()

	m.logger.Info("Transcription run removed",
		slog.String("run_id", id),
		slog.Duration("age", time.Since(run.StartedAt)),
	)
	return true
}

// List returns a snapshot of all runs, oldest first
func (m *Manager) List() []RunInfo {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.RUnlock()

	infos := make([]RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, run.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// GetRunCount returns the number of registered runs
func (m *Manager) GetRunCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// GetActiveRunCount returns the number of runs still executing
func (m *Manager) GetActiveRunCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Stop cancels all runs and waits for them and the cleanup routine to finish
func (m *Manager) Stop() {
	m.logger.Info("Stopping run manager...")

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	for _, run := range m.runs {
		run.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()

	m.cancel()
	<-m.cleanup

	m.logger.Info("Run manager stopped",
		slog.Int("remaining_runs", m.GetRunCount()),
	)
}

// startCleanupRoutine removes expired runs until the manager stops
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	m.logger.Info("Run cleanup routine started",
		slog.Duration("retention", m.config.Retention),
		slog.Duration("check_interval", m.config.CleanupInterval),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Run cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupExpiredRuns(time.Now())
		}
	}
}

// cleanupExpiredRuns removes finished runs older than the retention period
func (m *Manager) cleanupExpiredRuns(now time.Time) int {
	expired := make([]string, 0)

	m.mu.RLock()
	for id, run := range m.runs {
		run.mu.RLock()
		finishedAt := run.finishedAt
		run.mu.RUnlock()

		if !finishedAt.IsZero() && now.Sub(finishedAt) > m.config.Retention {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.logger.Info("Cleaning up expired runs",
			slog.Int("expired_count", len(expired)),
		)

		for _, id := range expired {
			m.Remove(id)
		}
	}
	return len(expired)
}

func (r *Run) setProgress(p pipeline.Progress) {
	r.mu.Lock()
	r.progress = p
	r.mu.Unlock()
}

// Progress returns the latest progress snapshot
func (r *Run) Progress() pipeline.Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}

// Err returns the terminal error of a failed run
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Finished reports whether the run reached a terminal state
func (r *Run) Finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Done is closed when the run finishes
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes or ctx is done
func (r *Run) Wait(ctx context.Context) (*pipeline.Transcript, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transcript, r.err
}

// Info returns a snapshot of the run
func (r *Run) Info() RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := RunInfo{
		ID:         r.ID,
		Filename:   r.Filename,
		MIMEType:   r.MIMEType,
		SizeBytes:  r.SizeBytes,
		Progress:   r.progress,
		Transcript: r.transcript,
		StartedAt:  r.StartedAt,
	}
	if r.err != nil {
		info.Error = r.err.Error()
	}
	if r.finishedAt.IsZero() {
		info.Elapsed = time.Since(r.StartedAt)
	} else {
		finished := r.finishedAt
		info.FinishedAt = &finished
		info.Elapsed = finished.Sub(r.StartedAt)
	}
	return info
}
