package pipeline

import "sync"

// Phase is a pipeline state
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseDecoding     Phase = "decoding"
	PhasePlanning     Phase = "planning"
	PhaseSlicing      Phase = "slicing"
	PhaseEncoding     Phase = "encoding"
	PhaseTransmitting Phase = "transmitting"
	PhaseCompleted    Phase = "completed"
	PhaseFailed       Phase = "failed"
)

// Terminal reports whether the phase ends a run
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Progress is a snapshot of a run's state
type Progress struct {
	Phase             Phase   `json:"phase"`
	Percent           float64 `json:"percent"`
	CurrentChunkIndex int     `json:"current_chunk_index"`
	TotalChunks       int     `json:"total_chunks"`
	FailedPhase       Phase   `json:"failed_phase,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// ProgressFunc receives progress snapshots. It is called synchronously from
// the run and must not block for long.
type ProgressFunc func(Progress)

// Percent checkpoints of the run
const (
	percentDecoding     = 0
	percentPlanning     = 5
	percentSlicing      = 10
	percentEncoding     = 20
	percentTransmitting = 30
	percentCompleted    = 100
)

// progressTracker emits snapshots with a non-decreasing percent
type progressTracker struct {
	observer ProgressFunc
	current  Progress
	mu       sync.Mutex
}

func newProgressTracker(observer ProgressFunc) *progressTracker {
	return &progressTracker{
		observer: observer,
		current:  Progress{Phase: PhaseIdle, CurrentChunkIndex: -1},
	}
}

// emit publishes a new snapshot. Percent never moves backwards.
func (t *progressTracker) emit(phase Phase, percent float64, chunkIndex, totalChunks int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if percent < t.current.Percent {
		percent = t.current.Percent
	}
	if percent > percentCompleted {
		percent = percentCompleted
	}
	t.current = Progress{
		Phase:             phase,
		Percent:           percent,
		CurrentChunkIndex: chunkIndex,
		TotalChunks:       totalChunks,
	}
	t.notify()
}

// fail publishes the terminal failed snapshot
func (t *progressTracker) fail(err *PipelineError) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current.FailedPhase = err.Phase
	t.current.Phase = PhaseFailed
	t.current.Error = err.Error()
	if err.ChunkIndex >= 0 {
		t.current.CurrentChunkIndex = err.ChunkIndex
	}
	t.notify()
}

func (t *progressTracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *progressTracker) notify() {
	if t.observer != nil {
		t.observer(t.current)
	}
}

// chunkPercent interpolates between two checkpoints
func chunkPercent(from, to float64, done, total int) float64 {
	if total <= 0 {
		return to
	}
	return from + (to-from)*float64(done)/float64(total)
}
