package pipeline

import "fmt"

// PipelineError is the terminal error of a failed run. It records the phase
// the run was in and, for per-chunk failures, the chunk index (-1 otherwise).
// The underlying typed error is available through errors.As.
type PipelineError struct {
	Phase      Phase
	ChunkIndex int
	Err        error
}

func (e *PipelineError) Error() string {
	if e.ChunkIndex >= 0 {
		return fmt.Sprintf("pipeline failed during %s (chunk %d): %v", e.Phase, e.ChunkIndex, e.Err)
	}
	return fmt.Sprintf("pipeline failed during %s: %v", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func phaseError(phase Phase, err error) *PipelineError {
	return &PipelineError{Phase: phase, ChunkIndex: -1, Err: err}
}

func chunkError(phase Phase, chunkIndex int, err error) *PipelineError {
	return &PipelineError{Phase: phase, ChunkIndex: chunkIndex, Err: err}
}
