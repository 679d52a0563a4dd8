package audio

import (
	"fmt"
	"math"
)

// PlannerConfig bounds the size and duration of transcription chunks
type PlannerConfig struct {
	MaxChunkBytes           int64   // upload budget of one transcription request
	MaxChunkDurationSeconds float64 // hard ceiling, e.g. the STT API duration limit
	MinChunkDurationSeconds float64 // floor to avoid excessive request counts
}

// DefaultPlannerConfig returns limits suitable for common hosted STT APIs
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		MaxChunkBytes:           20 * 1024 * 1024,
		MaxChunkDurationSeconds: 600,
		MinChunkDurationSeconds: 30,
	}
}

// Validate checks the planner limits
func (c PlannerConfig) Validate() error {
	if c.MaxChunkBytes <= 0 {
		return fmt.Errorf("max_chunk_bytes must be positive, got %d", c.MaxChunkBytes)
	}
	if c.MaxChunkDurationSeconds <= 0 {
		return fmt.Errorf("max_chunk_duration must be positive, got %f", c.MaxChunkDurationSeconds)
	}
	if c.MinChunkDurationSeconds <= 0 {
		return fmt.Errorf("min_chunk_duration must be positive, got %f", c.MinChunkDurationSeconds)
	}
	if c.MinChunkDurationSeconds > c.MaxChunkDurationSeconds {
		return fmt.Errorf("min_chunk_duration (%f) must not exceed max_chunk_duration (%f)",
			c.MinChunkDurationSeconds, c.MaxChunkDurationSeconds)
	}
	return nil
}

// ChunkPlan describes how a source is split
type ChunkPlan struct {
	ChunkDurationSeconds float64 `json:"chunk_duration_seconds"`
	ChunkCount           int     `json:"chunk_count"`
}

// Single reports whether the source is sent as-is without chunking
func (p ChunkPlan) Single() bool {
	return p.ChunkCount == 1
}

// LastChunkDuration returns the duration of the final chunk
func (p ChunkPlan) LastChunkDuration(totalSeconds float64) float64 {
	return totalSeconds - p.ChunkDurationSeconds*float64(p.ChunkCount-1)
}

// Bounds returns the planned [start, end) range of chunk i in seconds
func (p ChunkPlan) Bounds(i int, totalSeconds float64) (float64, float64) {
	start := p.ChunkDurationSeconds * float64(i)
	if i >= p.ChunkCount-1 {
		return start, totalSeconds
	}
	return start, start + p.ChunkDurationSeconds
}

// PlanChunks computes a chunk duration that keeps every chunk under the
// byte budget, estimated from the source's average bitrate.
func PlanChunks(cfg PlannerConfig, sizeBytes int64, totalSeconds float64) (ChunkPlan, error) {
	if sizeBytes <= 0 {
		return ChunkPlan{}, &InvalidSourceError{SizeBytes: sizeBytes, DurationSeconds: totalSeconds,
			Reason: "size must be positive"}
	}
	if totalSeconds <= 0 || math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) {
		return ChunkPlan{}, &InvalidSourceError{SizeBytes: sizeBytes, DurationSeconds: totalSeconds,
			Reason: "duration must be a positive finite number"}
	}

	if totalSeconds <= cfg.MaxChunkDurationSeconds && sizeBytes <= cfg.MaxChunkBytes {
		return ChunkPlan{ChunkDurationSeconds: totalSeconds, ChunkCount: 1}, nil
	}

	bytesPerSecond := float64(sizeBytes) / totalSeconds
	chunkDuration := float64(cfg.MaxChunkBytes) / bytesPerSecond
	chunkDuration = math.Max(chunkDuration, cfg.MinChunkDurationSeconds)
	chunkDuration = math.Min(chunkDuration, cfg.MaxChunkDurationSeconds)

	count := int(math.Ceil(totalSeconds / chunkDuration))
	// Floating residue must not produce an empty trailing chunk.
	for count > 1 && totalSeconds-chunkDuration*float64(count-1) <= 1e-9 {
		count--
	}
	if count <= 1 {
		// The duration floor exceeds the whole recording.
		return ChunkPlan{ChunkDurationSeconds: totalSeconds, ChunkCount: 1}, nil
	}

	return ChunkPlan{ChunkDurationSeconds: chunkDuration, ChunkCount: count}, nil
}
