package audio

import (
	"errors"
	"math"
	"testing"
)

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		name          string
		cfg           PlannerConfig
		sizeBytes     int64
		totalSeconds  float64
		wantCount     int
		wantDuration  float64
		wantLastChunk float64
	}{
		{
			name:          "short file is sent as-is",
			cfg:           PlannerConfig{MaxChunkBytes: 10_000_000, MaxChunkDurationSeconds: 120, MinChunkDurationSeconds: 10},
			sizeBytes:     2_000_000,
			totalSeconds:  45,
			wantCount:     1,
			wantDuration:  45,
			wantLastChunk: 45,
		},
		{
			name:          "bitrate-derived chunk duration",
			cfg:           PlannerConfig{MaxChunkBytes: 5_000_000, MaxChunkDurationSeconds: 300, MinChunkDurationSeconds: 10},
			sizeBytes:     15_000_000,
			totalSeconds:  600,
			wantCount:     3,
			wantDuration:  200,
			wantLastChunk: 200,
		},
		{
			name:          "clamped to max duration",
			cfg:           PlannerConfig{MaxChunkBytes: 100_000_000, MaxChunkDurationSeconds: 120, MinChunkDurationSeconds: 10},
			sizeBytes:     1_000_000,
			totalSeconds:  500,
			wantCount:     5,
			wantDuration:  120,
			wantLastChunk: 20,
		},
		{
			name:          "clamped to min duration",
			cfg:           PlannerConfig{MaxChunkBytes: 1_000, MaxChunkDurationSeconds: 600, MinChunkDurationSeconds: 60},
			sizeBytes:     10_000_000,
			totalSeconds:  150,
			wantCount:     3,
			wantDuration:  60,
			wantLastChunk: 30,
		},
		{
			name:          "min duration covers the whole file",
			cfg:           PlannerConfig{MaxChunkBytes: 1_000, MaxChunkDurationSeconds: 600, MinChunkDurationSeconds: 60},
			sizeBytes:     10_000_000,
			totalSeconds:  50,
			wantCount:     1,
			wantDuration:  50,
			wantLastChunk: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanChunks(tt.cfg, tt.sizeBytes, tt.totalSeconds)
			if err != nil {
				t.Fatalf("PlanChunks failed: %v", err)
			}
			if plan.ChunkCount != tt.wantCount {
				t.Errorf("Expected %d chunks, got %d", tt.wantCount, plan.ChunkCount)
			}
			if math.Abs(plan.ChunkDurationSeconds-tt.wantDuration) > 1e-9 {
				t.Errorf("Expected chunk duration %.3f, got %.3f", tt.wantDuration, plan.ChunkDurationSeconds)
			}
			if last := plan.LastChunkDuration(tt.totalSeconds); math.Abs(last-tt.wantLastChunk) > 1e-9 {
				t.Errorf("Expected last chunk duration %.3f, got %.3f", tt.wantLastChunk, last)
			}
		})
	}
}

func TestPlanChunksCountInvariant(t *testing.T) {
	cfg := PlannerConfig{MaxChunkBytes: 3_000_000, MaxChunkDurationSeconds: 900, MinChunkDurationSeconds: 5}

	for _, total := range []float64{61.3, 333.33, 1000, 1799.99, 3600, 7261.5} {
		plan, err := PlanChunks(cfg, int64(total*32_000), total)
		if err != nil {
			t.Fatalf("PlanChunks(%v) failed: %v", total, err)
		}
		if plan.Single() {
			continue
		}
		if want := int(math.Ceil(total / plan.ChunkDurationSeconds)); plan.ChunkCount != want {
			t.Errorf("total %.2f: expected %d chunks, got %d", total, want, plan.ChunkCount)
		}
		if last := plan.LastChunkDuration(total); last <= 0 || last > plan.ChunkDurationSeconds+1e-9 {
			t.Errorf("total %.2f: last chunk duration %.6f out of range", total, last)
		}
	}
}

func TestPlanChunksBounds(t *testing.T) {
	plan := ChunkPlan{ChunkDurationSeconds: 200, ChunkCount: 3}

	want := [][2]float64{{0, 200}, {200, 400}, {400, 600}}
	for i, w := range want {
		start, end := plan.Bounds(i, 600)
		if start != w[0] || end != w[1] {
			t.Errorf("Chunk %d: expected [%v, %v), got [%v, %v)", i, w[0], w[1], start, end)
		}
	}
}

func TestPlanChunksInvalidSource(t *testing.T) {
	cfg := DefaultPlannerConfig()
	tests := []struct {
		name    string
		size    int64
		seconds float64
	}{
		{"zero size", 0, 10},
		{"negative size", -5, 10},
		{"zero duration", 1000, 0},
		{"negative duration", 1000, -3},
		{"NaN duration", 1000, math.NaN()},
		{"infinite duration", 1000, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanChunks(cfg, tt.size, tt.seconds)
			var invalid *InvalidSourceError
			if !errors.As(err, &invalid) {
				t.Fatalf("Expected InvalidSourceError, got %v", err)
			}
		})
	}
}

func TestPlannerConfigValidate(t *testing.T) {
	if err := DefaultPlannerConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	invalid := []PlannerConfig{
		{MaxChunkBytes: 0, MaxChunkDurationSeconds: 10, MinChunkDurationSeconds: 1},
		{MaxChunkBytes: 10, MaxChunkDurationSeconds: 0, MinChunkDurationSeconds: 1},
		{MaxChunkBytes: 10, MaxChunkDurationSeconds: 10, MinChunkDurationSeconds: 0},
		{MaxChunkBytes: 10, MaxChunkDurationSeconds: 10, MinChunkDurationSeconds: 11},
	}
	for i, cfg := range invalid {
		if err := cfg.Validate(); err == nil {
			t.Errorf("Config %d: expected validation error", i)
		}
	}
}
