package audio

import (
	"errors"
	"math"
	"testing"
)

func constantAudio(numChannels, sampleRate, numSamples int) *DecodedAudio {
	channels := make([][]float32, numChannels)
	for ch := range channels {
		channels[ch] = make([]float32, numSamples)
		for i := range channels[ch] {
			channels[ch][i] = float32(i%100) / 100
		}
	}
	return &DecodedAudio{SampleRate: sampleRate, Channels: channels}
}

func TestSliceChunks(t *testing.T) {
	// 600 seconds at 100 Hz, planned in 200s chunks
	decoded := constantAudio(2, 100, 60000)
	plan := ChunkPlan{ChunkDurationSeconds: 200, ChunkCount: 3}

	chunks, err := SliceChunks(decoded, plan)
	if err != nil {
		t.Fatalf("SliceChunks failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}

	want := [][2]float64{{0, 200}, {200, 400}, {400, 600}}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("Chunk %d has index %d", i, chunk.Index)
		}
		if chunk.StartSeconds != want[i][0] || chunk.EndSeconds != want[i][1] {
			t.Errorf("Chunk %d: expected [%v, %v), got [%v, %v)",
				i, want[i][0], want[i][1], chunk.StartSeconds, chunk.EndSeconds)
		}
		if chunk.SampleRate != 100 || len(chunk.Channels) != 2 {
			t.Errorf("Chunk %d: format not preserved", i)
		}
		if chunk.NumSamples() != 20000 {
			t.Errorf("Chunk %d: expected 20000 samples, got %d", i, chunk.NumSamples())
		}
	}

	if err := VerifyContiguous(chunks, decoded.Duration()); err != nil {
		t.Errorf("Chunks are not contiguous: %v", err)
	}
}

func TestSliceChunksSharesBuffer(t *testing.T) {
	decoded := constantAudio(1, 10, 100)
	chunks, err := SliceChunks(decoded, ChunkPlan{ChunkDurationSeconds: 3, ChunkCount: 4})
	if err != nil {
		t.Fatalf("SliceChunks failed: %v", err)
	}

	decoded.Channels[0][35] = -0.75
	if chunks[1].Channels[0][5] != -0.75 {
		t.Error("Chunk samples should be views into the decoded buffer")
	}
}

func TestSliceChunksShortLastChunk(t *testing.T) {
	// 500 seconds at 8 kHz in 120s chunks: 4 full chunks + 20s
	decoded := constantAudio(1, 8000, 500*8000)
	plan, err := PlanChunks(PlannerConfig{MaxChunkBytes: 100_000_000, MaxChunkDurationSeconds: 120, MinChunkDurationSeconds: 10},
		1_000_000, decoded.Duration())
	if err != nil {
		t.Fatalf("PlanChunks failed: %v", err)
	}

	chunks, err := SliceChunks(decoded, plan)
	if err != nil {
		t.Fatalf("SliceChunks failed: %v", err)
	}
	if len(chunks) != 5 {
		t.Fatalf("Expected 5 chunks, got %d", len(chunks))
	}
	last := chunks[len(chunks)-1]
	if math.Abs(last.Duration()-20) > 1e-6 {
		t.Errorf("Expected last chunk of 20s, got %.6f", last.Duration())
	}
	if err := VerifyContiguous(chunks, 500); err != nil {
		t.Errorf("Chunks are not contiguous: %v", err)
	}
}

func TestSliceChunksAbsorbsDecodedRemainder(t *testing.T) {
	// Decoded audio is slightly longer than planned
	decoded := constantAudio(1, 1000, 10_050)
	chunks, err := SliceChunks(decoded, ChunkPlan{ChunkDurationSeconds: 5, ChunkCount: 2})
	if err != nil {
		t.Fatalf("SliceChunks failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].EndSeconds != decoded.Duration() {
		t.Errorf("Last chunk should end at %v, got %v", decoded.Duration(), chunks[1].EndSeconds)
	}

	// Decoded audio is shorter than planned
	decoded = constantAudio(1, 1000, 9_000)
	chunks, err = SliceChunks(decoded, ChunkPlan{ChunkDurationSeconds: 3, ChunkCount: 4})
	if err != nil {
		t.Fatalf("SliceChunks failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if err := VerifyContiguous(chunks, 9); err != nil {
		t.Errorf("Chunks are not contiguous: %v", err)
	}
}

func TestSliceChunksInvalidInput(t *testing.T) {
	plan := ChunkPlan{ChunkDurationSeconds: 1, ChunkCount: 1}

	var corrupt *CorruptAudioError
	if _, err := SliceChunks(&DecodedAudio{SampleRate: 8000}, plan); !errors.As(err, &corrupt) {
		t.Errorf("Expected CorruptAudioError for no channels, got %v", err)
	}
	if _, err := SliceChunks(&DecodedAudio{SampleRate: 8000, Channels: [][]float32{{}}}, plan); !errors.As(err, &corrupt) {
		t.Errorf("Expected CorruptAudioError for no samples, got %v", err)
	}
	if _, err := SliceChunks(&DecodedAudio{SampleRate: 8000, Channels: [][]float32{{0, 1}, {0}}}, plan); !errors.As(err, &corrupt) {
		t.Errorf("Expected CorruptAudioError for ragged channels, got %v", err)
	}
	if _, err := SliceChunks(constantAudio(1, 8000, 10), ChunkPlan{ChunkDurationSeconds: 1e-9, ChunkCount: 2}); err == nil {
		t.Error("Expected error for sub-sample chunk duration")
	}
}
