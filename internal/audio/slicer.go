package audio

import (
	"fmt"
	"math"
)

// SliceChunks cuts decoded audio into contiguous, non-overlapping chunks
// according to the plan. Sample rate and channel layout are preserved and
// chunk samples are sub-slices of the decoded buffer.
//
// Chunk times are derived from sample indices, so chunk i ends exactly where
// chunk i+1 starts and the last chunk ends at decoded.Duration(). If the
// decoded length differs from the probed one, the final chunk absorbs the
// remainder and fewer chunks than planned may be produced.
func SliceChunks(decoded *DecodedAudio, plan ChunkPlan) ([]AudioChunk, error) {
	if decoded == nil || decoded.ChannelCount() == 0 {
		return nil, &CorruptAudioError{Format: "pcm", Err: fmt.Errorf("decoded audio has no channels")}
	}
	if decoded.SampleRate <= 0 {
		return nil, &CorruptAudioError{Format: "pcm", Err: fmt.Errorf("invalid sample rate %d", decoded.SampleRate)}
	}
	totalSamples := decoded.TotalSamples()
	if totalSamples == 0 {
		return nil, &CorruptAudioError{Format: "pcm", Err: fmt.Errorf("decoded audio has no samples")}
	}
	for ch, samples := range decoded.Channels {
		if len(samples) != totalSamples {
			return nil, &CorruptAudioError{Format: "pcm",
				Err: fmt.Errorf("channel %d has %d samples, expected %d", ch, len(samples), totalSamples)}
		}
	}
	if plan.ChunkCount < 1 {
		return nil, fmt.Errorf("chunk plan must have at least one chunk, got %d", plan.ChunkCount)
	}

	samplesPerChunk := int(math.Round(plan.ChunkDurationSeconds * float64(decoded.SampleRate)))
	if samplesPerChunk <= 0 {
		return nil, fmt.Errorf("chunk duration %.6fs is shorter than one sample at %d Hz",
			plan.ChunkDurationSeconds, decoded.SampleRate)
	}

	rate := float64(decoded.SampleRate)
	chunks := make([]AudioChunk, 0, plan.ChunkCount)
	for i := 0; i < plan.ChunkCount; i++ {
		start := i * samplesPerChunk
		if start >= totalSamples {
			break
		}
		end := start + samplesPerChunk
		if end > totalSamples || i == plan.ChunkCount-1 {
			end = totalSamples
		}

		views := make([][]float32, decoded.ChannelCount())
		for ch, samples := range decoded.Channels {
			views[ch] = samples[start:end:end]
		}

		chunks = append(chunks, AudioChunk{
			Index:        i,
			StartSeconds: float64(start) / rate,
			EndSeconds:   float64(end) / rate,
			SampleRate:   decoded.SampleRate,
			Channels:     views,
		})
	}

	return chunks, nil
}

// VerifyContiguous checks that chunks tile [0, totalSeconds] without gaps
func VerifyContiguous(chunks []AudioChunk, totalSeconds float64) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks")
	}
	if !almostEqual(chunks[0].StartSeconds, 0) {
		return fmt.Errorf("first chunk starts at %.6fs", chunks[0].StartSeconds)
	}
	for i := 0; i < len(chunks)-1; i++ {
		if !almostEqual(chunks[i].EndSeconds, chunks[i+1].StartSeconds) {
			return fmt.Errorf("gap between chunk %d (end %.6fs) and chunk %d (start %.6fs)",
				i, chunks[i].EndSeconds, i+1, chunks[i+1].StartSeconds)
		}
	}
	last := chunks[len(chunks)-1]
	if !almostEqual(last.EndSeconds, totalSeconds) {
		return fmt.Errorf("last chunk ends at %.6fs, expected %.6fs", last.EndSeconds, totalSeconds)
	}
	return nil
}
