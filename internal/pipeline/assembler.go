package pipeline

import (
	"sort"
	"strings"
)

// Segment is the transcription of one chunk
type Segment struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Transcript is the assembled result of a run
type Transcript struct {
	Text                 string    `json:"text"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
	ChunkTexts           []string  `json:"chunk_texts"`
	Segments             []Segment `json:"segments"`
}

// AssembleTranscript merges per-chunk segments in index order. Segment texts
// are trimmed and joined with a single space; empty texts (silent chunks) do
// not contribute separators.
func AssembleTranscript(segments []Segment) Transcript {
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	chunkTexts := make([]string, len(ordered))
	parts := make([]string, 0, len(ordered))
	for i, segment := range ordered {
		chunkTexts[i] = segment.Text
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	var total float64
	if len(ordered) > 0 {
		total = ordered[len(ordered)-1].EndSeconds
	}

	return Transcript{
		Text:                 strings.Join(parts, " "),
		TotalDurationSeconds: total,
		ChunkTexts:           chunkTexts,
		Segments:             ordered,
	}
}

// SingleShotTranscript builds the transcript of an unchunked upload
func SingleShotTranscript(text string, durationSeconds float64) Transcript {
	return AssembleTranscript([]Segment{{
		Index:        0,
		Text:         text,
		StartSeconds: 0,
		EndSeconds:   durationSeconds,
	}})
}
