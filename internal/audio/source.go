package audio

import (
	"fmt"
	"math"
)

// durationTolerance is the floating tolerance used when comparing chunk times
const durationTolerance = 1e-6

// Source represents an uploaded audio file. It is created once per upload
// and never mutated; WithDuration returns a copy.
type Source struct {
	Data            []byte  `json:"-"`
	MIMEType        string  `json:"mime_type"`
	Filename        string  `json:"filename"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// NewSource creates a Source for the given file bytes
func NewSource(data []byte, mimeType, filename string) Source {
	return Source{
		Data:      data,
		MIMEType:  mimeType,
		Filename:  filename,
		SizeBytes: int64(len(data)),
	}
}

// WithDuration returns a copy of the source carrying the probed duration
func (s Source) WithDuration(seconds float64) Source {
	s.DurationSeconds = seconds
	return s
}

// DecodedAudio holds the raw samples of a decoded file, one slice per channel.
// Amplitudes are conventionally in [-1, 1].
type DecodedAudio struct {
	SampleRate int
	Channels   [][]float32
}

// ChannelCount returns the number of channels
func (d *DecodedAudio) ChannelCount() int {
	return len(d.Channels)
}

// TotalSamples returns the number of samples per channel
func (d *DecodedAudio) TotalSamples() int {
	if len(d.Channels) == 0 {
		return 0
	}
	return len(d.Channels[0])
}

// Duration returns the decoded duration in seconds
func (d *DecodedAudio) Duration() float64 {
	if d.SampleRate <= 0 {
		return 0
	}
	return float64(d.TotalSamples()) / float64(d.SampleRate)
}

// AudioChunk is a contiguous time range of decoded audio. Channel data are
// views into the decoded buffer.
type AudioChunk struct {
	Index        int         `json:"index"`
	StartSeconds float64     `json:"start_seconds"`
	EndSeconds   float64     `json:"end_seconds"`
	SampleRate   int         `json:"sample_rate"`
	Channels     [][]float32 `json:"-"`
}

// Duration returns the chunk length in seconds
func (c AudioChunk) Duration() float64 {
	return c.EndSeconds - c.StartSeconds
}

// NumSamples returns the number of samples per channel in the chunk
func (c AudioChunk) NumSamples() int {
	if len(c.Channels) == 0 {
		return 0
	}
	return len(c.Channels[0])
}

// EncodedChunk is a chunk serialized as a self-contained WAV file
type EncodedChunk struct {
	Index        int     `json:"index"`
	WAV          []byte  `json:"-"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Filename returns the upload filename used for this chunk
func (e EncodedChunk) Filename() string {
	return chunkFilename(e.Index)
}

func chunkFilename(index int) string {
	return fmt.Sprintf("chunk_%03d.wav", index)
}

// almostEqual reports whether two times match within durationTolerance
func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= durationTolerance
}
