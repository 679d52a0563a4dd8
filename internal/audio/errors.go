package audio

import "fmt"

// InvalidSourceError reports a source whose size or duration cannot be planned
type InvalidSourceError struct {
	SizeBytes       int64
	DurationSeconds float64
	Reason          string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid audio source (size=%d bytes, duration=%.3fs): %s",
		e.SizeBytes, e.DurationSeconds, e.Reason)
}

// UnsupportedFormatError reports a codec or container the decoder cannot read
type UnsupportedFormatError struct {
	MIMEType string
}

func (e *UnsupportedFormatError) Error() string {
	if e.MIMEType == "" {
		return "unsupported audio format: unrecognized content"
	}
	return fmt.Sprintf("unsupported audio format: %s", e.MIMEType)
}

// CorruptAudioError reports a recognized container with a malformed payload
type CorruptAudioError struct {
	Format string
	Err    error
}

func (e *CorruptAudioError) Error() string {
	return fmt.Sprintf("corrupt %s audio: %v", e.Format, e.Err)
}

func (e *CorruptAudioError) Unwrap() error {
	return e.Err
}

// EncodingError reports a chunk that cannot be serialized as WAV
type EncodingError struct {
	ChunkIndex int
	Reason     string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode chunk %d: %s", e.ChunkIndex, e.Reason)
}
