package audio

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// Container formats understood by BeepDecoder
const (
	FormatWAV    = "wav"
	FormatMP3    = "mp3"
	FormatFLAC   = "flac"
	FormatVorbis = "vorbis"
)

// decodeBlockSize is the number of frames pulled from a streamer per call
const decodeBlockSize = 8192

// Decoder turns an encoded audio file into raw samples
type Decoder interface {
	// Probe returns the duration in seconds without decoding samples
	Probe(ctx context.Context, data []byte, mimeType string) (float64, error)
	// Decode returns the full sample buffer
	Decode(ctx context.Context, data []byte, mimeType string) (*DecodedAudio, error)
}

// BeepDecoder decodes WAV, MP3, FLAC and Ogg Vorbis using gopxl/beep
type BeepDecoder struct{}

// NewBeepDecoder creates a new decoder
func NewBeepDecoder() *BeepDecoder {
	return &BeepDecoder{}
}

var mimeFormats = map[string]string{
	"audio/wav":       FormatWAV,
	"audio/x-wav":     FormatWAV,
	"audio/wave":      FormatWAV,
	"audio/vnd.wave":  FormatWAV,
	"audio/mpeg":      FormatMP3,
	"audio/mp3":       FormatMP3,
	"audio/mpeg3":     FormatMP3,
	"audio/x-mpeg-3":  FormatMP3,
	"audio/flac":      FormatFLAC,
	"audio/x-flac":    FormatFLAC,
	"audio/ogg":       FormatVorbis,
	"audio/vorbis":    FormatVorbis,
	"application/ogg": FormatVorbis,
}

// Audio types that are recognised but have no decoder
var unsupportedMIME = map[string]bool{
	"audio/aac":   true,
	"audio/x-aac": true,
	"audio/aacp":  true,
	"audio/mp4":   true,
	"audio/m4a":   true,
	"audio/x-m4a": true,
	"audio/webm":  true,
	"audio/opus":  true,
	"audio/amr":   true,
}

// DetectFormat resolves the container format. A declared type known to be
// undecodable is rejected first; otherwise the file's magic bytes win and
// the declared MIME type is the fallback.
func DetectFormat(data []byte, mimeType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if unsupportedMIME[mediaType] {
		return "", &UnsupportedFormatError{MIMEType: mimeType}
	}

	if f := sniffFormat(data); f != "" {
		return f, nil
	}
	if f, ok := mimeFormats[mediaType]; ok {
		return f, nil
	}

	return "", &UnsupportedFormatError{MIMEType: mimeType}
}

func sniffFormat(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatVorbis
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 != 0:
		// layer bits 00 is ADTS AAC, not MPEG audio
		return FormatMP3
	}
	return ""
}

// readSeekNopCloser keeps the reader seekable so mp3 and vorbis can size the
// stream from the container instead of decoding it.
type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// open creates a streamer for the detected format
func (d *BeepDecoder) open(data []byte, mimeType string) (beep.StreamSeekCloser, beep.Format, string, error) {
	format, err := DetectFormat(data, mimeType)
	if err != nil {
		return nil, beep.Format{}, "", err
	}

	var (
		streamer beep.StreamSeekCloser
		bf       beep.Format
	)
	r := bytes.NewReader(data)
	switch format {
	case FormatWAV:
		streamer, bf, err = wav.Decode(r)
	case FormatMP3:
		streamer, bf, err = mp3.Decode(readSeekNopCloser{r})
	case FormatFLAC:
		streamer, bf, err = flac.Decode(r)
	case FormatVorbis:
		streamer, bf, err = vorbis.Decode(readSeekNopCloser{r})
	}
	if err != nil {
		return nil, beep.Format{}, format, &CorruptAudioError{Format: format, Err: err}
	}
	if bf.SampleRate <= 0 || bf.NumChannels <= 0 {
		streamer.Close()
		return nil, beep.Format{}, format, &CorruptAudioError{Format: format,
			Err: fmt.Errorf("invalid stream format: %d Hz, %d channels", bf.SampleRate, bf.NumChannels)}
	}

	return streamer, bf, format, nil
}

// Probe returns the duration in seconds from the container header
func (d *BeepDecoder) Probe(ctx context.Context, data []byte, mimeType string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	streamer, bf, format, err := d.open(data, mimeType)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	frames := streamer.Len()
	if frames <= 0 {
		// Length unknown from the header, count frames instead
		frames, err = countFrames(ctx, streamer)
		if err != nil {
			if ctx.Err() != nil {
				return 0, err
			}
			return 0, &CorruptAudioError{Format: format, Err: err}
		}
		if frames <= 0 {
			return 0, &CorruptAudioError{Format: format, Err: fmt.Errorf("stream contains no samples")}
		}
	}

	return float64(frames) / float64(bf.SampleRate), nil
}

// Decode decodes the whole file. Channel count and sample rate are preserved;
// beep exposes at most two channels.
func (d *BeepDecoder) Decode(ctx context.Context, data []byte, mimeType string) (*DecodedAudio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	streamer, bf, format, err := d.open(data, mimeType)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	numChannels := bf.NumChannels
	if numChannels > 2 {
		numChannels = 2
	}

	capacity := streamer.Len()
	if capacity < 0 {
		capacity = 0
	}
	channels := make([][]float32, numChannels)
	for ch := range channels {
		channels[ch] = make([]float32, 0, capacity)
	}

	block := make([][2]float64, decodeBlockSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := streamer.Stream(block)
		for _, frame := range block[:n] {
			for ch := range channels {
				channels[ch] = append(channels[ch], float32(frame[ch]))
			}
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, &CorruptAudioError{Format: format, Err: err}
	}

	decoded := &DecodedAudio{SampleRate: int(bf.SampleRate), Channels: channels}
	if decoded.TotalSamples() == 0 {
		return nil, &CorruptAudioError{Format: format, Err: fmt.Errorf("stream contains no samples")}
	}

	return decoded, nil
}

func countFrames(ctx context.Context, streamer beep.Streamer) (int, error) {
	block := make([][2]float64, decodeBlockSize)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, ok := streamer.Stream(block)
		total += n
		if !ok {
			break
		}
	}
	return total, streamer.Err()
}
