package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavHeaderSize    = 44
	wavBitsPerSample = 16
	wavFormatPCM     = 1
	pcmMaxAmplitude  = 32767
)

// WAVHeader represents the header structure of a WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// EncodeChunk serializes a chunk into a standalone WAV file. The output is
// deterministic: the same chunk always yields identical bytes.
func EncodeChunk(chunk AudioChunk) (EncodedChunk, error) {
	data, err := encodeWAV(chunk.Index, chunk.Channels, chunk.SampleRate)
	if err != nil {
		return EncodedChunk{}, err
	}
	return EncodedChunk{
		Index:        chunk.Index,
		WAV:          data,
		StartSeconds: chunk.StartSeconds,
		EndSeconds:   chunk.EndSeconds,
	}, nil
}

// EncodeWAV encodes per-channel float samples into 16-bit PCM WAV format
func EncodeWAV(channels [][]float32, sampleRate int) ([]byte, error) {
	return encodeWAV(0, channels, sampleRate)
}

func encodeWAV(index int, channels [][]float32, sampleRate int) ([]byte, error) {
	if len(channels) == 0 {
		return nil, &EncodingError{ChunkIndex: index, Reason: "channel count must be positive"}
	}
	if len(channels) > math.MaxUint16 {
		return nil, &EncodingError{ChunkIndex: index, Reason: fmt.Sprintf("too many channels: %d", len(channels))}
	}
	if sampleRate <= 0 || sampleRate > math.MaxInt32 {
		return nil, &EncodingError{ChunkIndex: index, Reason: fmt.Sprintf("sample rate must be positive, got %d", sampleRate)}
	}

	numFrames := len(channels[0])
	for ch, samples := range channels {
		if len(samples) != numFrames {
			return nil, &EncodingError{ChunkIndex: index,
				Reason: fmt.Sprintf("channel %d has %d samples, expected %d", ch, len(samples), numFrames)}
		}
	}

	numChannels := uint16(len(channels))
	blockAlign := numChannels * wavBitsPerSample / 8
	dataSize := uint64(numFrames) * uint64(blockAlign)
	if dataSize > math.MaxUint32-36 {
		return nil, &EncodingError{ChunkIndex: index, Reason: fmt.Sprintf("data size %d exceeds WAV limit", dataSize)}
	}

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + uint32(dataSize),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: wavBitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}

	// Interleave frame by frame
	pcm := make([]int16, numFrames*len(channels))
	for frame := 0; frame < numFrames; frame++ {
		base := frame * len(channels)
		for ch, samples := range channels {
			pcm[base+ch] = QuantizeSample(samples[frame])
		}
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+int(dataSize)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// QuantizeSample clamps an amplitude to [-1, 1] and converts it to 16-bit PCM
func QuantizeSample(sample float32) int16 {
	v := float64(sample)
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int16(math.Round(v * pcmMaxAmplitude))
}

// DecodeWAV decodes a 16-bit PCM WAV file back to float samples
func DecodeWAV(data []byte) (*DecodedAudio, error) {
	info, err := GetWAVInfo(data)
	if err != nil {
		return nil, err
	}
	if info.AudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", info.AudioFormat)
	}
	if info.BitsPerSample != wavBitsPerSample {
		return nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", info.BitsPerSample)
	}
	if info.Channels == 0 {
		return nil, fmt.Errorf("invalid channel count: 0")
	}

	payload := data[wavHeaderSize:]
	if uint64(len(payload)) < uint64(info.DataSize) {
		return nil, fmt.Errorf("WAV data truncated: header declares %d bytes, got %d", info.DataSize, len(payload))
	}

	numChannels := int(info.Channels)
	pcm := make([]int16, int(info.DataSize)/2)
	if err := binary.Read(bytes.NewReader(payload[:len(pcm)*2]), binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to read audio samples: %w", err)
	}

	numFrames := len(pcm) / numChannels
	channels := make([][]float32, numChannels)
	for ch := range channels {
		channels[ch] = make([]float32, numFrames)
	}
	for frame := 0; frame < numFrames; frame++ {
		for ch := 0; ch < numChannels; ch++ {
			channels[ch][frame] = float32(pcm[frame*numChannels+ch]) / pcmMaxAmplitude
		}
	}

	return &DecodedAudio{SampleRate: int(info.SampleRate), Channels: channels}, nil
}

// ValidateWAV validates a WAV file format without decoding the entire audio data
func ValidateWAV(data []byte) error {
	if len(data) < wavHeaderSize {
		return fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if string(data[36:40]) != "data" {
		return fmt.Errorf("invalid WAV file: missing data chunk")
	}

	return nil
}

// WAVInfo holds basic information about a WAV file
type WAVInfo struct {
	AudioFormat   uint16  `json:"audio_format"`
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumSamples    uint32  `json:"num_samples"` // per channel
}

// GetWAVInfo extracts metadata from a canonical WAV header
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	var header WAVHeader
	if err := binary.Read(bytes.NewReader(data[:wavHeaderSize]), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if header.SampleRate == 0 {
		return nil, fmt.Errorf("invalid sample rate: 0")
	}
	if header.BlockAlign == 0 {
		return nil, fmt.Errorf("invalid block align: 0")
	}

	numSamples := header.Subchunk2Size / uint32(header.BlockAlign)
	return &WAVInfo{
		AudioFormat:   header.AudioFormat,
		SampleRate:    header.SampleRate,
		Channels:      header.NumChannels,
		BitsPerSample: header.BitsPerSample,
		Duration:      float64(numSamples) / float64(header.SampleRate),
		DataSize:      header.Subchunk2Size,
		NumSamples:    numSamples,
	}, nil
}
