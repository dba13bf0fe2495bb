package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// WAVHeaderSize is the size of the canonical RIFF/WAVE header in bytes
	WAVHeaderSize = 44

	// PCM16Scale maps a full-scale float sample to int16
	PCM16Scale = 32767

	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// Samples is a block of captured audio: interleaved float samples in [-1, 1]
type Samples struct {
	Data       []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of complete frames in the block
func (s Samples) Frames() int {
	if s.Channels <= 1 {
		return len(s.Data)
	}
	return len(s.Data) / s.Channels
}

// Duration returns the playback length of the block
func (s Samples) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

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

// Downmix averages each frame of interleaved samples into a single mono sample.
// Mono input is returned as is; a trailing partial frame is dropped.
func Downmix(data []float32, channels int) []float32 {
	if channels <= 1 {
		return data
	}

	frames := len(data) / channels
	mono := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		base := f * channels
		for c := 0; c < channels; c++ {
			sum += data[base+c]
		}
		mono[f] = sum / float32(channels)
	}
	return mono
}

// ToPCM16 scales a float sample by 32767 and saturates it to ±32767.
// The range is symmetric so that -1.0 and anything below it land on the same value.
func ToPCM16(sample float32) int16 {
	v := float64(sample) * PCM16Scale
	switch {
	case math.IsNaN(v):
		return 0
	case v >= PCM16Scale:
		return PCM16Scale
	case v <= -PCM16Scale:
		return -PCM16Scale
	}
	return int16(v)
}

// EncodeWAV downmixes the block to mono and encodes it as a PCM-16 WAV container.
// The output is a pure function of the input; the input slice is never modified.
func EncodeWAV(s Samples) ([]byte, error) {
	if s.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", s.SampleRate)
	}

	if s.Channels < 1 {
		return nil, fmt.Errorf("channel count must be at least 1, got %d", s.Channels)
	}

	mono := Downmix(s.Data, s.Channels)
	pcm := make([]int16, len(mono))
	for i, v := range mono {
		pcm[i] = ToPCM16(v)
	}

	return EncodePCM16(pcm, s.SampleRate)
}

// EncodePCM16 encodes mono PCM-16 samples into WAV format
func EncodePCM16(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * bytesPerSample)

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * bytesPerSample,
		BlockAlign:    bytesPerSample,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+int(dataSize)))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// ValidateWAV validates a WAV file format without decoding the audio data
func ValidateWAV(data []byte) error {
	if len(data) < WAVHeaderSize {
		return fmt.Errorf("WAV data too short: need at least %d bytes, got %d", WAVHeaderSize, len(data))
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

// WAVInfo holds the header fields of an encoded container
type WAVInfo struct {
	SampleRate    uint32        `json:"sample_rate"`
	Channels      uint16        `json:"channels"`
	BitsPerSample uint16        `json:"bits_per_sample"`
	ByteRate      uint32        `json:"byte_rate"`
	BlockAlign    uint16        `json:"block_align"`
	DataSize      uint32        `json:"data_size_bytes"`
	NumSamples    uint32        `json:"num_samples"`
	Duration      time.Duration `json:"duration"`
}

// ReadWAVInfo parses the 44-byte header of a container produced by EncodeWAV
func ReadWAVInfo(data []byte) (*WAVInfo, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	var header WAVHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if header.SampleRate == 0 || header.BitsPerSample < 8 || header.BitsPerSample%8 != 0 {
		return nil, fmt.Errorf("invalid WAV header: sample rate %d, bits per sample %d",
			header.SampleRate, header.BitsPerSample)
	}

	numSamples := header.Subchunk2Size / (uint32(header.BitsPerSample) / 8)
	duration := time.Duration(numSamples) * time.Second / time.Duration(header.SampleRate)

	return &WAVInfo{
		SampleRate:    header.SampleRate,
		Channels:      header.NumChannels,
		BitsPerSample: header.BitsPerSample,
		ByteRate:      header.ByteRate,
		BlockAlign:    header.BlockAlign,
		DataSize:      header.Subchunk2Size,
		NumSamples:    numSamples,
		Duration:      duration,
	}, nil
}
