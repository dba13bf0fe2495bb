package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// LoadWAVFile reads a PCM WAV file of any channel count and bit depth from disk
func LoadWAVFile(path string) (Samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return Samples{}, fmt.Errorf("failed to open WAV file %s: %w", path, err)
	}
	defer f.Close()

	s, err := ReadWAV(f)
	if err != nil {
		return Samples{}, fmt.Errorf("failed to decode WAV file %s: %w", path, err)
	}
	return s, nil
}

// ReadWAV decodes integer PCM from r and normalizes it to float samples in [-1, 1]
func ReadWAV(r io.ReadSeeker) (Samples, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return Samples{}, fmt.Errorf("invalid WAV file: %w", err)
		}
		return Samples{}, fmt.Errorf("invalid WAV file")
	}

	if d.WavAudioFormat != 1 {
		return Samples{}, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", d.WavAudioFormat)
	}

	if d.BitDepth < 8 || d.BitDepth > 32 || d.BitDepth%8 != 0 {
		return Samples{}, fmt.Errorf("unsupported bit depth: %d", d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Samples{}, fmt.Errorf("failed to read PCM data: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return Samples{}, fmt.Errorf("WAV file has no PCM data")
	}

	// 8-bit PCM is unsigned around 128; wider depths are signed
	offset := 0
	if d.BitDepth == 8 {
		offset = 128
	}

	scale := float32(int64(1) << (d.BitDepth - 1))
	data := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		data[i] = float32(v-offset) / scale
	}

	return Samples{
		Data:       data,
		Channels:   buf.Format.NumChannels,
		SampleRate: buf.Format.SampleRate,
	}, nil
}
