package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV writes interleaved integer PCM through the go-audio encoder
func writeTestWAV(t *testing.T, path string, data []int, sampleRate, bitDepth, channels int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write WAV: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to close WAV encoder: %v", err)
	}
}

func TestLoadWAVFileStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeTestWAV(t, path, []int{16384, -16384, 8192, 8192, 0, 32767}, 44100, 16, 2)

	s, err := LoadWAVFile(path)
	if err != nil {
		t.Fatalf("LoadWAVFile failed: %v", err)
	}

	if s.Channels != 2 {
		t.Errorf("Expected 2 channels, got %d", s.Channels)
	}
	if s.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", s.SampleRate)
	}
	if len(s.Data) != 6 {
		t.Fatalf("Expected 6 samples, got %d", len(s.Data))
	}
	if s.Data[0] != 0.5 || s.Data[1] != -0.5 || s.Data[2] != 0.25 {
		t.Errorf("Unexpected normalized samples: %v", s.Data[:3])
	}

	// re-encoding yields the canonical mono container
	wavData, err := EncodeWAV(s)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	info, err := ReadWAVInfo(wavData)
	if err != nil {
		t.Fatalf("ReadWAVInfo failed: %v", err)
	}
	if info.Channels != 1 || info.NumSamples != 3 || info.SampleRate != 44100 {
		t.Errorf("Unexpected re-encoded info: %+v", info)
	}
}

func TestLoadWAVFile8Bit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "8bit.wav")
	writeTestWAV(t, path, []int{128, 192, 64, 0, 255}, 8000, 8, 1)

	s, err := LoadWAVFile(path)
	if err != nil {
		t.Fatalf("LoadWAVFile failed: %v", err)
	}

	expected := []float32{0, 0.5, -0.5, -1, float32(127) / 128}
	if len(s.Data) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(s.Data))
	}
	for i, want := range expected {
		if s.Data[i] != want {
			t.Errorf("Sample %d: expected %v, got %v", i, want, s.Data[i])
		}
	}
	if s.SampleRate != 8000 || s.Channels != 1 {
		t.Errorf("Unexpected format: rate=%d channels=%d", s.SampleRate, s.Channels)
	}
}

func TestReadWAVRoundTrip(t *testing.T) {
	encoded, err := EncodeWAV(Samples{Data: []float32{0, 0.5, -0.5, 1}, Channels: 1, SampleRate: 16000})
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	s, err := ReadWAV(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}

	if s.Channels != 1 || s.SampleRate != 16000 || len(s.Data) != 4 {
		t.Fatalf("Unexpected decoded block: channels=%d rate=%d len=%d", s.Channels, s.SampleRate, len(s.Data))
	}
	if s.Data[3] != float32(32767)/32768 {
		t.Errorf("Expected full-scale sample, got %v", s.Data[3])
	}
}

func TestLoadWAVFileErrors(t *testing.T) {
	if _, err := LoadWAVFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("definitely not a wav file, just text"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := LoadWAVFile(path); err == nil {
		t.Error("Expected error for non-WAV file")
	}
}
