package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestEncodeWAV(t *testing.T) {
	// 440Hz sine wave for 0.1 seconds at 16kHz
	sampleRate := 16000
	numSamples := sampleRate / 10
	data := make([]float32, numSamples)
	for i := range data {
		ts := float64(i) / float64(sampleRate)
		data[i] = float32(0.5 * math.Sin(2*math.Pi*440*ts))
	}

	wavData, err := EncodeWAV(Samples{Data: data, Channels: 1, SampleRate: sampleRate})
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := WAVHeaderSize + numSamples*2
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := ReadWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}

	if info.SampleRate != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}

	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}

	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}

	if info.DataSize != uint32(numSamples*2) {
		t.Errorf("Expected data size %d, got %d", numSamples*2, info.DataSize)
	}

	if info.Duration != 100*time.Millisecond {
		t.Errorf("Expected duration 100ms, got %v", info.Duration)
	}
}

func TestEncodeWAVHeaderLayout(t *testing.T) {
	wavData, err := EncodeWAV(Samples{Data: []float32{0, 0.5, -0.5}, Channels: 1, SampleRate: 22050})
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	le := binary.LittleEndian
	checks := []struct {
		name     string
		got      uint32
		expected uint32
	}{
		{"chunk size", le.Uint32(wavData[4:8]), 36 + 6},
		{"fmt size", le.Uint32(wavData[16:20]), 16},
		{"audio format", uint32(le.Uint16(wavData[20:22])), 1},
		{"channels", uint32(le.Uint16(wavData[22:24])), 1},
		{"sample rate", le.Uint32(wavData[24:28]), 22050},
		{"byte rate", le.Uint32(wavData[28:32]), 44100},
		{"block align", uint32(le.Uint16(wavData[32:34])), 2},
		{"bits per sample", uint32(le.Uint16(wavData[34:36])), 16},
		{"data size", le.Uint32(wavData[40:44]), 6},
	}
	for _, c := range checks {
		if c.got != c.expected {
			t.Errorf("%s: expected %d, got %d", c.name, c.expected, c.got)
		}
	}

	for i, tag := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
		if string(wavData[i:i+4]) != tag {
			t.Errorf("Expected tag %q at offset %d, got %q", tag, i, wavData[i:i+4])
		}
	}

	expectedPCM := []int16{0, 16383, -16383}
	for i, want := range expectedPCM {
		got := int16(le.Uint16(wavData[WAVHeaderSize+2*i:]))
		if got != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestEncodeWAVSizeForAllChannelCounts(t *testing.T) {
	for channels := 1; channels <= 6; channels++ {
		for _, frames := range []int{0, 1, 7, 160} {
			data := make([]float32, channels*frames)
			for i := range data {
				data[i] = float32(i%5)/5 - 0.4
			}

			wavData, err := EncodeWAV(Samples{Data: data, Channels: channels, SampleRate: 8000})
			if err != nil {
				t.Fatalf("EncodeWAV(%d channels, %d frames) failed: %v", channels, frames, err)
			}

			if len(wavData) != WAVHeaderSize+2*frames {
				t.Errorf("channels=%d frames=%d: expected size %d, got %d",
					channels, frames, WAVHeaderSize+2*frames, len(wavData))
			}
		}
	}
}

func TestToPCM16Saturates(t *testing.T) {
	tests := []struct {
		in       float32
		expected int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{0.5, 16383},
		{1.5, 32767},
		{100, 32767},
		{-1.5, -32767},
		{-100, -32767},
		{float32(math.Inf(1)), 32767},
		{float32(math.Inf(-1)), -32767},
		{float32(math.NaN()), 0},
	}

	for _, tt := range tests {
		if got := ToPCM16(tt.in); got != tt.expected {
			t.Errorf("ToPCM16(%v): expected %d, got %d", tt.in, tt.expected, got)
		}
	}
}

func TestDownmix(t *testing.T) {
	mono := Downmix([]float32{1.0, -1.0, 0.5, 0.5}, 2)
	expected := []float32{0.0, 0.5}

	if len(mono) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(mono))
	}
	for i := range expected {
		if mono[i] != expected[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, expected[i], mono[i])
		}
	}

	// trailing partial frame is dropped
	if got := Downmix([]float32{0.3, 0.3, 0.3, 0.9}, 3); len(got) != 1 {
		t.Errorf("Expected 1 frame, got %d", len(got))
	}

	in := []float32{0.1, 0.2}
	if got := Downmix(in, 1); &got[0] != &in[0] {
		t.Error("Expected mono input to pass through unchanged")
	}
}

func TestEncodeWAVIdempotent(t *testing.T) {
	s := Samples{Data: []float32{0.9, -0.2, 0.1, 0.7, -1.2, 2.0}, Channels: 2, SampleRate: 16000}
	original := append([]float32(nil), s.Data...)

	first, err := EncodeWAV(s)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	second, err := EncodeWAV(s)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("Expected identical output for identical input")
	}

	for i := range original {
		if s.Data[i] != original[i] {
			t.Fatalf("Input sample %d was modified", i)
		}
	}
}

func TestEncodeWAVInvalidInput(t *testing.T) {
	if _, err := EncodeWAV(Samples{Data: []float32{0.1}, Channels: 1, SampleRate: 0}); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := EncodeWAV(Samples{Data: []float32{0.1}, Channels: 0, SampleRate: 16000}); err == nil {
		t.Error("Expected error for zero channels")
	}

	if _, err := EncodePCM16([]int16{1, 2}, -1000); err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestValidateWAV(t *testing.T) {
	if err := ValidateWAV([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for too short WAV data")
	}

	invalidWAV := make([]byte, 50)
	copy(invalidWAV[0:4], []byte("FAKE"))
	if err := ValidateWAV(invalidWAV); err == nil {
		t.Error("Expected error for invalid RIFF header")
	}

	valid, err := EncodePCM16([]int16{1, 2, 3, 4}, 16000)
	if err != nil {
		t.Fatalf("EncodePCM16 failed: %v", err)
	}

	for _, bits := range []uint16{0, 1, 4, 7, 12} {
		patched := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint16(patched[34:36], bits)
		if _, err := ReadWAVInfo(patched); err == nil {
			t.Errorf("Expected error for %d bits per sample", bits)
		}
	}

	patched := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(patched[24:28], 0)
	if _, err := ReadWAVInfo(patched); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestSamplesDuration(t *testing.T) {
	s := Samples{Data: make([]float32, 32000), Channels: 2, SampleRate: 16000}
	if s.Frames() != 16000 {
		t.Errorf("Expected 16000 frames, got %d", s.Frames())
	}
	if s.Duration() != time.Second {
		t.Errorf("Expected 1s, got %v", s.Duration())
	}
	if (Samples{Data: make([]float32, 10)}).Duration() != 0 {
		t.Error("Expected zero duration without a sample rate")
	}
}
