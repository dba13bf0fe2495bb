package capture

import (
	"sync"
	"time"
)

// Buffer is a fixed-capacity store for interleaved float samples written by a
// device callback. Once full, further samples are counted and dropped.
type Buffer struct {
	channels   int
	sampleRate int
	capacity   int // samples, not frames

	data    []float32
	dropped uint64

	lastUpdate time.Time
	writes     uint64

	mu sync.RWMutex
}

// BufferStats represents buffer statistics for monitoring
type BufferStats struct {
	Channels       int           `json:"channels"`
	SampleRate     int           `json:"sample_rate"`
	CapacityFrames int           `json:"capacity_frames"`
	CapturedFrames int           `json:"captured_frames"`
	DroppedSamples uint64        `json:"dropped_samples"`
	Writes         uint64        `json:"writes"`
	CapturedLength time.Duration `json:"captured_length"`
	LastUpdate     time.Time     `json:"last_update"`
}

// NewBuffer creates a buffer holding at most maxSeconds of audio
func NewBuffer(channels, sampleRate, maxSeconds int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	capacity := channels * sampleRate * maxSeconds
	if capacity < 0 {
		capacity = 0
	}

	now := time.Now()
	return &Buffer{
		channels:   channels,
		sampleRate: sampleRate,
		capacity:   capacity,
		data:       make([]float32, 0, capacity),
		lastUpdate: now,
	}
}

// Write appends samples until the buffer is full and returns how many were kept.
// Partial frames at the capacity boundary are not split.
func (b *Buffer) Write(samples []float32) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.writes++
	b.lastUpdate = time.Now()

	room := b.capacity - len(b.data)
	n := len(samples)
	if n > room {
		n = room - room%b.channels
	}
	b.data = append(b.data, samples[:n]...)
	b.dropped += uint64(len(samples) - n)

	return n
}

// Position returns the number of complete frames captured so far
func (b *Buffer) Position() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data) / b.channels
}

// Full reports whether the buffer has reached its capacity
func (b *Buffer) Full() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.capacity-len(b.data) < b.channels
}

// Snapshot returns a copy of the complete frames captured so far
func (b *Buffer) Snapshot() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.data) - len(b.data)%b.channels
	out := make([]float32, n)
	copy(out, b.data[:n])
	return out
}

// Stats returns current buffer statistics
func (b *Buffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	frames := len(b.data) / b.channels
	var length time.Duration
	if b.sampleRate > 0 {
		length = time.Duration(frames) * time.Second / time.Duration(b.sampleRate)
	}

	return BufferStats{
		Channels:       b.channels,
		SampleRate:     b.sampleRate,
		CapacityFrames: b.capacity / b.channels,
		CapturedFrames: frames,
		DroppedSamples: b.dropped,
		Writes:         b.writes,
		CapturedLength: length,
		LastUpdate:     b.lastUpdate,
	}
}
