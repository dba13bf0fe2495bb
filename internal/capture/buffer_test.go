package capture

import (
	"sync"
	"testing"
	"time"
)

func TestNewBuffer(t *testing.T) {
	buffer := NewBuffer(2, 16000, 15)

	if buffer == nil {
		t.Fatal("NewBuffer returned nil")
	}

	stats := buffer.Stats()
	if stats.CapacityFrames != 16000*15 {
		t.Errorf("Expected capacity %d frames, got %d", 16000*15, stats.CapacityFrames)
	}

	if buffer.Position() != 0 {
		t.Errorf("Expected initial position 0, got %d", buffer.Position())
	}

	if buffer.Full() {
		t.Error("New buffer should not be full")
	}
}

func TestBufferWrite(t *testing.T) {
	buffer := NewBuffer(1, 10, 1)

	initial := buffer.Stats().LastUpdate
	time.Sleep(10 * time.Millisecond)

	if n := buffer.Write([]float32{0.1, 0.2, 0.3}); n != 3 {
		t.Errorf("Expected 3 samples written, got %d", n)
	}

	if !buffer.Stats().LastUpdate.After(initial) {
		t.Error("Expected last update time to be updated")
	}

	if buffer.Position() != 3 {
		t.Errorf("Expected position 3, got %d", buffer.Position())
	}

	got := buffer.Snapshot()
	expected := []float32{0.1, 0.2, 0.3}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}

func TestBufferStopsAtCapacity(t *testing.T) {
	// 2 channels, 4 Hz, 1 second = 8 samples
	buffer := NewBuffer(2, 4, 1)

	if n := buffer.Write(make([]float32, 6)); n != 6 {
		t.Errorf("Expected 6 samples written, got %d", n)
	}

	if n := buffer.Write(make([]float32, 6)); n != 2 {
		t.Errorf("Expected 2 samples written at capacity, got %d", n)
	}

	if !buffer.Full() {
		t.Error("Expected buffer to be full")
	}

	if n := buffer.Write([]float32{1, 1}); n != 0 {
		t.Errorf("Expected nothing written to a full buffer, got %d", n)
	}

	stats := buffer.Stats()
	if stats.CapturedFrames != 4 {
		t.Errorf("Expected 4 frames, got %d", stats.CapturedFrames)
	}
	if stats.DroppedSamples != 6 {
		t.Errorf("Expected 6 dropped samples, got %d", stats.DroppedSamples)
	}
	if stats.CapturedLength != time.Second {
		t.Errorf("Expected captured length 1s, got %v", stats.CapturedLength)
	}
	if stats.Writes != 3 {
		t.Errorf("Expected 3 writes, got %d", stats.Writes)
	}
}

func TestBufferSnapshotIsCopy(t *testing.T) {
	buffer := NewBuffer(1, 100, 1)
	buffer.Write([]float32{0.5, 0.5})

	snap := buffer.Snapshot()
	snap[0] = -1

	if buffer.Snapshot()[0] != 0.5 {
		t.Error("Snapshot should not alias the buffer")
	}
}

func TestBufferConcurrentWrites(t *testing.T) {
	buffer := NewBuffer(1, 1000, 10)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buffer.Write(make([]float32, 10))
			}
		}()
	}
	wg.Wait()

	if buffer.Position() != 10000 {
		t.Errorf("Expected 10000 frames, got %d", buffer.Position())
	}
	if !buffer.Full() {
		t.Error("Expected buffer to be full")
	}
}
