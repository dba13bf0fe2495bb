// Package capturetest provides an in-memory capture backend for tests.
package capturetest

import (
	"sync"

	"github.com/izahai/SceneFit/internal/capture"
)

// Backend delivers preset samples instead of reading a device
type Backend struct {
	// Samples are written to the sink as soon as a stream opens
	Samples []float32
	// OpenErr is returned by Open when set
	OpenErr error
	// CloseErr is returned by every handle's Close when set
	CloseErr error

	mu          sync.Mutex
	sink        func([]float32)
	lastOptions capture.Options
	opens       int
	closes      int
}

// Open records the options and feeds Samples to sink
func (b *Backend) Open(opts capture.Options, sink func(samples []float32)) (capture.Handle, error) {
	b.mu.Lock()
	if b.OpenErr != nil {
		b.mu.Unlock()
		return nil, b.OpenErr
	}
	b.opens++
	b.sink = sink
	b.lastOptions = opts
	initial := append([]float32(nil), b.Samples...)
	b.mu.Unlock()

	if len(initial) > 0 {
		sink(initial)
	}
	return &handle{backend: b}, nil
}

// Feed pushes more samples into the most recently opened stream
func (b *Backend) Feed(samples []float32) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink(samples)
	}
}

// Opens returns how many streams were opened
func (b *Backend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// Closes returns how many handles were released
func (b *Backend) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// OpenHandles returns streams opened but not yet released
func (b *Backend) OpenHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens - b.closes
}

// LastOptions returns the options of the most recent Open
func (b *Backend) LastOptions() capture.Options {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastOptions
}

type handle struct {
	backend *Backend
}

func (h *handle) Close() error {
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	h.backend.closes++
	h.backend.sink = nil
	return h.backend.CloseErr
}
