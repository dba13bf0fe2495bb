package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/izahai/SceneFit/internal/audio"
)

var (
	// ErrNoSamplesCaptured is returned when a session is stopped before any audio arrived
	ErrNoSamplesCaptured = errors.New("no samples captured")

	// ErrDeviceNotFound is returned when the named input device does not exist
	ErrDeviceNotFound = errors.New("input device not found")

	// ErrInvalidHandle is returned when stopping a nil or already released session
	ErrInvalidHandle = errors.New("invalid capture handle")
)

// Options describes one recording request
type Options struct {
	Device             string // empty selects the platform default
	SampleRate         int
	MaxDurationSeconds int
	Channels           int
	FramesPerBuffer    int // 0 lets the backend choose
}

// Validate checks the recording options
func (o Options) Validate() error {
	if o.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", o.SampleRate)
	}
	if o.MaxDurationSeconds <= 0 {
		return fmt.Errorf("max duration must be positive, got %d", o.MaxDurationSeconds)
	}
	if o.Channels < 1 {
		return fmt.Errorf("channel count must be at least 1, got %d", o.Channels)
	}
	if o.FramesPerBuffer < 0 {
		return fmt.Errorf("frames per buffer cannot be negative, got %d", o.FramesPerBuffer)
	}
	return nil
}

// Handle is an open device stream. Close stops delivery and releases the device.
type Handle interface {
	Close() error
}

// Backend opens input streams that deliver interleaved float samples to sink
type Backend interface {
	Open(opts Options, sink func(samples []float32)) (Handle, error)
}

// Session is a single bounded recording
type Session struct {
	ID        uint64
	Options   Options
	StartedAt time.Time

	buffer      *Buffer
	handle      Handle
	stopped     atomic.Bool
	releaseOnce sync.Once
	releaseErr  error
}

// Stats returns the session buffer statistics
func (s *Session) Stats() BufferStats {
	return s.buffer.Stats()
}

func (s *Session) release() error {
	s.releaseOnce.Do(func() {
		if s.handle != nil {
			s.releaseErr = s.handle.Close()
		}
	})
	return s.releaseErr
}

// Recorder runs at most one capture session at a time against a backend
type Recorder struct {
	backend Backend
	logger  *slog.Logger

	mu     sync.Mutex
	active *Session
	nextID uint64
}

// NewRecorder creates a recorder using the given backend
func NewRecorder(backend Backend, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		backend: backend,
		logger:  logger,
	}
}

// StartRecording begins buffering from the configured device. When a session
// is already active it is returned unchanged and no new stream is opened.
func (r *Recorder) StartRecording(opts Options) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		r.logger.Debug("Recording already active", slog.Uint64("session_id", r.active.ID))
		return r.active, nil
	}

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture options: %w", err)
	}

	buf := NewBuffer(opts.Channels, opts.SampleRate, opts.MaxDurationSeconds)
	handle, err := r.backend.Open(opts, func(samples []float32) {
		buf.Write(samples)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open input device %q: %w", opts.Device, err)
	}

	r.nextID++
	s := &Session{
		ID:        r.nextID,
		Options:   opts,
		StartedAt: time.Now(),
		buffer:    buf,
		handle:    handle,
	}
	r.active = s

	r.logger.Info("Recording started",
		slog.Uint64("session_id", s.ID),
		slog.String("device", deviceLabel(opts.Device)),
		slog.Int("sample_rate", opts.SampleRate),
		slog.Int("channels", opts.Channels),
		slog.Int("max_seconds", opts.MaxDurationSeconds))

	return s, nil
}

// StopRecording halts the session and returns exactly the samples captured
// since it started. The device handle is always released. Stopping a session
// that was already stopped fails with ErrInvalidHandle.
func (r *Recorder) StopRecording(s *Session) (audio.Samples, error) {
	if s == nil {
		return audio.Samples{}, fmt.Errorf("%w: %w", ErrNoSamplesCaptured, ErrInvalidHandle)
	}

	r.mu.Lock()
	if r.active == s {
		r.active = nil
	}
	r.mu.Unlock()

	// a session yields its samples once; later stops see a released handle
	if s.handle == nil || s.buffer == nil || !s.stopped.CompareAndSwap(false, true) {
		return audio.Samples{}, fmt.Errorf("%w: %w", ErrNoSamplesCaptured, ErrInvalidHandle)
	}

	if err := s.release(); err != nil {
		r.logger.Warn("Failed to release input device cleanly",
			slog.Uint64("session_id", s.ID),
			slog.String("error", err.Error()))
	}

	stats := s.buffer.Stats()
	r.logger.Info("Recording stopped",
		slog.Uint64("session_id", s.ID),
		slog.Int("frames", stats.CapturedFrames),
		slog.Duration("captured", stats.CapturedLength),
		slog.Uint64("dropped_samples", stats.DroppedSamples))

	if stats.CapturedFrames == 0 {
		return audio.Samples{}, ErrNoSamplesCaptured
	}

	return audio.Samples{
		Data:       s.buffer.Snapshot(),
		Channels:   s.Options.Channels,
		SampleRate: s.Options.SampleRate,
	}, nil
}

// Active returns the current session, or nil when idle
func (r *Recorder) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Close releases any session still holding the device
func (r *Recorder) Close() error {
	r.mu.Lock()
	s := r.active
	r.active = nil
	r.mu.Unlock()

	if s == nil {
		return nil
	}
	s.stopped.Store(true)
	return s.release()
}

func deviceLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
