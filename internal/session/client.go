package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/izahai/SceneFit/internal/audio"
	"github.com/izahai/SceneFit/internal/capture"
	"github.com/izahai/SceneFit/internal/metrics"
	"github.com/izahai/SceneFit/internal/transcription"
)

// ErrClosed is returned by StartRecording and Submit after Close
var ErrClosed = errors.New("transcription client is closed")

// Recorder captures one bounded session at a time
type Recorder interface {
	StartRecording(opts capture.Options) (*capture.Session, error)
	StopRecording(s *capture.Session) (audio.Samples, error)
}

// Transcriber turns a WAV container into text
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Config holds the per-cycle settings of a Client
type Config struct {
	Capture capture.Options

	// SubmitTimeout bounds each submission; zero uses transcription.DefaultTimeout
	SubmitTimeout time.Duration

	// KeepRecordingsDir, when set, receives a copy of every encoded recording
	KeepRecordingsDir string
}

// Stats is a snapshot of the client state for monitoring
type Stats struct {
	Recording      bool      `json:"recording"`
	RecordingSince time.Time `json:"recording_since,omitempty"`
	Cycles         uint64    `json:"cycles"`
	InFlight       int       `json:"in_flight"`
	Listeners      int       `json:"listeners"`
	LastTranscript string    `json:"last_transcript,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastResultAt   time.Time `json:"last_result_at,omitempty"`
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

// Client is the microphone-to-text state machine: Idle -> Recording -> Idle
type Client struct {
	config      Config
	recorder    Recorder
	transcriber Transcriber
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu       sync.Mutex
	active   *capture.Session
	closed   bool
	cycles   uint64
	inFlight int
	last     Result
	lastAt   time.Time

	lmu          sync.RWMutex
	listeners    []listenerEntry
	nextListener uint64

	wg sync.WaitGroup
}

// NewClient creates an idle client
func NewClient(logger *slog.Logger, config Config, recorder Recorder, transcriber Transcriber, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = transcription.DefaultTimeout
	}

	return &Client{
		config:      config,
		recorder:    recorder,
		transcriber: transcriber,
		metrics:     m,
		logger:      logger,
	}
}

// Subscribe registers l for cycle outcomes and returns a function that removes it
func (c *Client) Subscribe(l Listener) (unsubscribe func()) {
	c.lmu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, listenerEntry{id: id, listener: l})
	c.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.lmu.Lock()
			defer c.lmu.Unlock()
			for i, e := range c.listeners {
				if e.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// IsRecording reports whether a session is open
func (c *Client) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// StartRecording opens the microphone. It does nothing while already recording.
// Capture failures are returned and also delivered to listeners.
func (c *Client) StartRecording() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.active != nil {
		c.mu.Unlock()
		return nil
	}

	s, err := c.recorder.StartRecording(c.config.Capture)
	if err != nil {
		c.mu.Unlock()
		terr := transcription.Wrap(transcription.KindCapture, err, "Failed to start microphone")
		c.logger.Error("Recording could not start",
			slog.String("device", c.config.Capture.Device),
			slog.String("error", err.Error()))
		c.metrics.RecordCaptureFailure(string(terr.Kind))
		c.finish(Result{Err: terr}, nil)
		return terr
	}

	c.active = s
	c.mu.Unlock()

	c.metrics.RecordRecordingStarted()
	return nil
}

// StopAndTranscribe ends the open session and submits it in the background.
// It returns nil when idle; otherwise the channel receives exactly one Result.
func (c *Client) StopAndTranscribe() <-chan Result {
	return c.StopAndTranscribeContext(context.Background())
}

// StopAndTranscribeContext is StopAndTranscribe with a caller-controlled submission context
func (c *Client) StopAndTranscribeContext(ctx context.Context) <-chan Result {
	c.mu.Lock()
	s := c.active
	c.active = nil
	if s != nil {
		// Close must wait for this cycle even before its submission starts
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	defer c.wg.Done()

	out := make(chan Result, 1)

	samples, err := c.recorder.StopRecording(s)
	if err != nil {
		c.metrics.RecordRecordingStopped(0, 0)
		c.metrics.RecordCaptureFailure(string(transcription.KindCapture))
		c.logger.Warn("Recording stopped without audio",
			slog.Uint64("session_id", s.ID),
			slog.String("error", err.Error()))
		c.finish(Result{Err: stopError(err)}, out)
		return out
	}

	c.submit(ctx, samples, out, func(wavBytes int) {
		c.metrics.RecordRecordingStopped(samples.Duration().Seconds(), wavBytes)
	})
	return out
}

// Submit encodes samples that did not come from the microphone and transcribes them like a recording.
// After Close the result carries ErrClosed.
func (c *Client) Submit(ctx context.Context, samples audio.Samples) <-chan Result {
	out := make(chan Result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		out <- Result{Err: ErrClosed}
		return out
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	c.submit(ctx, samples, out, nil)
	return out
}

// submit must be called while the caller holds a wg slot
func (c *Client) submit(ctx context.Context, samples audio.Samples, out chan Result, encoded func(wavBytes int)) {
	wav, err := audio.EncodeWAV(samples)
	if err != nil {
		c.metrics.RecordCaptureFailure(string(transcription.KindCapture))
		c.finish(Result{Err: transcription.Wrap(transcription.KindCapture, err, "Failed to encode recording")}, out)
		return
	}
	if encoded != nil {
		encoded(len(wav))
	}

	cycleID := uuid.New().String()
	if c.config.KeepRecordingsDir != "" {
		if path, err := c.keepRecording(cycleID, wav); err != nil {
			c.logger.Warn("Failed to keep recording",
				slog.String("cycle_id", cycleID),
				slog.String("error", err.Error()))
		} else {
			c.logger.Debug("Recording kept", slog.String("path", path))
		}
	}

	c.mu.Lock()
	c.cycles++
	c.inFlight++
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.processTranscription(ctx, cycleID, samples.Duration(), wav, out)
	}()
}

func (c *Client) processTranscription(ctx context.Context, cycleID string, captured time.Duration, wav []byte, out chan Result) {
	ctx, cancel := context.WithTimeout(ctx, c.config.SubmitTimeout)
	defer cancel()

	c.logger.Info("Sending recording for transcription",
		slog.String("cycle_id", cycleID),
		slog.Int("wav_bytes", len(wav)),
		slog.Float64("captured_seconds", captured.Seconds()))

	c.metrics.RecordTranscriptionRequest()
	startTime := time.Now()
	text, err := c.transcriber.Transcribe(ctx, wav)
	duration := time.Since(startTime)

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()

	if err != nil {
		terr := asTranscriptionError(err)
		c.metrics.RecordTranscriptionFailure(string(terr.Kind), duration.Seconds())
		c.logger.Error("Transcription failed",
			slog.String("cycle_id", cycleID),
			slog.String("kind", string(terr.Kind)),
			slog.String("error", terr.Error()),
			slog.Float64("duration", duration.Seconds()))
		c.finish(Result{Err: terr}, out)
		return
	}

	c.metrics.RecordTranscriptionSuccess(duration.Seconds())
	c.logger.Info("Transcription completed",
		slog.String("cycle_id", cycleID),
		slog.String("transcript", text),
		slog.Float64("duration", duration.Seconds()))
	c.finish(Result{Text: text}, out)
}

// finish records the result, notifies listeners and delivers it on out
func (c *Client) finish(res Result, out chan Result) {
	c.mu.Lock()
	c.last = res
	c.lastAt = time.Now()
	c.mu.Unlock()

	c.lmu.RLock()
	listeners := make([]Listener, len(c.listeners))
	for i, e := range c.listeners {
		listeners[i] = e.listener
	}
	c.lmu.RUnlock()

	for _, l := range listeners {
		if res.Err != nil {
			l.Error(asTranscriptionError(res.Err))
		} else {
			l.TranscriptReceived(res.Text)
		}
	}

	if out != nil {
		out <- res
	}
}

func (c *Client) keepRecording(cycleID string, wav []byte) (string, error) {
	if err := os.MkdirAll(c.config.KeepRecordingsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", c.config.KeepRecordingsDir, err)
	}
	path := filepath.Join(c.config.KeepRecordingsDir, "recording-"+cycleID+".wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Stats returns a snapshot of the client state
func (c *Client) Stats() Stats {
	c.mu.Lock()
	stats := Stats{
		Recording:    c.active != nil,
		Cycles:       c.cycles,
		InFlight:     c.inFlight,
		LastResultAt: c.lastAt,
	}
	if c.active != nil {
		stats.RecordingSince = c.active.StartedAt
	}
	if c.last.Err != nil {
		stats.LastError = c.last.Err.Error()
	} else {
		stats.LastTranscript = c.last.Text
	}
	c.mu.Unlock()

	c.lmu.RLock()
	stats.Listeners = len(c.listeners)
	c.lmu.RUnlock()

	return stats
}

// Close releases an open session without submitting it and waits for in-flight submissions
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	s := c.active
	c.active = nil
	c.mu.Unlock()

	if s != nil {
		c.metrics.RecordRecordingStopped(0, 0)
		if _, err := c.recorder.StopRecording(s); err != nil && !errors.Is(err, capture.ErrNoSamplesCaptured) {
			c.logger.Warn("Failed to release recording on close", slog.String("error", err.Error()))
		}
	}

	c.wg.Wait()
	return nil
}

// stopError describes a failed StopRecording without repeating the capture sentinel text
func stopError(err error) *transcription.Error {
	switch {
	case errors.Is(err, capture.ErrInvalidHandle):
		return transcription.Tag(transcription.KindCapture, err, "No microphone samples captured: the recording was already stopped.")
	case errors.Is(err, capture.ErrNoSamplesCaptured):
		return transcription.Tag(transcription.KindCapture, err, "No microphone samples captured.")
	}
	return transcription.Wrap(transcription.KindCapture, err, "Failed to stop microphone")
}

func asTranscriptionError(err error) *transcription.Error {
	var terr *transcription.Error
	if errors.As(err, &terr) {
		return terr
	}
	return transcription.Wrap(transcription.KindTransport, err, "HTTP error")
}
