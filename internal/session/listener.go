package session

import "github.com/izahai/SceneFit/internal/transcription"

// Listener receives the outcome of each recording cycle.
// Methods may be called from any goroutine.
type Listener interface {
	TranscriptReceived(text string)
	Error(err *transcription.Error)
}

// ListenerFuncs adapts plain functions to Listener; nil fields are skipped
type ListenerFuncs struct {
	OnTranscript func(text string)
	OnError      func(err *transcription.Error)
}

func (f ListenerFuncs) TranscriptReceived(text string) {
	if f.OnTranscript != nil {
		f.OnTranscript(text)
	}
}

func (f ListenerFuncs) Error(err *transcription.Error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

// Result is the outcome of one cycle: a non-empty transcript or an error
type Result struct {
	Text string
	Err  error
}
