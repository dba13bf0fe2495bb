// Package session runs the record-then-transcribe cycle.
// A Client moves between Idle and Recording, encodes each finished recording
// to WAV, submits it on its own goroutine and reports the outcome to every
// subscribed Listener and to the channel returned by StopAndTranscribe.
package session
