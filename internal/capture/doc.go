// Package capture records bounded sessions from an audio input device.
// A Recorder owns at most one active session at a time; each session buffers
// interleaved float samples up to a fixed duration and releases the device
// handle when it is stopped.
package capture
