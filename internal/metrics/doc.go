// Package metrics defines the Prometheus collectors for recording cycles,
// transcription requests and the HTTP control API.
package metrics
