// Package server implements the HTTP control and monitoring API.
// It starts and stops recordings, reports session and transcription
// statistics, and exposes Prometheus metrics.
package server
