// Package audio holds the captured sample model and the WAV container codec.
// It downmixes interleaved float samples to mono, converts them to saturated
// 16-bit PCM, and writes/reads the canonical 44-byte RIFF/WAVE layout sent to
// the transcription endpoint.
package audio
