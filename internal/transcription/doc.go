// Package transcription submits WAV recordings to a speech-to-text endpoint.
// It posts a single multipart part, then runs the response body through an
// ordered chain of extraction strategies that tolerate byte-order marks,
// junk around the JSON object and plain-text replies.
package transcription
