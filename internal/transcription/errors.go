package transcription

import (
	"errors"
	"fmt"
)

// Kind classifies a failed recording cycle
type Kind string

const (
	KindCapture         Kind = "capture_error"
	KindTransport       Kind = "transport_error"
	KindEmptyTranscript Kind = "empty_transcript"

	// KindParseFailure marks a strategy that could not read the body.
	// It is logged and never returned to callers.
	KindParseFailure Kind = "parse_failure"
)

// Error is the error delivered for every failed cycle
type Error struct {
	Kind Kind
	Msg  string
	Err  error

	// quiet keeps Err out of Error() when Msg already says it
	quiet bool
}

// Errorf builds an Error of the given kind
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around cause
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Tag builds an Error whose message stands alone. The cause stays
// reachable through errors.Is and errors.As but is not repeated in Error().
func Tag(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause, quiet: true}
}

func (e *Error) Error() string {
	if e.Err != nil && !e.quiet {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind, so errors.Is(err, &Error{Kind: KindTransport}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// KindOf returns the kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
