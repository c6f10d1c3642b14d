package selection

import (
	"errors"
	"fmt"
)

var (
	// ErrSelectionTooShort is returned when the span is below the minimum span
	ErrSelectionTooShort = errors.New("selection too short")

	// ErrSelectionTooLong is returned when the span exceeds the maximum span
	ErrSelectionTooLong = errors.New("selection too long")

	// ErrMediaNotReady is returned when the session has no media metadata yet
	ErrMediaNotReady = errors.New("media not ready")

	// ErrSessionClosed is returned for any action after the selection was submitted
	ErrSessionClosed = errors.New("selection already submitted")

	// ErrAlreadyLoaded is returned when media is loaded twice into one session
	ErrAlreadyLoaded = errors.New("media already loaded")

	// ErrInvalidEvent is returned for malformed selection events
	ErrInvalidEvent = errors.New("invalid selection event")

	// ErrInvalidMedia is returned for a media reference without a usable duration
	ErrInvalidMedia = errors.New("invalid media reference")

	// ErrConsumerFailed wraps an error returned by the downstream consumer
	ErrConsumerFailed = errors.New("failed to submit selection")

	// ErrInvalidConstraints is returned for non-positive span limits
	ErrInvalidConstraints = errors.New("invalid constraints")
)

// SpanError reports a rejected submission together with the offending span
type SpanError struct {
	Kind  error
	Span  float64
	Limit float64
}

func (e *SpanError) Error() string {
	if e.Kind == ErrSelectionTooShort {
		return fmt.Sprintf("%s: span %.3fs is below the minimum of %.3fs", e.Kind, e.Span, e.Limit)
	}
	return fmt.Sprintf("%s: span %.3fs exceeds the maximum of %.3fs", e.Kind, e.Span, e.Limit)
}

func (e *SpanError) Unwrap() error {
	return e.Kind
}
