package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad caller input (username format, empty message, option out of range).
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState is returned when an operation is not allowed in the session's current state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrSessionNotFound is returned when a quiz session does not exist or was torn down.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrTierTable is a configuration error: the tier ranges do not partition [0, questionCount].
	ErrTierTable = errors.New("invalid tier table")

	ErrUpstream          = errors.New("upstream request failed")
	ErrTimeout           = errors.New("upstream request timed out")
	ErrProtocol          = errors.New("unexpected upstream response")
	ErrRender            = errors.New("ticket render failed")
	ErrAvatarUnavailable = errors.New("avatar unavailable")
)

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UpstreamError carries the status of a non-2xx response. Message is safe to
// surface; the raw upstream body is only ever logged.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream request failed: %s", e.Message)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ProtocolError reports a response that could not be decoded or lacked required fields.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected upstream response: %s: %v", e.Reason, e.Err)
	}
	return "unexpected upstream response: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// RenderError wraps a failure at one stage of ticket rasterization.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("ticket render failed at %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool { return target == ErrRender }

// AvatarUnavailableError is recoverable: callers substitute a placeholder avatar.
type AvatarUnavailableError struct {
	Username string
	Status   int
	Err      error
}

func (e *AvatarUnavailableError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("avatar for %q unavailable: %v", e.Username, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("avatar for %q unavailable: upstream returned %d", e.Username, e.Status)
	default:
		return fmt.Sprintf("avatar for %q unavailable", e.Username)
	}
}

func (e *AvatarUnavailableError) Unwrap() error { return e.Err }

func (e *AvatarUnavailableError) Is(target error) bool { return target == ErrAvatarUnavailable }
