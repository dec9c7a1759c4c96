// Package errs defines the domain error taxonomy. Services return these
// sentinels (optionally wrapped) and handlers map them to HTTP status codes.
package errs

import "errors"

var (
	// ErrNotFound is returned when a session, participant or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the requester lacks the required role or ownership.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState is returned for lifecycle or control actions illegal in the current status.
	ErrInvalidState = errors.New("invalid session state")
	// ErrSessionFull is returned when a join would exceed the session's participant limit.
	ErrSessionFull = errors.New("session is full")
	// ErrSessionUnavailable is returned when joining a completed or cancelled session.
	ErrSessionUnavailable = errors.New("session has ended or been cancelled")
)
