package session

import "errors"

var (
	// ErrServiceUnavailable blocks session start when the vision service
	// health check fails. Retryable by re-polling.
	ErrServiceUnavailable = errors.New("session: vision service unavailable")

	// ErrSessionActive rejects a start while another session is running.
	ErrSessionActive = errors.New("session: a session is already active")

	// ErrNoActiveSession rejects a stop with nothing running.
	ErrNoActiveSession = errors.New("session: no active session")

	// ErrUnknownUser and ErrUnknownSubject reject ids with no backing record.
	ErrUnknownUser    = errors.New("session: unknown user")
	ErrUnknownSubject = errors.New("session: unknown subject")

	// ErrNotEnrolled rejects tracking for a subject the user has no
	// enrollment in.
	ErrNotEnrolled = errors.New("session: user not enrolled in subject")

	// ErrAggregateFetch means the session left Active state but its
	// aggregate could not be fetched, so no result was persisted. Surfaced
	// to the user; this is session data loss.
	ErrAggregateFetch = errors.New("session: aggregate fetch failed")

	// ErrPersistence means the aggregate was fetched but the tracking
	// result write failed. The session is already torn down; not retried.
	ErrPersistence = errors.New("session: tracking result persistence failed")
)
