package model

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotConnected is returned when an operation targets a provider with
	// no live connected account.
	ErrNotConnected = errors.New("provider not connected")

	// ErrAlreadySyncing rejects a sync start while another job for the same
	// account is still running (single-flight guard).
	ErrAlreadySyncing = errors.New("sync already running")

	// ErrAuthExpired marks a provider credential failure that only a user
	// re-connect can fix. Never retried.
	ErrAuthExpired = errors.New("provider auth expired")

	// ErrRateLimited marks a provider throttle response. Retryable with backoff.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrTransient marks a network or 5xx provider failure. Retryable with backoff.
	ErrTransient = errors.New("transient provider error")

	// ErrMalformedRecord marks a provider record missing mandatory fields.
	// Skipped and counted, never fatal to a job.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrNoRelevantFacts signals that retrieval found nothing to ground an
	// answer on. Surfaced as a user-visible message, not a failure.
	ErrNoRelevantFacts = errors.New("no relevant facts")

	// ErrAnswerTimeout is returned when a chat query exceeds its deadline.
	ErrAnswerTimeout = errors.New("answer timed out")
)

// Retryable reports whether err is a gateway error worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
