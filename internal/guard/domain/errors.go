package domain

import "errors"

// Sentinel errors shared across the client, the mutation guard, and the
// HTTP layer. Callers classify failures with errors.Is; the wrapping text
// carries the detail.
var (
	// ErrInvalidInput means the supplied domain name failed validation.
	// No upstream call is made when this is returned.
	ErrInvalidInput = errors.New("invalid domain name")

	// ErrUpstreamUnavailable means the filtering service could not be
	// reached, or the call exceeded its deadline.
	ErrUpstreamUnavailable = errors.New("upstream filtering service unavailable")

	// ErrUpstreamAuth means the filtering service rejected our credentials,
	// including the case where a single re-login retry also failed.
	ErrUpstreamAuth = errors.New("upstream authentication failed")

	// ErrUpstreamProtocol means the filtering service answered with a body
	// or status we could not map onto the expected shape.
	ErrUpstreamProtocol = errors.New("unexpected upstream response")

	// ErrBackupWrite means the pre-mutation rules backup could not be
	// persisted. The mutation is never attempted in that case.
	ErrBackupWrite = errors.New("rules backup write failed")

	// ErrRollbackFailed means a failed mutation could not be rolled back,
	// so the upstream rule set may be left in the attempted state.
	ErrRollbackFailed = errors.New("rollback of rule set failed")
)
