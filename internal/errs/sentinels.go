// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/transport layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation on the idempotency key
	// (a concurrent writer stored the same client log id first).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation marks a malformed request; never worth retrying.
	ErrValidation = errors.New("validation")

	// ErrSequenceTaken indicates another writer claimed the set index first.
	ErrSequenceTaken = errors.New("set index taken")

	// ErrSequenceContention indicates the allocation retry budget ran out.
	ErrSequenceContention = errors.New("set index contention")

	// ErrBlockedByEarlier marks a batch item skipped because an earlier item of the
	// same exercise failed in that batch.
	ErrBlockedByEarlier = errors.New("blocked by earlier failure")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")
)
