// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/remote/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRemoteUnavailable indicates the hosted backend could not be reached
	// (network failure or 5xx-class response); callers may fall back to the
	// local mirror.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrStoreUnavailable indicates the local database could not be opened or
	// initialized. Fatal for the call, not for the process.
	ErrStoreUnavailable = errors.New("local store unavailable")

	// ErrUnauthorized indicates failed authentication (bad credentials).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a missing capability for the attempted operation.
	ErrForbidden = errors.New("forbidden")

	// ErrSessionExpired indicates no unexpired session exists locally or remotely.
	ErrSessionExpired = errors.New("session expired")

	// ErrRateLimited indicates temporary sign-in lock due to repeated failures.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)
