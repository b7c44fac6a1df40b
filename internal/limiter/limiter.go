// Package limiter guards offline sign-in against repeated password guesses on
// a stolen or shared workstation.
package limiter

import (
	"context"
	"time"
)

// Limiter controls sign-in attempts and temporary lockouts, keyed by email.
type Limiter interface {
	// Allow reports whether sign-in is currently allowed and optional retry-after.
	Allow(ctx context.Context, email string) (bool, time.Duration, error)
	// Success resets counters after a successful sign-in.
	Success(ctx context.Context, email string) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, email string) (bool, time.Duration, error)
}
