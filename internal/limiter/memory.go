package limiter

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process sliding-window limiter with lockout. The offline
// shim has no shared backend to count against, so attempts are tracked per
// process; the remote identity service applies its own limits online.
type Memory struct {
	window   time.Duration
	maxFails int
	blockFor time.Duration

	mu    sync.Mutex
	state map[string]*entry
}

type entry struct {
	fails        []time.Time
	blockedUntil time.Time
}

// NewMemory constructs an in-memory limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		state:    make(map[string]*entry),
	}
}

// Allow reports whether sign-in is currently allowed and a retry-after duration.
func (l *Memory) Allow(_ context.Context, email string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.state[email]
	if !ok {
		return true, 0, nil
	}
	now := time.Now()
	if e.blockedUntil.After(now) {
		return false, time.Until(e.blockedUntil), nil
	}
	return true, 0, nil
}

// Success resets counters after a successful sign-in.
func (l *Memory) Success(_ context.Context, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.state, email)
	return nil
}

// Failure records a failed attempt; once maxFails accumulate inside the
// window, the email is blocked for blockFor.
func (l *Memory) Failure(_ context.Context, email string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.state[email]
	if !ok {
		e = &entry{}
		l.state[email] = e
	}

	// drop failures outside the window
	kept := e.fails[:0]
	for _, ts := range e.fails {
		if now.Sub(ts) < l.window {
			kept = append(kept, ts)
		}
	}
	e.fails = append(kept, now)

	if len(e.fails) >= l.maxFails {
		e.blockedUntil = now.Add(l.blockFor)
		e.fails = nil
		return true, l.blockFor, nil
	}
	return false, 0, nil
}
