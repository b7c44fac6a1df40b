package limiter

import (
	"context"
	"testing"
	"time"
)

func TestMemory_BlocksAfterMaxFails(t *testing.T) {
	t.Parallel()
	l := NewMemory(time.Minute, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		blocked, _, err := l.Failure(ctx, "a@clinic.test")
		if err != nil || blocked {
			t.Fatalf("attempt %d: blocked=%v err=%v", i, blocked, err)
		}
	}

	blocked, retry, err := l.Failure(ctx, "a@clinic.test")
	if err != nil || !blocked || retry <= 0 {
		t.Fatalf("want block on third failure, got blocked=%v retry=%v err=%v", blocked, retry, err)
	}

	ok, retry, err := l.Allow(ctx, "a@clinic.test")
	if err != nil || ok || retry <= 0 {
		t.Fatalf("want Allow=false while blocked, got ok=%v retry=%v err=%v", ok, retry, err)
	}

	// other emails unaffected
	ok, _, _ = l.Allow(ctx, "b@clinic.test")
	if !ok {
		t.Fatalf("unrelated email must not be blocked")
	}
}

func TestMemory_SuccessResets(t *testing.T) {
	t.Parallel()
	l := NewMemory(time.Minute, 2, time.Minute)
	ctx := context.Background()

	if _, _, err := l.Failure(ctx, "x@clinic.test"); err != nil {
		t.Fatalf("failure: %v", err)
	}
	if err := l.Success(ctx, "x@clinic.test"); err != nil {
		t.Fatalf("success: %v", err)
	}

	// counter restarted: one more failure must not block
	blocked, _, err := l.Failure(ctx, "x@clinic.test")
	if err != nil || blocked {
		t.Fatalf("want no block after reset, got blocked=%v err=%v", blocked, err)
	}
}

func TestMemory_WindowExpiry(t *testing.T) {
	t.Parallel()
	l := NewMemory(20*time.Millisecond, 2, time.Minute)
	ctx := context.Background()

	if _, _, err := l.Failure(ctx, "w@clinic.test"); err != nil {
		t.Fatalf("failure: %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	blocked, _, err := l.Failure(ctx, "w@clinic.test")
	if err != nil || blocked {
		t.Fatalf("stale failure should have aged out, got blocked=%v err=%v", blocked, err)
	}
}
