package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Factor: 2}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	var notified []int
	boom := errors.New("boom")
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	}, func(attempt int, err error, wait time.Duration) {
		notified = append(notified, attempt)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Fatalf("expected notifications for attempts 1 and 2, got %v", notified)
	}
}

func TestDoDoesNotRetryPermanent(t *testing.T) {
	calls := 0
	forbidden := errors.New("forbidden")
	err := fastPolicy(5).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(forbidden)
	}, nil)
	if !errors.Is(err, forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{MaxAttempts: 10, BaseDelay: time.Hour, Factor: 2}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("unavailable")
	}, nil)
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected one call before cancellation, got %d", calls)
	}
}

type throttled struct{ wait time.Duration }

func (e throttled) Error() string             { return "throttled" }
func (e throttled) RetryAfter() time.Duration { return e.wait }

func TestDoUsesRetryAfterHint(t *testing.T) {
	var waits []time.Duration
	calls := 0
	_ = fastPolicy(2).Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return throttled{wait: 20 * time.Millisecond}
		}
		return nil
	}, func(_ int, _ error, wait time.Duration) {
		waits = append(waits, wait)
	})
	if len(waits) != 1 || waits[0] != 20*time.Millisecond {
		t.Fatalf("expected hinted wait of 20ms, got %v", waits)
	}
}
