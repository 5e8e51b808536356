package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"trivia-engine/internal/clock"
)

func TestRateLimiterRunsImmediatelyWhenIdle(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	limiter := NewAnswerRateLimiter(fake, 500*time.Millisecond, 0, zap.NewNop())
	defer limiter.Close()

	ran := false
	done := limiter.Submit("u1", func() { ran = true })
	select {
	case <-done:
	default:
		t.Fatalf("expected inline execution")
	}
	if !ran {
		t.Fatalf("callback did not run")
	}
	if !limiter.IsLimited("u1") {
		t.Fatalf("expected participant limited right after a callback")
	}
	if limiter.IsLimited("u2") {
		t.Fatalf("other participants must not be limited")
	}
}

func TestRateLimiterQueuesBurstInOrder(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	limiter := NewAnswerRateLimiter(fake, 500*time.Millisecond, 0, zap.NewNop())
	defer limiter.Close()

	var mu sync.Mutex
	var order []string
	record := func(tag string) func() {
		return func() {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
		}
	}

	<-limiter.Submit("u1", record("a"))
	doneB := limiter.Submit("u1", record("b"))
	doneC := limiter.Submit("u1", record("c"))
	// another participant is not held back by u1's backlog
	<-limiter.Submit("u2", record("x"))

	if !fake.WaitForTimers(1, time.Second) {
		t.Fatalf("drainer did not wait on cooldown")
	}
	fake.Advance(500 * time.Millisecond)
	<-doneB

	if !fake.WaitForTimers(1, time.Second) {
		t.Fatalf("drainer did not wait before second queued callback")
	}
	fake.Advance(500 * time.Millisecond)
	<-doneC

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "x", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestRateLimiterPrune(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	limiter := NewAnswerRateLimiter(fake, time.Second, 0, zap.NewNop())
	defer limiter.Close()

	<-limiter.Submit("u1", func() {})
	if removed := limiter.Prune(); removed != 0 {
		t.Fatalf("expected nothing pruned inside cooldown, got %d", removed)
	}
	fake.Advance(2 * time.Second)
	if removed := limiter.Prune(); removed != 1 {
		t.Fatalf("expected 1 pruned, got %d", removed)
	}
}

func TestRateLimiterCloseFlushesBacklog(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	limiter := NewAnswerRateLimiter(fake, time.Hour, 0, zap.NewNop())

	<-limiter.Submit("u1", func() {})
	done := limiter.Submit("u1", func() {})
	limiter.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("queued callback not flushed on close")
	}
}

func TestRateLimiterDropsAbandonedCallbacks(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	limiter := NewAnswerRateLimiter(fake, 500*time.Millisecond, 0, zap.NewNop())
	defer limiter.Close()

	var mu sync.Mutex
	var order []string
	record := func(tag string) func() {
		return func() {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
		}
	}

	if err := limiter.Do(context.Background(), "u1", record("a")); err != nil {
		t.Fatalf("expected immediate run, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Do(ctx, "u1", record("b")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	doneC := limiter.Submit("u1", record("c"))

	if !fake.WaitForTimers(1, time.Second) {
		t.Fatalf("drainer did not wait on cooldown")
	}
	fake.Advance(500 * time.Millisecond)
	<-doneC

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "a" || order[1] != "c" {
		t.Fatalf("expected the abandoned callback to be skipped, got %v", order)
	}
}
