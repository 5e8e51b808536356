package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-engine/internal/clock"
)

// AnswerRateLimiter spaces one participant's callbacks by a minimum cooldown.
// Bursts are queued and replayed in submission order by a single drainer per
// participant. Different participants never wait on each other.
type AnswerRateLimiter struct {
	clock    clock.Clock
	cooldown time.Duration
	gap      time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	last     map[string]time.Time
	queues   map[string][]*limitedTask
	draining map[string]bool
}

// limitedTask is one queued callback. A task whose submitter gave up before
// it started is dropped instead of run.
type limitedTask struct {
	fn   func()
	done chan struct{}

	mu      sync.Mutex
	started bool
	dropped bool
}

// run executes fn unless the task was dropped; onStart runs first when it
// does. It reports whether fn ran.
func (t *limitedTask) run(onStart func()) bool {
	defer close(t.done)
	t.mu.Lock()
	if t.dropped {
		t.mu.Unlock()
		return false
	}
	t.started = true
	t.mu.Unlock()
	if onStart != nil {
		onStart()
	}
	t.fn()
	return true
}

// drop withdraws a task that has not started yet.
func (t *limitedTask) drop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return false
	}
	t.dropped = true
	return true
}

func NewAnswerRateLimiter(c clock.Clock, cooldown, gap time.Duration, logger *zap.Logger) *AnswerRateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	return &AnswerRateLimiter{
		clock:    c,
		cooldown: cooldown,
		gap:      gap,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		last:     make(map[string]time.Time),
		queues:   make(map[string][]*limitedTask),
		draining: make(map[string]bool),
	}
}

// IsLimited reports whether the participant's last accepted callback is
// within the cooldown.
func (l *AnswerRateLimiter) IsLimited(participantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isLimitedLocked(participantID, l.clock.Now())
}

func (l *AnswerRateLimiter) isLimitedLocked(participantID string, now time.Time) bool {
	last, ok := l.last[participantID]
	return ok && now.Sub(last) < l.cooldown
}

// Submit runs fn now if the participant is not limited and nothing of theirs
// is queued; otherwise fn is queued behind earlier callbacks. The returned
// channel closes once fn has run.
func (l *AnswerRateLimiter) Submit(participantID string, fn func()) <-chan struct{} {
	return l.submit(participantID, fn).done
}

func (l *AnswerRateLimiter) submit(participantID string, fn func()) *limitedTask {
	task := &limitedTask{fn: fn, done: make(chan struct{})}

	l.mu.Lock()
	now := l.clock.Now()
	if !l.draining[participantID] && !l.isLimitedLocked(participantID, now) {
		l.last[participantID] = now
		l.mu.Unlock()
		task.run(nil)
		return task
	}
	l.queues[participantID] = append(l.queues[participantID], task)
	if !l.draining[participantID] {
		l.draining[participantID] = true
		l.wg.Add(1)
		go l.drain(participantID)
	}
	queued := len(l.queues[participantID])
	l.mu.Unlock()

	l.logger.Debug("answer queued by rate limiter", zap.String("participant_id", participantID), zap.Int("queued", queued))
	return task
}

// Do is Submit that waits for fn to run. When ctx ends first, a still queued
// fn is dropped and ctx.Err() returned; one that already started is waited
// for, so a nil error always means fn ran.
func (l *AnswerRateLimiter) Do(ctx context.Context, participantID string, fn func()) error {
	task := l.submit(participantID, fn)
	select {
	case <-task.done:
		return nil
	case <-ctx.Done():
	}
	if task.drop() {
		return ctx.Err()
	}
	<-task.done
	return nil
}

func (l *AnswerRateLimiter) drain(participantID string) {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		if len(l.queues[participantID]) == 0 {
			delete(l.queues, participantID)
			delete(l.draining, participantID)
			l.mu.Unlock()
			return
		}
		wait := l.cooldown - l.clock.Now().Sub(l.last[participantID])
		l.mu.Unlock()

		if wait > 0 {
			// a closed limiter flushes the backlog without waiting
			_ = l.clock.Sleep(l.ctx, wait)
		}

		l.mu.Lock()
		task := l.queues[participantID][0]
		l.queues[participantID] = l.queues[participantID][1:]
		l.mu.Unlock()

		ran := task.run(func() {
			l.mu.Lock()
			l.last[participantID] = l.clock.Now()
			l.mu.Unlock()
		})
		if ran && l.gap > 0 {
			_ = l.clock.Sleep(l.ctx, l.gap)
		}
	}
}

// Prune forgets participants idle for longer than the cooldown.
func (l *AnswerRateLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	removed := 0
	for id, last := range l.last {
		if l.draining[id] {
			continue
		}
		if now.Sub(last) >= l.cooldown {
			delete(l.last, id)
			removed++
		}
	}
	return removed
}

// Close flushes queued callbacks and waits for drainers to exit.
func (l *AnswerRateLimiter) Close() {
	l.cancel()
	l.wg.Wait()
}
