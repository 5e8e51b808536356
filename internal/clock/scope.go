package clock

import (
	"context"
	"sync"
	"time"
)

// Scope ties a set of timers to one context. Closing the scope cancels the
// context and stops every timer that has not fired, so a cancelled timer
// never runs its side effects.
type Scope struct {
	clock  Clock
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	nextID uint64
	timers map[uint64]Timer
	closed bool
}

// NewScope derives a cancellable scope from parent.
func NewScope(parent context.Context, c Clock) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{
		clock:  c,
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[uint64]Timer),
	}
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context { return s.ctx }

// Clock returns the scope's clock.
func (s *Scope) Clock() Clock { return s.clock }

// AfterFunc schedules f within the scope. The returned handle stops only
// this timer. Scheduling on a closed scope is a no-op.
func (s *Scope) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stoppedTimer{}
	}
	s.nextID++
	id := s.nextID
	t := s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if !live || s.ctx.Err() != nil {
			return
		}
		f()
	})
	s.timers[id] = t
	return &scopedTimer{scope: s, id: id}
}

// Sleep blocks for d or until the scope closes.
func (s *Scope) Sleep(d time.Duration) error {
	return s.clock.Sleep(s.ctx, d)
}

// Pending reports how many scheduled timers have not fired or been stopped.
func (s *Scope) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels the context and stops all pending timers. It is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	timers := s.timers
	s.timers = make(map[uint64]Timer)
	s.mu.Unlock()

	s.cancel()
	for _, t := range timers {
		t.Stop()
	}
}

// Closed reports whether Close has been called.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type scopedTimer struct {
	scope *Scope
	id    uint64
}

func (t *scopedTimer) Stop() bool {
	t.scope.mu.Lock()
	inner, ok := t.scope.timers[t.id]
	delete(t.scope.timers, t.id)
	t.scope.mu.Unlock()
	if !ok {
		return false
	}
	inner.Stop()
	return true
}

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return false }
