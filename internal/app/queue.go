package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-engine/internal/clock"
	"trivia-engine/internal/domain"
)

// QueueEntry is a pending or admitted solo start request.
type QueueEntry struct {
	Participant domain.Participant
	QuizID      string
	Window      time.Duration
	EnqueuedAt  time.Time
}

// Ticket tells the requester whether it was admitted or where it waits.
type Ticket struct {
	Admitted bool `json:"admitted"`
	Position int  `json:"position"`
}

// QueueStats is a point-in-time view of the admission gate.
type QueueStats struct {
	Active        int `json:"active"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Launcher creates and starts the session for an admitted entry. An error
// means initialization failed; the slot is released without a cooldown.
type Launcher func(ctx context.Context, entry QueueEntry) error

// SessionQueue caps concurrently active solo sessions, enforces the
// post-completion cooldown and admits queued requests in FIFO order.
type SessionQueue struct {
	clock         clock.Clock
	logger        *zap.Logger
	maxConcurrent int
	cooldown      time.Duration
	launch        Launcher
	ctx           context.Context

	mu        sync.Mutex
	active    map[string]QueueEntry
	pending   []QueueEntry
	cooldowns map[string]time.Time
	wg        sync.WaitGroup
}

func NewSessionQueue(ctx context.Context, c clock.Clock, maxConcurrent int, cooldown time.Duration, launch Launcher, logger *zap.Logger) *SessionQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &SessionQueue{
		clock:         c,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		cooldown:      cooldown,
		launch:        launch,
		ctx:           ctx,
		active:        make(map[string]QueueEntry),
		cooldowns:     make(map[string]time.Time),
	}
}

// Enqueue admits the request immediately when a slot is free and nobody is
// waiting, otherwise appends it to the FIFO. Rejections are *domain.AdmissionError.
func (q *SessionQueue) Enqueue(entry QueueEntry) (Ticket, error) {
	participantID := entry.Participant.ID

	q.mu.Lock()
	now := q.clock.Now()
	q.pruneCooldownsLocked(now)

	if until, ok := q.cooldowns[participantID]; ok {
		q.mu.Unlock()
		return Ticket{}, &domain.AdmissionError{Reason: domain.AdmissionOnCooldown, Remaining: until.Sub(now)}
	}
	if _, ok := q.active[participantID]; ok || q.positionLocked(participantID) > 0 {
		q.mu.Unlock()
		return Ticket{}, &domain.AdmissionError{Reason: domain.AdmissionAlreadyActive}
	}

	entry.EnqueuedAt = now
	if len(q.active) < q.maxConcurrent && len(q.pending) == 0 {
		q.active[participantID] = entry
		q.mu.Unlock()
		q.start(entry)
		return Ticket{Admitted: true}, nil
	}

	q.pending = append(q.pending, entry)
	position := len(q.pending)
	q.mu.Unlock()

	q.logger.Info("solo quiz queued",
		zap.String("participant_id", participantID), zap.String("quiz_id", entry.QuizID), zap.Int("position", position))
	return Ticket{Position: position}, nil
}

// Finish removes the participant from active tracking, stamps the cooldown
// and admits waiting requests.
func (q *SessionQueue) Finish(participantID string) {
	q.mu.Lock()
	if _, ok := q.active[participantID]; !ok {
		q.mu.Unlock()
		return
	}
	delete(q.active, participantID)
	if q.cooldown > 0 {
		q.cooldowns[participantID] = q.clock.Now().Add(q.cooldown)
	}
	admitted := q.admitLocked()
	q.mu.Unlock()

	for _, entry := range admitted {
		q.start(entry)
	}
}

// StartCooldown stamps a cooldown without touching active tracking; group
// sessions use it for their participants.
func (q *SessionQueue) StartCooldown(participantID string) {
	if q.cooldown <= 0 {
		return
	}
	q.mu.Lock()
	q.cooldowns[participantID] = q.clock.Now().Add(q.cooldown)
	q.mu.Unlock()
}

// CooldownRemaining returns how long the participant still has to wait.
func (q *SessionQueue) CooldownRemaining(participantID string) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	until, ok := q.cooldowns[participantID]
	if !ok {
		return 0
	}
	if remaining := until.Sub(q.clock.Now()); remaining > 0 {
		return remaining
	}
	return 0
}

// Cancel drops a waiting request. It reports whether one was removed.
func (q *SessionQueue) Cancel(participantID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, entry := range q.pending {
		if entry.Participant.ID == participantID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Position is the 1-based FIFO position, or 0 when not waiting.
func (q *SessionQueue) Position(participantID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.positionLocked(participantID)
}

// IsActive reports whether the participant holds a slot.
func (q *SessionQueue) IsActive(participantID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.active[participantID]
	return ok
}

func (q *SessionQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{Active: len(q.active), Queued: len(q.pending), MaxConcurrent: q.maxConcurrent}
}

// Wait blocks until in-flight launches return.
func (q *SessionQueue) Wait() {
	q.wg.Wait()
}

func (q *SessionQueue) start(entry QueueEntry) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.launch(q.ctx, entry); err != nil {
			q.logger.Warn("solo quiz failed to start",
				zap.String("participant_id", entry.Participant.ID), zap.String("quiz_id", entry.QuizID), zap.Error(err))
			q.release(entry.Participant.ID)
		}
	}()
}

// release frees a slot without charging a cooldown.
func (q *SessionQueue) release(participantID string) {
	q.mu.Lock()
	delete(q.active, participantID)
	admitted := q.admitLocked()
	q.mu.Unlock()

	for _, entry := range admitted {
		q.start(entry)
	}
}

func (q *SessionQueue) admitLocked() []QueueEntry {
	var admitted []QueueEntry
	for len(q.active) < q.maxConcurrent && len(q.pending) > 0 {
		entry := q.pending[0]
		q.pending = q.pending[1:]
		q.active[entry.Participant.ID] = entry
		admitted = append(admitted, entry)
	}
	return admitted
}

func (q *SessionQueue) positionLocked(participantID string) int {
	for i, entry := range q.pending {
		if entry.Participant.ID == participantID {
			return i + 1
		}
	}
	return 0
}

func (q *SessionQueue) pruneCooldownsLocked(now time.Time) {
	for id, until := range q.cooldowns {
		if !until.After(now) {
			delete(q.cooldowns, id)
		}
	}
}
