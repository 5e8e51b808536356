package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-engine/internal/clock"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/retry"
)

// ScoreRecorder flushes final scores to the ScoreStore with retries. Flushes
// that exhaust their retries are parked and re-applied by Sweep; upsert-max
// makes re-application harmless.
type ScoreRecorder struct {
	store  ScoreStore
	policy retry.Policy
	logger *zap.Logger

	mu      sync.Mutex
	pending map[pendingKey]domain.ScoreRecord
}

type pendingKey struct {
	participantID string
	quizID        string
}

func NewScoreRecorder(store ScoreStore, policy retry.Policy, logger *zap.Logger) *ScoreRecorder {
	return &ScoreRecorder{
		store:   store,
		policy:  policy,
		logger:  logger,
		pending: make(map[pendingKey]domain.ScoreRecord),
	}
}

// Record flushes rec. On persistent failure the record is parked for the
// sweep and a *domain.ScoringStoreError is returned.
func (r *ScoreRecorder) Record(ctx context.Context, rec domain.ScoreRecord) error {
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		return r.store.RecordScore(ctx, rec)
	}, func(attempt int, err error, wait time.Duration) {
		r.logger.Warn("score flush failed, retrying",
			zap.String("participant_id", rec.ParticipantID), zap.String("quiz_id", rec.QuizID),
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	})
	if err == nil {
		return nil
	}

	r.park(rec)
	r.logger.Error("score flush exhausted retries, parked for sweep",
		zap.String("participant_id", rec.ParticipantID), zap.String("quiz_id", rec.QuizID),
		zap.Int("score", rec.Score), zap.Error(err))
	return &domain.ScoringStoreError{Record: rec, Err: err}
}

func (r *ScoreRecorder) park(rec domain.ScoreRecord) {
	key := pendingKey{participantID: rec.ParticipantID, quizID: rec.QuizID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pending[key]; ok && existing.Score >= rec.Score {
		return
	}
	r.pending[key] = rec
}

// Pending returns how many records wait for the sweep.
func (r *ScoreRecorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Sweep tries every parked record once and returns how many were flushed.
func (r *ScoreRecorder) Sweep(ctx context.Context) int {
	r.mu.Lock()
	batch := make([]domain.ScoreRecord, 0, len(r.pending))
	for _, rec := range r.pending {
		batch = append(batch, rec)
	}
	r.mu.Unlock()

	flushed := 0
	for _, rec := range batch {
		if ctx.Err() != nil {
			break
		}
		if err := r.store.RecordScore(ctx, rec); err != nil {
			r.logger.Debug("sweep flush failed", zap.String("participant_id", rec.ParticipantID), zap.Error(err))
			continue
		}
		key := pendingKey{participantID: rec.ParticipantID, quizID: rec.QuizID}
		r.mu.Lock()
		if current, ok := r.pending[key]; ok && current.Score <= rec.Score {
			delete(r.pending, key)
		}
		r.mu.Unlock()
		flushed++
	}
	if flushed > 0 {
		r.logger.Info("pending scores flushed", zap.Int("count", flushed))
	}
	return flushed
}

// RunSweeper sweeps every interval until ctx is done.
func (r *ScoreRecorder) RunSweeper(ctx context.Context, c clock.Clock, interval time.Duration, onTick func()) {
	if interval <= 0 {
		return
	}
	for {
		if err := c.Sleep(ctx, interval); err != nil {
			return
		}
		if onTick != nil {
			onTick()
		}
		if r.Pending() > 0 {
			r.Sweep(ctx)
		}
	}
}
