package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"trivia-engine/internal/domain"
	"trivia-engine/internal/retry"
)

// flakyStore is an upsert-max store that fails while down is set.
type flakyStore struct {
	mu     sync.Mutex
	down   bool
	calls  int
	scores map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{scores: make(map[string]int)}
}

func (s *flakyStore) RecordScore(_ context.Context, rec domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.down {
		return errors.New("connection refused")
	}
	key := rec.ParticipantID + "/" + rec.QuizID
	if current, ok := s.scores[key]; !ok || rec.Score > current {
		s.scores[key] = rec.Score
	}
	return nil
}

func (s *flakyStore) HasTaken(_ context.Context, participantID, quizID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scores[participantID+"/"+quizID]
	return ok, nil
}

func (s *flakyStore) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func (s *flakyStore) score(participantID, quizID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.scores[participantID+"/"+quizID]
	return v, ok
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}
}

func TestRecorderParksAfterRetriesAndSweeps(t *testing.T) {
	store := newFlakyStore()
	store.setDown(true)
	recorder := NewScoreRecorder(store, fastRetry(), zap.NewNop())

	rec := domain.ScoreRecord{ParticipantID: "u1", QuizID: "quiz-1", Score: 7}
	err := recorder.Record(context.Background(), rec)
	var storeErr *domain.ScoringStoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected ScoringStoreError, got %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
	if recorder.Pending() != 1 {
		t.Fatalf("expected parked record")
	}

	// lower score for the same pair does not replace the parked one
	_ = recorder.Record(context.Background(), domain.ScoreRecord{ParticipantID: "u1", QuizID: "quiz-1", Score: 3})
	if recorder.Pending() != 1 {
		t.Fatalf("expected one parked record per pair, got %d", recorder.Pending())
	}

	if flushed := recorder.Sweep(context.Background()); flushed != 0 {
		t.Fatalf("expected nothing flushed while store is down")
	}

	store.setDown(false)
	if flushed := recorder.Sweep(context.Background()); flushed != 1 {
		t.Fatalf("expected 1 flushed, got %d", flushed)
	}
	if got, _ := store.score("u1", "quiz-1"); got != 7 {
		t.Fatalf("expected stored score 7, got %d", got)
	}
	if recorder.Pending() != 0 {
		t.Fatalf("expected pending list drained")
	}
}

func TestRecorderUpsertMax(t *testing.T) {
	store := newFlakyStore()
	recorder := NewScoreRecorder(store, fastRetry(), zap.NewNop())

	if err := recorder.Record(context.Background(), domain.ScoreRecord{ParticipantID: "p", QuizID: "q", Score: 5}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := recorder.Record(context.Background(), domain.ScoreRecord{ParticipantID: "p", QuizID: "q", Score: 3}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got, _ := store.score("p", "q"); got != 5 {
		t.Fatalf("expected upsert-max to keep 5, got %d", got)
	}
}
