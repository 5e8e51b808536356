package redis

import (
	"context"
	"testing"

	"trivia-engine/internal/domain"
)

func TestScoreStoreUpsertMax(t *testing.T) {
	_, client := newMiniredis(t)
	store := NewScoreStore(client)
	ctx := context.Background()

	for _, score := range []int{12, 30, 7} {
		if err := store.RecordScore(ctx, domain.ScoreRecord{ParticipantID: "u1", DisplayName: "Alice", QuizID: "quiz-1", Score: score}); err != nil {
			t.Fatalf("record %d: %v", score, err)
		}
	}
	if err := store.RecordScore(ctx, domain.ScoreRecord{ParticipantID: "u2", DisplayName: "Bob", QuizID: "quiz-1", Score: 18}); err != nil {
		t.Fatalf("record bob: %v", err)
	}

	top, err := store.TopScores(ctx, "quiz-1", 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(top) != 2 || top[0].ParticipantID != "u1" || top[0].Score != 30 || top[0].DisplayName != "Alice" {
		t.Fatalf("unexpected ranking %+v", top)
	}
	if top[1].Rank != 2 || top[1].DisplayName != "Bob" {
		t.Fatalf("unexpected runner-up %+v", top[1])
	}

	taken, err := store.HasTaken(ctx, "u1", "quiz-1")
	if err != nil || !taken {
		t.Fatalf("expected taken, got %v err=%v", taken, err)
	}
	taken, err = store.HasTaken(ctx, "u3", "quiz-1")
	if err != nil || taken {
		t.Fatalf("expected not taken, got %v err=%v", taken, err)
	}
}

func TestScoreStoreZeroScoreStillCountsAsTaken(t *testing.T) {
	_, client := newMiniredis(t)
	store := NewScoreStore(client)
	ctx := context.Background()

	if err := store.RecordScore(ctx, domain.ScoreRecord{ParticipantID: "u1", QuizID: "quiz-1", Score: 0}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if taken, _ := store.HasTaken(ctx, "u1", "quiz-1"); !taken {
		t.Fatalf("expected zero score to be stored")
	}
}
