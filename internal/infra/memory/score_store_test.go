package memory

import (
	"context"
	"testing"

	"trivia-engine/internal/domain"
)

func TestScoreStoreKeepsBest(t *testing.T) {
	store := NewScoreStore()
	ctx := context.Background()

	for _, score := range []int{12, 30, 7} {
		if err := store.RecordScore(ctx, domain.ScoreRecord{ParticipantID: "u1", DisplayName: "Alice", QuizID: "quiz-1", Score: score}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if got, _ := store.Score("u1", "quiz-1"); got != 30 {
		t.Fatalf("expected best score 30, got %d", got)
	}
	taken, _ := store.HasTaken(ctx, "u1", "quiz-1")
	if !taken {
		t.Fatalf("expected quiz taken")
	}
	if taken, _ := store.HasTaken(ctx, "u1", "quiz-2"); taken {
		t.Fatalf("expected other quiz untaken")
	}
}

func TestScoreStoreTopScores(t *testing.T) {
	store := NewScoreStore()
	ctx := context.Background()
	records := []domain.ScoreRecord{
		{ParticipantID: "u1", DisplayName: "Alice", QuizID: "quiz-1", Score: 10},
		{ParticipantID: "u2", DisplayName: "Bob", QuizID: "quiz-1", Score: 25},
		{ParticipantID: "u3", DisplayName: "Cara", QuizID: "quiz-1", Score: 10},
		{ParticipantID: "u4", DisplayName: "Dan", QuizID: "quiz-2", Score: 99},
	}
	for _, rec := range records {
		if err := store.RecordScore(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	top, err := store.TopScores(ctx, "quiz-1", 2)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(top) != 2 || top[0].ParticipantID != "u2" || top[1].ParticipantID != "u1" || top[1].Rank != 2 {
		t.Fatalf("unexpected ranking %+v", top)
	}
}
