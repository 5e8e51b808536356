package memory

import (
	"context"
	"testing"

	"trivia-engine/internal/domain"
)

type stubRunner struct{ id string }

func (r stubRunner) ID() string     { return r.id }
func (r stubRunner) QuizID() string { return "quiz-1" }
func (r stubRunner) SubmitAnswer(context.Context, string, string, string) (domain.AnswerResult, error) {
	return domain.AnswerResult{}, nil
}
func (r stubRunner) Snapshot(string) (domain.SessionSnapshot, error) {
	return domain.SessionSnapshot{SessionID: r.id}, nil
}
func (r stubRunner) Next(context.Context, string) error { return nil }
func (r stubRunner) Cancel(string)                      {}
func (r stubRunner) Done() <-chan struct{}              { return nil }

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	store.Put(stubRunner{id: "b"})
	store.Put(stubRunner{id: "a"})
	if _, ok := store.Get("a"); !ok {
		t.Fatalf("expected session present")
	}
	list := store.List()
	if len(list) != 2 || list[0].ID() != "a" || list[1].ID() != "b" {
		t.Fatalf("unexpected listing %v", list)
	}

	store.Delete("a")
	if _, ok := store.Get("a"); ok {
		t.Fatalf("expected session removed")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one session left, got %d", store.Len())
	}
}
