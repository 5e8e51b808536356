package app

import (
	"context"

	"trivia-engine/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ScoreStore is the durable upsert-max score table. RecordScore keeps the
// greater of the stored and the given score.
type ScoreStore interface {
	RecordScore(ctx context.Context, rec domain.ScoreRecord) error
	HasTaken(ctx context.Context, participantID, quizID string) (bool, error)
}

// Presenter renders engine output on some chat or realtime surface. Calls may
// fail; failures never touch scoring state.
type Presenter interface {
	ShowQuestion(ctx context.Context, to domain.Participant, view domain.QuestionView) error
	ShowFeedback(ctx context.Context, to domain.Participant, fb domain.Feedback) error
	ShowResult(ctx context.Context, to domain.Participant, result domain.SessionResult) error
	ShowSnapshot(ctx context.Context, to domain.Participant, snap domain.SessionSnapshot) error
	Announce(ctx context.Context, channel string, a domain.Announcement) error
	Notify(ctx context.Context, to domain.Participant, text string) error
}

// LeaderboardPublisher receives live group tallies, e.g. for dashboards.
type LeaderboardPublisher interface {
	PublishLeaderboard(ctx context.Context, lb domain.Leaderboard) error
}

// Runner is a live solo session or group controller addressable by handle.
type Runner interface {
	ID() string
	QuizID() string
	SubmitAnswer(ctx context.Context, participantID, questionID, key string) (domain.AnswerResult, error)
	Snapshot(participantID string) (domain.SessionSnapshot, error)
	Next(ctx context.Context, participantID string) error
	Cancel(reason string)
	Done() <-chan struct{}
}

// SessionRegistry abstracts where live runners are indexed (in-memory, Redis-marked, etc).
type SessionRegistry interface {
	Put(r Runner)
	Get(id string) (Runner, bool)
	Delete(id string)
	List() []Runner
}

// ScoreBoard ranks stored best scores for a quiz.
type ScoreBoard interface {
	TopScores(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error)
}
