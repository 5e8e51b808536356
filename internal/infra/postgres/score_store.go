package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-engine/internal/domain"
)

// ScoreStore persists best scores in user_scores, one row per
// (user_id, quiz_id).
type ScoreStore struct {
	pool *pgxpool.Pool
}

func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// RecordScore keeps the greater of the stored and the given score.
func (s *ScoreStore) RecordScore(ctx context.Context, rec domain.ScoreRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_scores (user_id, display_name, quiz_id, score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, quiz_id) DO UPDATE
		SET score = GREATEST(user_scores.score, EXCLUDED.score),
		    display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), user_scores.display_name),
		    updated_at = now()`,
		rec.ParticipantID, rec.DisplayName, rec.QuizID, rec.Score)
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

func (s *ScoreStore) HasTaken(ctx context.Context, participantID, quizID string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_scores WHERE user_id=$1 AND quiz_id=$2)`,
		participantID, quizID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("has taken: %w", err)
	}
	return taken, nil
}

// TopScores ranks a quiz's best scores, earlier finishers winning ties.
func (s *ScoreStore) TopScores(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, display_name, score FROM user_scores
		WHERE quiz_id=$1
		ORDER BY score DESC, created_at ASC
		LIMIT $2`, quizID, limit)
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.ParticipantID, &e.DisplayName, &e.Score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
