package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trivia-engine/internal/domain"
)

// upsertMax keeps the greater of the stored and the given score and
// remembers the display name.
var upsertMax = redis.NewScript(`
local current = redis.call('ZSCORE', KEYS[1], ARGV[1])
if (not current) or tonumber(ARGV[2]) > tonumber(current) then
  redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
end
if ARGV[3] ~= '' then
  redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
end
return 1
`)

// ScoreStore keeps best scores per quiz in Redis:
//
//	ZSET scores:{quizID}        member=participantID score=best
//	HASH scores:{quizID}:names  participantID -> display name
type ScoreStore struct {
	client *redis.Client
}

func NewScoreStore(client *redis.Client) *ScoreStore {
	return &ScoreStore{client: client}
}

func (s *ScoreStore) RecordScore(ctx context.Context, rec domain.ScoreRecord) error {
	err := upsertMax.Run(ctx, s.client,
		[]string{s.key(rec.QuizID), s.namesKey(rec.QuizID)},
		rec.ParticipantID, rec.Score, rec.DisplayName).Err()
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

func (s *ScoreStore) HasTaken(ctx context.Context, participantID, quizID string) (bool, error) {
	err := s.client.ZScore(ctx, s.key(quizID), participantID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has taken: %w", err)
	}
	return true, nil
}

// TopScores returns the best stored scores for a quiz, highest first.
func (s *ScoreStore) TopScores(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	results, err := s.client.ZRevRangeWithScores(ctx, s.key(quizID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	ids := make([]string, len(results))
	for i, z := range results {
		ids[i] = z.Member.(string)
	}
	names, err := s.client.HMGet(ctx, s.namesKey(quizID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("top score names: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, z := range results {
		name, _ := names[i].(string)
		entries[i] = domain.LeaderboardEntry{
			Rank:          i + 1,
			ParticipantID: ids[i],
			DisplayName:   name,
			Score:         int(z.Score),
		}
	}
	return entries, nil
}

func (s *ScoreStore) key(quizID string) string {
	return "scores:" + quizID
}

func (s *ScoreStore) namesKey(quizID string) string {
	return "scores:" + quizID + ":names"
}
