package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-engine/internal/domain"
)

// UpdatesChannel carries every published group leaderboard as JSON.
const UpdatesChannel = "quiz:leaderboard:updates"

// LeaderboardCache mirrors live group tallies into Redis so dashboards and
// other instances can read them:
//
//	ZSET  session:{id}:lb       member=participantID score
//	STRING session:{id}:lb:json  full leaderboard
//
// Every update is also published on UpdatesChannel for external dashboards.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) PublishLeaderboard(ctx context.Context, lb domain.Leaderboard) error {
	raw, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	pipe := c.client.TxPipeline()
	zset := c.key(lb.SessionID)
	for _, entry := range lb.Entries {
		pipe.ZAdd(ctx, zset, redis.Z{Score: float64(entry.Score), Member: entry.ParticipantID})
	}
	pipe.Set(ctx, c.snapshotKey(lb.SessionID), raw, c.ttl)
	if c.ttl > 0 {
		pipe.Expire(ctx, zset, c.ttl)
	}
	pipe.Publish(ctx, UpdatesChannel, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish leaderboard: %w", err)
	}
	return nil
}

// Latest returns the last published leaderboard of a session.
func (c *LeaderboardCache) Latest(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	raw, err := c.client.Get(ctx, c.snapshotKey(sessionID)).Bytes()
	if err == redis.Nil {
		return domain.Leaderboard{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("read leaderboard: %w", err)
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	return lb, nil
}

// Rank is the 1-based position of a participant, 0 when absent.
func (c *LeaderboardCache) Rank(ctx context.Context, sessionID, participantID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.key(sessionID), participantID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil // 1-indexed
}

func (c *LeaderboardCache) key(sessionID string) string {
	return "session:" + sessionID + ":lb"
}

func (c *LeaderboardCache) snapshotKey(sessionID string) string {
	return "session:" + sessionID + ":lb:json"
}
