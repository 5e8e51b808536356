package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trivia-engine/internal/app"
	"trivia-engine/internal/infra/memory"
)

// SessionStore is a Redis-aware implementation of app.SessionRegistry.
// Runners stay in process; Redis only carries a liveness marker per handle
// (quiz:session:{id} -> quizID) so operators and other instances can see
// which sessions are running.
type SessionStore struct {
	*memory.SessionStore
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		SessionStore: memory.NewSessionStore(),
		client:       client,
		ttl:          ttl,
		logger:       logger,
	}
}

func (s *SessionStore) Put(r app.Runner) {
	s.SessionStore.Put(r)
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(r.ID()), r.QuizID(), s.ttl).Err(); err != nil {
		s.logger.Warn("session marker not set", zap.String("session_id", r.ID()), zap.Error(err))
	}
}

func (s *SessionStore) Delete(id string) {
	s.SessionStore.Delete(id)
	if err := s.client.Del(context.Background(), s.key(id)).Err(); err != nil {
		s.logger.Warn("session marker not cleared", zap.String("session_id", id), zap.Error(err))
	}
}

// Refresh extends the liveness markers of every local runner.
func (s *SessionStore) Refresh(ctx context.Context) error {
	pipe := s.client.Pipeline()
	for _, r := range s.List() {
		pipe.Expire(ctx, s.key(r.ID()), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
