package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-engine/internal/domain"
	"trivia-engine/internal/retry"
)

// renderer serializes presenter calls for one session and retries them with
// the shared policy.
type renderer struct {
	presenter Presenter
	policy    retry.Policy
	logger    *zap.Logger

	mu sync.Mutex
}

func newRenderer(p Presenter, policy retry.Policy, logger *zap.Logger) *renderer {
	return &renderer{presenter: p, policy: policy, logger: logger}
}

// do runs fn under the render lock with retries. The returned error is a
// *domain.PresentationError.
func (r *renderer) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.policy.Do(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		var pe *domain.PresentationError
		if errors.As(err, &pe) && pe.Permanent {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error, wait time.Duration) {
		r.logger.Warn("presenter call failed, retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	})
	if err == nil {
		return nil
	}
	var pe *domain.PresentationError
	if errors.As(err, &pe) {
		return pe
	}
	return &domain.PresentationError{Op: op, Err: err}
}

// bestEffort renders and only logs a failure.
func (r *renderer) bestEffort(ctx context.Context, op string, fn func(ctx context.Context) error) {
	if err := r.do(ctx, op, fn); err != nil {
		r.logger.Warn("presenter call dropped", zap.String("op", op), zap.Error(err))
	}
}
