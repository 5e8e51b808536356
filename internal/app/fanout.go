package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"trivia-engine/internal/domain"
	"trivia-engine/internal/retry"
)

// FanOut renders to every presenter in order. Each presenter decides whether
// the participant lives on its surface. A failing surface is retried on its
// own, so the others never see a message twice; what still fails afterwards
// is reported as a permanent *domain.PresentationError.
type FanOut struct {
	presenters []Presenter
	policy     retry.Policy
	logger     *zap.Logger
}

func NewFanOut(policy retry.Policy, logger *zap.Logger, presenters ...Presenter) *FanOut {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOut{presenters: presenters, policy: policy, logger: logger}
}

func (f *FanOut) each(ctx context.Context, op string, fn func(ctx context.Context, p Presenter) error) error {
	var errs []error
	for _, p := range f.presenters {
		err := f.policy.Do(ctx, func(ctx context.Context) error {
			err := fn(ctx, p)
			var pe *domain.PresentationError
			if errors.As(err, &pe) && pe.Permanent {
				return retry.Permanent(err)
			}
			return err
		}, func(attempt int, err error, wait time.Duration) {
			f.logger.Warn("surface render failed, retrying",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &domain.PresentationError{Op: op, Err: errors.Join(errs...), Permanent: true}
}

func (f *FanOut) ShowQuestion(ctx context.Context, to domain.Participant, view domain.QuestionView) error {
	return f.each(ctx, "question", func(ctx context.Context, p Presenter) error { return p.ShowQuestion(ctx, to, view) })
}

func (f *FanOut) ShowFeedback(ctx context.Context, to domain.Participant, fb domain.Feedback) error {
	return f.each(ctx, "feedback", func(ctx context.Context, p Presenter) error { return p.ShowFeedback(ctx, to, fb) })
}

func (f *FanOut) ShowResult(ctx context.Context, to domain.Participant, result domain.SessionResult) error {
	return f.each(ctx, "result", func(ctx context.Context, p Presenter) error { return p.ShowResult(ctx, to, result) })
}

func (f *FanOut) ShowSnapshot(ctx context.Context, to domain.Participant, snap domain.SessionSnapshot) error {
	return f.each(ctx, "snapshot", func(ctx context.Context, p Presenter) error { return p.ShowSnapshot(ctx, to, snap) })
}

func (f *FanOut) Announce(ctx context.Context, channel string, a domain.Announcement) error {
	return f.each(ctx, "announcement", func(ctx context.Context, p Presenter) error { return p.Announce(ctx, channel, a) })
}

func (f *FanOut) Notify(ctx context.Context, to domain.Participant, text string) error {
	return f.each(ctx, "notice", func(ctx context.Context, p Presenter) error { return p.Notify(ctx, to, text) })
}
