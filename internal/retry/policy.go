// Package retry holds the bounded exponential backoff applied to presenter
// and score store calls.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes a bounded exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	// Jitter is the randomization factor in [0,1). Zero keeps delays exact.
	Jitter float64
}

// Default mirrors the bot's historical behaviour: three attempts, one second
// initial delay, doubling.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, Factor: 2}
}

// Hinter is implemented by errors that know how long the caller should wait
// before retrying (for example a 429 with Retry-After).
type Hinter interface {
	RetryAfter() time.Duration
}

// Notify is called before each retry sleep.
type Notify func(attempt int, err error, wait time.Duration)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify Notify) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = p.Factor
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.RandomizationFactor = p.Jitter
	exp.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		exp.MaxInterval = p.MaxDelay
	}
	exp.Reset()

	hinted := &hintedBackOff{BackOff: backoff.WithMaxRetries(exp, uint64(attempts-1))}
	policy := backoff.WithContext(hinted, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		var hint Hinter
		if errors.As(err, &hint) {
			hinted.hint = hint.RetryAfter()
		}
		return err
	}
	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) { notify(attempt, err, wait) }
	}
	return backoff.RetryNotify(operation, policy, onRetry)
}

// hintedBackOff stretches the next delay to a server-provided hint.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if h.hint > next {
		next = h.hint
	}
	h.hint = 0
	return next
}
