package app

import (
	"time"

	"trivia-engine/internal/retry"
)

// Options tunes the engine. Zero values are replaced by DefaultOptions.
type Options struct {
	MaxConcurrent int
	Cooldown      time.Duration

	DefaultTimer time.Duration
	MinTimer     time.Duration
	MaxTimer     time.Duration

	// AdvanceDelay is the pause between feedback and the next question.
	AdvanceDelay time.Duration
	// ManualAdvance waits for an explicit Next, ending the wait after IdleTimeout.
	ManualAdvance bool
	IdleTimeout   time.Duration

	AnswerCooldown time.Duration
	AnswerGap      time.Duration

	StartPause       time.Duration
	RevealPause      time.Duration
	CountdownEvery   time.Duration
	RegistrationTick time.Duration
	FinalCountdown   time.Duration
	GroupCooldown    bool
	// BroadcastLimit caps concurrent presenter calls when fanning out.
	BroadcastLimit int

	RetainFor     time.Duration
	SweepInterval time.Duration

	// AllowRetake skips the already-taken check on solo starts.
	AllowRetake bool

	// ResultsChannel receives public solo result announcements when set.
	ResultsChannel string

	Retry retry.Policy
}

// DefaultOptions mirrors the production bot settings.
func DefaultOptions() Options {
	return Options{
		MaxConcurrent:    5,
		Cooldown:         30 * time.Second,
		DefaultTimer:     20 * time.Second,
		MinTimer:         10 * time.Second,
		MaxTimer:         5 * time.Minute,
		AdvanceDelay:     2 * time.Second,
		IdleTimeout:      2 * time.Minute,
		AnswerCooldown:   500 * time.Millisecond,
		AnswerGap:        100 * time.Millisecond,
		StartPause:       3 * time.Second,
		RevealPause:      3 * time.Second,
		CountdownEvery:   5 * time.Second,
		RegistrationTick: 10 * time.Second,
		FinalCountdown:   10 * time.Second,
		GroupCooldown:    true,
		BroadcastLimit:   8,
		RetainFor:        2 * time.Minute,
		SweepInterval:    time.Minute,
		Retry:            retry.Default(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = d.MaxConcurrent
	}
	if o.Cooldown < 0 {
		o.Cooldown = 0
	}
	if o.DefaultTimer <= 0 {
		o.DefaultTimer = d.DefaultTimer
	}
	if o.MinTimer <= 0 {
		o.MinTimer = d.MinTimer
	}
	if o.MaxTimer <= 0 {
		o.MaxTimer = d.MaxTimer
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = d.IdleTimeout
	}
	if o.CountdownEvery <= 0 {
		o.CountdownEvery = d.CountdownEvery
	}
	if o.RegistrationTick <= 0 {
		o.RegistrationTick = d.RegistrationTick
	}
	if o.FinalCountdown < 0 {
		o.FinalCountdown = 0
	}
	if o.BroadcastLimit <= 0 {
		o.BroadcastLimit = d.BroadcastLimit
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = d.Retry
	}
	return o
}

// NormalizeTimer turns a requested per-question window in seconds into a
// duration. Missing or too short windows use the default; long ones are clamped.
func (o Options) NormalizeTimer(seconds int) time.Duration {
	window := time.Duration(seconds) * time.Second
	if window <= 0 || window < o.MinTimer {
		return o.DefaultTimer
	}
	if window > o.MaxTimer {
		return o.MaxTimer
	}
	return window
}
