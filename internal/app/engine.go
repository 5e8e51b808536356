package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trivia-engine/internal/clock"
	"trivia-engine/internal/domain"
)

// AnswerCommand is one participant's answer to one question of a session.
type AnswerCommand struct {
	SessionID     string
	ParticipantID string
	QuestionID    string
	Key           string
}

// GroupRequest schedules a group quiz in a channel.
type GroupRequest struct {
	Channel      string
	QuizID       string
	Registration time.Duration
	TimerSeconds int
}

// EngineDeps are the adapters the engine is composed from. Clock, Logger and
// NewID default to the real clock, a no-op logger and random UUIDs.
type EngineDeps struct {
	Quizzes   QuizRepository
	Store     ScoreStore
	Presenter Presenter
	Registry  SessionRegistry
	Publisher LeaderboardPublisher
	Clock     clock.Clock
	Logger    *zap.Logger
	NewID     func() string
}

// Engine owns the admission queue, the answer limiter and the score recorder
// and routes commands to live sessions by handle.
type Engine struct {
	opts   Options
	deps   EngineDeps
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	queue    *SessionQueue
	limiter  *AnswerRateLimiter
	recorder *ScoreRecorder

	mu     sync.Mutex
	solo   map[string]string // participant -> live solo session
	closed bool
}

func NewEngine(ctx context.Context, opts Options, deps EngineDeps) *Engine {
	opts = opts.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	ctx, cancel := context.WithCancel(ctx)
	e := &Engine{
		opts:     opts,
		deps:     deps,
		logger:   deps.Logger.Named("engine"),
		ctx:      ctx,
		cancel:   cancel,
		recorder: NewScoreRecorder(deps.Store, opts.Retry, deps.Logger),
		limiter:  NewAnswerRateLimiter(deps.Clock, opts.AnswerCooldown, opts.AnswerGap, deps.Logger),
		solo:     make(map[string]string),
	}
	e.queue = NewSessionQueue(ctx, deps.Clock, opts.MaxConcurrent, opts.Cooldown, e.launchSolo, deps.Logger)
	return e
}

// StartSolo asks for a solo run. The ticket says whether it started or where
// it waits; admission rejections are *domain.AdmissionError.
func (e *Engine) StartSolo(ctx context.Context, p domain.Participant, quizID string, timerSeconds int) (Ticket, error) {
	if e.isClosed() {
		return Ticket{}, context.Canceled
	}
	if !e.opts.AllowRetake {
		taken, err := e.deps.Store.HasTaken(ctx, p.ID, quizID)
		if err != nil {
			e.logger.Warn("already-taken check failed", zap.String("participant_id", p.ID), zap.Error(err))
		} else if taken {
			return Ticket{}, &domain.AdmissionError{Reason: domain.AdmissionAlreadyTaken}
		}
	}
	if _, err := e.deps.Quizzes.GetQuiz(ctx, quizID); err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return Ticket{}, &domain.AdmissionError{Reason: domain.AdmissionQuizNotFound, Err: err}
		}
		return Ticket{}, fmt.Errorf("check quiz %s: %w", quizID, err)
	}

	return e.queue.Enqueue(QueueEntry{
		Participant: p,
		QuizID:      quizID,
		Window:      e.opts.NormalizeTimer(timerSeconds),
	})
}

func (e *Engine) launchSolo(ctx context.Context, entry QueueEntry) error {
	if e.isClosed() {
		return context.Canceled
	}
	session := NewQuizSession(e.ctx, SessionConfig{
		ID:             e.deps.NewID(),
		Participant:    entry.Participant,
		QuizID:         entry.QuizID,
		Window:         entry.Window,
		AdvanceDelay:   e.opts.AdvanceDelay,
		ManualAdvance:  e.opts.ManualAdvance,
		IdleTimeout:    e.opts.IdleTimeout,
		ResultsChannel: e.opts.ResultsChannel,
	}, SessionDeps{
		Quizzes:   e.deps.Quizzes,
		Presenter: e.deps.Presenter,
		Recorder:  e.recorder,
		Clock:     e.deps.Clock,
		Retry:     e.opts.Retry,
		Logger:    e.deps.Logger,
		OnDone:    e.soloDone,
	})

	e.mu.Lock()
	e.solo[entry.Participant.ID] = session.ID()
	e.mu.Unlock()
	e.deps.Registry.Put(session)

	if err := session.Start(ctx); err != nil {
		e.deps.Registry.Delete(session.ID())
		e.forgetSolo(entry.Participant.ID, session.ID())
		if nerr := e.deps.Presenter.Notify(e.ctx, entry.Participant, "The quiz could not be started. Please try again."); nerr != nil {
			e.logger.Debug("start failure notice not delivered", zap.Error(nerr))
		}
		return err
	}
	return nil
}

func (e *Engine) soloDone(s *QuizSession) {
	e.forgetSolo(s.Participant().ID, s.ID())
	if s.Status() == domain.StatusCompleted {
		e.queue.Finish(s.Participant().ID)
	} else {
		e.queue.release(s.Participant().ID)
	}
	e.retain(s.ID())
}

func (e *Engine) forgetSolo(participantID, sessionID string) {
	e.mu.Lock()
	if e.solo[participantID] == sessionID {
		delete(e.solo, participantID)
	}
	e.mu.Unlock()
}

// retain keeps a finished runner addressable for late answers and recovery.
func (e *Engine) retain(id string) {
	if e.opts.RetainFor <= 0 {
		e.deps.Registry.Delete(id)
		return
	}
	e.deps.Clock.AfterFunc(e.opts.RetainFor, func() {
		e.deps.Registry.Delete(id)
	})
}

// ActiveSession returns the participant's live solo session handle.
func (e *Engine) ActiveSession(participantID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.solo[participantID]
	return id, ok
}

// StartGroup schedules a group quiz and opens registration.
func (e *Engine) StartGroup(ctx context.Context, req GroupRequest) (*GroupController, error) {
	if e.isClosed() {
		return nil, context.Canceled
	}
	g := NewGroupController(e.ctx, GroupConfig{
		ID:                 e.deps.NewID(),
		QuizID:             req.QuizID,
		Channel:            req.Channel,
		RegistrationWindow: req.Registration,
		Window:             e.opts.NormalizeTimer(req.TimerSeconds),
		StartPause:         e.opts.StartPause,
		RevealPause:        e.opts.RevealPause,
		CountdownEvery:     e.opts.CountdownEvery,
		RegistrationTick:   e.opts.RegistrationTick,
		FinalCountdown:     e.opts.FinalCountdown,
		BroadcastLimit:     e.opts.BroadcastLimit,
	}, GroupDeps{
		Quizzes:      e.deps.Quizzes,
		Presenter:    e.deps.Presenter,
		Recorder:     e.recorder,
		Leaderboards: e.deps.Publisher,
		Clock:        e.deps.Clock,
		Retry:        e.opts.Retry,
		Logger:       e.deps.Logger,
		OnDone:       e.groupDone,
	})
	e.deps.Registry.Put(g)
	if err := g.Start(ctx); err != nil {
		e.deps.Registry.Delete(g.ID())
		if errors.Is(err, domain.ErrQuizNotFound) {
			return nil, &domain.AdmissionError{Reason: domain.AdmissionQuizNotFound, Err: err}
		}
		return nil, err
	}
	return g, nil
}

func (e *Engine) groupDone(g *GroupController) {
	if e.opts.GroupCooldown && g.Phase() == domain.PhaseFinished {
		for _, p := range g.Participants() {
			e.queue.StartCooldown(p.ID)
		}
	}
	e.retain(g.ID())
}

// Register joins a participant to a group quiz that is still registering.
func (e *Engine) Register(ctx context.Context, sessionID string, p domain.Participant) error {
	runner, ok := e.deps.Registry.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	g, ok := runner.(*GroupController)
	if !ok {
		return domain.ErrRegistrationClosed
	}
	return g.Register(ctx, p)
}

// SubmitAnswer routes the command through the per-participant limiter and
// returns the session's verdict.
func (e *Engine) SubmitAnswer(ctx context.Context, cmd AnswerCommand) (domain.AnswerResult, error) {
	runner, ok := e.deps.Registry.Get(cmd.SessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	var (
		res domain.AnswerResult
		err error
	)
	if lerr := e.limiter.Do(ctx, cmd.ParticipantID, func() {
		res, err = runner.SubmitAnswer(ctx, cmd.ParticipantID, cmd.QuestionID, cmd.Key)
	}); lerr != nil {
		return domain.AnswerResult{}, lerr
	}
	return res, err
}

// Next advances a solo session waiting for manual progression.
func (e *Engine) Next(ctx context.Context, sessionID, participantID string) error {
	runner, ok := e.deps.Registry.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return runner.Next(ctx, participantID)
}

// Snapshot returns the participant's current view without side effects.
func (e *Engine) Snapshot(sessionID, participantID string) (domain.SessionSnapshot, error) {
	runner, ok := e.deps.Registry.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return runner.Snapshot(participantID)
}

// Recover re-renders the participant's current view, e.g. after the original
// message was lost.
func (e *Engine) Recover(ctx context.Context, sessionID string, p domain.Participant) (domain.SessionSnapshot, error) {
	snap, err := e.Snapshot(sessionID, p.ID)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	r := newRenderer(e.deps.Presenter, e.opts.Retry, e.logger)
	if err := r.do(ctx, "snapshot", func(ctx context.Context) error {
		return e.deps.Presenter.ShowSnapshot(ctx, p, snap)
	}); err != nil {
		return snap, err
	}
	return snap, nil
}

// Cancel aborts a solo session or cancels a group.
func (e *Engine) Cancel(sessionID, reason string) error {
	runner, ok := e.deps.Registry.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	runner.Cancel(reason)
	return nil
}

// LeaveQueue drops a waiting solo request.
func (e *Engine) LeaveQueue(participantID string) bool {
	return e.queue.Cancel(participantID)
}

// QueuePosition is the 1-based FIFO position, 0 when not queued.
func (e *Engine) QueuePosition(participantID string) int {
	return e.queue.Position(participantID)
}

// CooldownRemaining reports how long until the participant may start again.
func (e *Engine) CooldownRemaining(participantID string) time.Duration {
	return e.queue.CooldownRemaining(participantID)
}

func (e *Engine) QueueStats() QueueStats {
	return e.queue.Stats()
}

// Run sweeps parked scores and idle limiter state until ctx ends.
func (e *Engine) Run(ctx context.Context) {
	e.recorder.RunSweeper(ctx, e.deps.Clock, e.opts.SweepInterval, func() {
		if n := e.limiter.Prune(); n > 0 {
			e.logger.Debug("limiter state pruned", zap.Int("participants", n))
		}
	})
}

// Close cancels every live runner, flushes their scores and stops background
// work. It is safe to call more than once.
func (e *Engine) Close(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	for _, runner := range e.deps.Registry.List() {
		runner.Cancel("shutting down")
	}
	e.limiter.Close()
	e.queue.Wait()
	if e.recorder.Pending() > 0 {
		e.recorder.Sweep(ctx)
	}
	e.cancel()
	e.logger.Info("engine stopped", zap.Int("unflushed", e.recorder.Pending()))
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
