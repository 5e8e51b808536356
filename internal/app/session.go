package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-engine/internal/clock"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/retry"
)

// SessionConfig describes one solo run.
type SessionConfig struct {
	ID          string
	Participant domain.Participant
	QuizID      string
	Window      time.Duration

	AdvanceDelay   time.Duration
	ManualAdvance  bool
	IdleTimeout    time.Duration
	ResultsChannel string
}

// SessionDeps are the collaborators a session talks to.
type SessionDeps struct {
	Quizzes   QuizRepository
	Presenter Presenter
	Recorder  *ScoreRecorder
	Clock     clock.Clock
	Retry     retry.Policy
	Logger    *zap.Logger
	// OnDone runs once after the session reached a terminal state and flushed.
	OnDone func(*QuizSession)
}

// QuizSession drives one participant through one quiz. All state mutation
// happens under mu; presenter I/O happens outside it.
type QuizSession struct {
	cfg    SessionConfig
	deps   SessionDeps
	render *renderer
	logger *zap.Logger

	// base outlives the scope so the final flush and result survive Close.
	base     context.Context
	scope    *clock.Scope
	done     chan struct{}
	doneOnce sync.Once

	mu            sync.Mutex
	status        domain.SessionStatus
	quiz          domain.Quiz
	index         int
	score         int
	answered      map[string]answerRecord
	shownAt       time.Time
	questionTimer clock.Timer
	advanceTimer  clock.Timer
	reason        string
	finishedAt    time.Time
}

type answerRecord struct {
	key      string
	correct  bool
	awarded  int
	timedOut bool
	at       time.Time
}

func NewQuizSession(ctx context.Context, cfg SessionConfig, deps SessionDeps) *QuizSession {
	logger := deps.Logger.With(
		zap.String("session_id", cfg.ID),
		zap.String("participant_id", cfg.Participant.ID),
		zap.String("quiz_id", cfg.QuizID))
	return &QuizSession{
		cfg:      cfg,
		deps:     deps,
		render:   newRenderer(deps.Presenter, deps.Retry, logger),
		logger:   logger,
		base:     ctx,
		scope:    clock.NewScope(ctx, deps.Clock),
		done:     make(chan struct{}),
		status:   domain.StatusInitializing,
		answered: make(map[string]answerRecord),
	}
}

func (s *QuizSession) ID() string     { return s.cfg.ID }
func (s *QuizSession) QuizID() string { return s.cfg.QuizID }

// Participant returns the session owner.
func (s *QuizSession) Participant() domain.Participant { return s.cfg.Participant }

// Done is closed once the session is terminal and its score was flushed.
func (s *QuizSession) Done() <-chan struct{} { return s.done }

// Status returns the current state machine position.
func (s *QuizSession) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Score returns the accumulated score.
func (s *QuizSession) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// FinishedAt is zero until the session is terminal.
func (s *QuizSession) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

// Start loads the quiz and presents the first question. A returned error
// means initialization failed: the session is aborted without a flush and
// OnDone is not called.
func (s *QuizSession) Start(ctx context.Context) error {
	var quiz domain.Quiz
	err := s.deps.Retry.Do(ctx, func(ctx context.Context) error {
		loaded, err := s.deps.Quizzes.GetQuiz(ctx, s.cfg.QuizID)
		if errors.Is(err, domain.ErrQuizNotFound) {
			return retry.Permanent(err)
		}
		quiz = loaded
		return err
	}, nil)
	if err == nil {
		err = quiz.Validate()
	}
	if err != nil {
		s.failInit()
		return fmt.Errorf("load quiz %s: %w", s.cfg.QuizID, err)
	}

	s.mu.Lock()
	if s.status != domain.StatusInitializing {
		s.mu.Unlock()
		return fmt.Errorf("start session %s: %w", s.cfg.ID, domain.ErrSessionNotFound)
	}
	s.quiz = quiz
	view := s.openLocked(0)
	s.mu.Unlock()

	s.logger.Info("solo quiz started", zap.Int("questions", len(quiz.Questions)), zap.Duration("window", s.cfg.Window))
	if err := s.showQuestion(view); err != nil {
		s.failInit()
		return err
	}
	return nil
}

func (s *QuizSession) failInit() {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = domain.StatusAborted
	s.reason = "initialization failed"
	s.finishedAt = s.deps.Clock.Now()
	s.mu.Unlock()
	s.scope.Close()
	s.doneOnce.Do(func() { close(s.done) })
}

// openLocked makes question idx current and arms its timer.
func (s *QuizSession) openLocked(idx int) domain.QuestionView {
	s.index = idx
	s.status = domain.StatusAwaitingAnswer
	s.shownAt = s.deps.Clock.Now()
	s.questionTimer = s.scope.AfterFunc(s.cfg.Window, func() { s.expire(idx) })
	return s.questionViewLocked()
}

func (s *QuizSession) showQuestion(view domain.QuestionView) error {
	return s.render.do(s.scope.Context(), "question", func(ctx context.Context) error {
		return s.deps.Presenter.ShowQuestion(ctx, s.cfg.Participant, view)
	})
}

// SubmitAnswer grades the first answer for the current question. Duplicates,
// stale questions and answers racing the timeout are TooLate.
func (s *QuizSession) SubmitAnswer(_ context.Context, participantID, questionID, key string) (domain.AnswerResult, error) {
	if participantID != s.cfg.Participant.ID {
		return domain.AnswerResult{Status: domain.AnswerNotYours, QuestionID: questionID}, nil
	}

	s.mu.Lock()
	tooLate := domain.AnswerResult{Status: domain.AnswerTooLate, QuestionID: questionID, TotalScore: s.score}
	if s.status == domain.StatusInitializing || s.status.Terminal() {
		s.mu.Unlock()
		return tooLate, nil
	}
	q, idx, ok := s.quiz.Question(questionID)
	if !ok || idx > s.index {
		s.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	if _, seen := s.answered[questionID]; seen || idx != s.index || s.status != domain.StatusAwaitingAnswer {
		s.mu.Unlock()
		return tooLate, nil
	}
	if !q.HasOption(key) {
		s.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrOptionNotFound
	}

	s.status = domain.StatusGrading
	now := s.deps.Clock.Now()
	correct, awarded := domain.Award(q, key, now.Sub(s.shownAt), s.cfg.Window)
	rec := answerRecord{key: key, correct: correct, awarded: awarded, at: now}
	s.answered[q.ID] = rec
	if s.questionTimer != nil {
		s.questionTimer.Stop()
	}
	s.score += awarded
	s.status = domain.StatusTransitioning
	fb := s.feedbackLocked(q, rec)
	result := domain.AnswerResult{
		Status:     domain.AnswerAccepted,
		QuestionID: q.ID,
		Correct:    correct,
		Awarded:    awarded,
		TotalScore: s.score,
	}
	s.mu.Unlock()

	s.logger.Debug("answer graded",
		zap.String("question_id", q.ID), zap.Bool("correct", correct), zap.Int("awarded", awarded))
	s.showFeedback(fb)
	s.armAdvance(idx)
	return result, nil
}

// expire is the timeout path for question idx.
func (s *QuizSession) expire(idx int) {
	s.mu.Lock()
	if s.status != domain.StatusAwaitingAnswer || s.index != idx {
		s.mu.Unlock()
		return
	}
	q := s.quiz.Questions[idx]
	if _, seen := s.answered[q.ID]; seen {
		s.mu.Unlock()
		return
	}
	s.status = domain.StatusGrading
	rec := answerRecord{timedOut: true, at: s.deps.Clock.Now()}
	s.answered[q.ID] = rec
	s.status = domain.StatusTransitioning
	fb := s.feedbackLocked(q, rec)
	s.mu.Unlock()

	s.logger.Debug("question timed out", zap.String("question_id", q.ID))
	s.showFeedback(fb)
	s.armAdvance(idx)
}

func (s *QuizSession) showFeedback(fb domain.Feedback) {
	s.render.bestEffort(s.scope.Context(), "feedback", func(ctx context.Context) error {
		return s.deps.Presenter.ShowFeedback(ctx, s.cfg.Participant, fb)
	})
}

func (s *QuizSession) armAdvance(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusTransitioning || s.index != idx {
		return
	}
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
	}
	if s.cfg.ManualAdvance {
		s.advanceTimer = s.scope.AfterFunc(s.cfg.IdleTimeout, func() { s.idleEnd(idx) })
		return
	}
	s.advanceTimer = s.scope.AfterFunc(s.cfg.AdvanceDelay, func() { s.advance(idx) })
}

// idleEnd completes a manually advanced session nobody moved on from within
// the idle timeout. Remaining questions are left unanswered.
func (s *QuizSession) idleEnd(idx int) {
	s.mu.Lock()
	if s.status != domain.StatusTransitioning || s.index != idx {
		s.mu.Unlock()
		return
	}
	s.advanceTimer = nil
	s.status = domain.StatusCompleted
	s.finishedAt = s.deps.Clock.Now()
	result := s.resultLocked()
	s.mu.Unlock()

	s.logger.Info("solo quiz ended after inactivity", zap.Duration("idle", s.cfg.IdleTimeout))
	s.render.bestEffort(s.base, "idle notice", func(ctx context.Context) error {
		return s.deps.Presenter.Notify(ctx, s.cfg.Participant, "The quiz ended due to inactivity. Here are your results.")
	})
	s.finish(result)
}

// Next skips the remaining feedback pause, like a "Next Question" button.
func (s *QuizSession) Next(_ context.Context, participantID string) error {
	if participantID != s.cfg.Participant.ID {
		return domain.ErrParticipantNotFound
	}
	s.mu.Lock()
	if s.status != domain.StatusTransitioning {
		s.mu.Unlock()
		return domain.ErrNotAdvanceable
	}
	idx := s.index
	s.mu.Unlock()
	s.advance(idx)
	return nil
}

// advance leaves question idx. It is a no-op unless idx is still current and
// graded, so racing timer and button presses advance once.
func (s *QuizSession) advance(idx int) {
	s.mu.Lock()
	if s.status != domain.StatusTransitioning || s.index != idx {
		s.mu.Unlock()
		return
	}
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	if idx+1 >= len(s.quiz.Questions) {
		s.mu.Unlock()
		s.complete()
		return
	}
	view := s.openLocked(idx + 1)
	s.mu.Unlock()

	if err := s.showQuestion(view); err != nil {
		s.logger.Warn("question presentation failed", zap.Error(err))
		s.abort("presentation failed")
	}
}

func (s *QuizSession) complete() {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = domain.StatusCompleted
	s.finishedAt = s.deps.Clock.Now()
	result := s.resultLocked()
	s.mu.Unlock()
	s.finish(result)
}

// Cancel aborts the session; the score so far is still flushed.
func (s *QuizSession) Cancel(reason string) {
	s.abort(reason)
}

func (s *QuizSession) abort(reason string) {
	s.mu.Lock()
	if s.status.Terminal() || s.status == domain.StatusInitializing {
		s.mu.Unlock()
		return
	}
	s.status = domain.StatusAborted
	s.reason = reason
	s.finishedAt = s.deps.Clock.Now()
	result := s.resultLocked()
	s.mu.Unlock()

	s.logger.Warn("solo quiz aborted", zap.String("reason", reason))
	s.finish(result)
}

// finish cancels every pending timer, then reports and flushes the result.
func (s *QuizSession) finish(result domain.SessionResult) {
	s.scope.Close()

	s.render.bestEffort(s.base, "result", func(ctx context.Context) error {
		return s.deps.Presenter.ShowResult(ctx, s.cfg.Participant, result)
	})
	if s.cfg.ResultsChannel != "" && result.Status == domain.StatusCompleted {
		announcement := domain.Announcement{
			Kind:      domain.AnnounceSoloResult,
			SessionID: s.cfg.ID,
			QuizID:    s.cfg.QuizID,
			QuizName:  result.QuizName,
			Result:    &result,
		}
		s.render.bestEffort(s.base, "announce result", func(ctx context.Context) error {
			return s.deps.Presenter.Announce(ctx, s.cfg.ResultsChannel, announcement)
		})
	}

	err := s.deps.Recorder.Record(s.base, domain.ScoreRecord{
		ParticipantID: s.cfg.Participant.ID,
		DisplayName:   s.cfg.Participant.DisplayName,
		QuizID:        s.cfg.QuizID,
		Score:         result.Score,
	})
	if err != nil {
		s.logger.Error("final score not stored", zap.Error(err))
	}

	s.logger.Info("solo quiz finished",
		zap.String("status", string(result.Status)), zap.Int("score", result.Score), zap.Int("max", result.MaxScore))
	s.doneOnce.Do(func() { close(s.done) })
	if s.deps.OnDone != nil {
		s.deps.OnDone(s)
	}
}

// Snapshot replays where the participant stands without touching scores.
func (s *QuizSession) Snapshot(participantID string) (domain.SessionSnapshot, error) {
	if participantID != s.cfg.Participant.ID {
		return domain.SessionSnapshot{}, domain.ErrParticipantNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.SessionSnapshot{
		SessionID:     s.cfg.ID,
		QuizID:        s.cfg.QuizID,
		ParticipantID: participantID,
		Status:        s.status,
		Score:         s.score,
	}
	switch {
	case s.status.Terminal():
		result := s.resultLocked()
		snap.Result = &result
	case s.status == domain.StatusInitializing:
	default:
		view := s.questionViewLocked()
		snap.Question = &view
		snap.Answered = view.Answered
		snap.ChosenKey = view.ChosenKey
	}
	return snap, nil
}

func (s *QuizSession) questionViewLocked() domain.QuestionView {
	q := s.quiz.Questions[s.index]
	remaining := s.cfg.Window - s.deps.Clock.Now().Sub(s.shownAt)
	if remaining < 0 {
		remaining = 0
	}
	rec, answered := s.answered[q.ID]
	if answered {
		remaining = 0
	}
	return domain.QuestionView{
		SessionID:     s.cfg.ID,
		QuizID:        s.quiz.ID,
		QuizName:      s.quiz.Name,
		QuestionID:    q.ID,
		Index:         s.index,
		Total:         len(s.quiz.Questions),
		Text:          q.Text,
		Options:       q.Options,
		MaxScore:      q.MaxScore,
		Window:        s.cfg.Window,
		Remaining:     remaining,
		Answered:      answered,
		ChosenKey:     rec.key,
		ParticipantID: s.cfg.Participant.ID,
	}
}

func (s *QuizSession) feedbackLocked(q domain.Question, rec answerRecord) domain.Feedback {
	last := s.index+1 >= len(s.quiz.Questions)
	fb := domain.Feedback{
		SessionID:   s.cfg.ID,
		QuestionID:  q.ID,
		Index:       s.index,
		Total:       len(s.quiz.Questions),
		TimedOut:    rec.timedOut,
		Correct:     rec.correct,
		ChosenKey:   rec.key,
		CorrectKey:  q.CorrectKey,
		CorrectText: q.OptionLabel(q.CorrectKey),
		Awarded:     rec.awarded,
		TotalScore:  s.score,
		Last:        last,
		CanAdvance:  true,
	}
	if !rec.correct {
		fb.Explanation = q.Explanation
	}
	return fb
}

func (s *QuizSession) resultLocked() domain.SessionResult {
	correct := 0
	for _, rec := range s.answered {
		if rec.correct {
			correct++
		}
	}
	return domain.SessionResult{
		SessionID:   s.cfg.ID,
		Participant: s.cfg.Participant,
		QuizID:      s.cfg.QuizID,
		QuizName:    s.quiz.Name,
		Score:       s.score,
		MaxScore:    s.quiz.MaxTotal(),
		Answered:    len(s.answered),
		Correct:     correct,
		Total:       len(s.quiz.Questions),
		Status:      s.status,
		Reason:      s.reason,
	}
}
