package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trivia-engine/internal/clock"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/retry"
)

// GroupConfig describes one scheduled group quiz.
type GroupConfig struct {
	ID                 string
	QuizID             string
	Channel            string
	RegistrationWindow time.Duration
	Window             time.Duration

	StartPause       time.Duration
	RevealPause      time.Duration
	CountdownEvery   time.Duration
	RegistrationTick time.Duration
	// FinalCountdown switches registration updates to one per second once
	// this little time is left. Zero disables it.
	FinalCountdown time.Duration
	BroadcastLimit int
}

// GroupDeps are the collaborators a group controller talks to.
type GroupDeps struct {
	Quizzes      QuizRepository
	Presenter    Presenter
	Recorder     *ScoreRecorder
	Leaderboards LeaderboardPublisher
	Clock        clock.Clock
	Retry        retry.Policy
	Logger       *zap.Logger
	OnDone       func(*GroupController)
}

// GroupController runs one quiz for many registered participants on a single
// shared question clock.
type GroupController struct {
	cfg    GroupConfig
	deps   GroupDeps
	render *renderer
	logger *zap.Logger

	base     context.Context
	scope    *clock.Scope
	done     chan struct{}
	doneOnce sync.Once

	mu          sync.Mutex
	phase       domain.GroupPhase
	quiz        domain.Quiz
	startsAt    time.Time
	index       int
	shownAt     time.Time
	closeEarly  context.CancelFunc
	slots       map[string]*groupSlot
	order       []string
	reveal      *domain.Reveal
	leaderboard *domain.Leaderboard
	reason      string
}

type groupSlot struct {
	participant domain.Participant
	seq         int
	score       int
	answered    map[string]answerRecord
}

var errGroupStopped = errors.New("group quiz stopped")

func NewGroupController(ctx context.Context, cfg GroupConfig, deps GroupDeps) *GroupController {
	if cfg.BroadcastLimit <= 0 {
		cfg.BroadcastLimit = 8
	}
	logger := deps.Logger.With(
		zap.String("group_id", cfg.ID),
		zap.String("quiz_id", cfg.QuizID),
		zap.String("channel", cfg.Channel))
	return &GroupController{
		cfg:    cfg,
		deps:   deps,
		render: newRenderer(deps.Presenter, deps.Retry, logger),
		logger: logger,
		base:   ctx,
		scope:  clock.NewScope(ctx, deps.Clock),
		done:   make(chan struct{}),
		phase:  domain.PhaseRegistering,
		index:  -1,
		slots:  make(map[string]*groupSlot),
	}
}

func (g *GroupController) ID() string     { return g.cfg.ID }
func (g *GroupController) QuizID() string { return g.cfg.QuizID }

// Channel is where channel-level announcements go.
func (g *GroupController) Channel() string { return g.cfg.Channel }

// Done is closed once the group finished or was cancelled.
func (g *GroupController) Done() <-chan struct{} { return g.done }

// Phase returns the aggregate state.
func (g *GroupController) Phase() domain.GroupPhase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Participants lists registrants in registration order.
func (g *GroupController) Participants() []domain.Participant {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.participantsLocked()
}

// Start loads the quiz, opens registration and runs the quiz in the
// background. An error means nothing was scheduled.
func (g *GroupController) Start(ctx context.Context) error {
	var quiz domain.Quiz
	err := g.deps.Retry.Do(ctx, func(ctx context.Context) error {
		loaded, err := g.deps.Quizzes.GetQuiz(ctx, g.cfg.QuizID)
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
		g.scope.Close()
		g.doneOnce.Do(func() { close(g.done) })
		return fmt.Errorf("load quiz %s: %w", g.cfg.QuizID, err)
	}

	g.mu.Lock()
	if g.phase.Terminal() {
		g.mu.Unlock()
		return fmt.Errorf("start group %s: %w", g.cfg.ID, errGroupStopped)
	}
	g.quiz = quiz
	g.startsAt = g.deps.Clock.Now().Add(g.cfg.RegistrationWindow)
	g.mu.Unlock()

	g.logger.Info("group quiz scheduled",
		zap.Duration("registration", g.cfg.RegistrationWindow), zap.Duration("window", g.cfg.Window))
	go g.run()
	return nil
}

func (g *GroupController) run() {
	if err := g.registration(); err != nil {
		return
	}
	if !g.closeRegistration() {
		return
	}
	if err := g.scope.Sleep(g.cfg.StartPause); err != nil {
		return
	}
	for idx := range g.quiz.Questions {
		if err := g.runQuestion(idx); err != nil {
			return
		}
	}
	g.finish()
}

// Register adds a participant while registration is open.
func (g *GroupController) Register(ctx context.Context, p domain.Participant) error {
	g.mu.Lock()
	if g.phase != domain.PhaseRegistering {
		g.mu.Unlock()
		return domain.ErrRegistrationClosed
	}
	if _, ok := g.slots[p.ID]; ok {
		g.mu.Unlock()
		return domain.ErrAlreadyRegistered
	}
	g.slots[p.ID] = &groupSlot{participant: p, seq: len(g.order), answered: make(map[string]answerRecord)}
	g.order = append(g.order, p.ID)
	announcement := g.registrationLocked()
	g.mu.Unlock()

	g.logger.Info("participant registered", zap.String("participant_id", p.ID), zap.Int("registered", announcement.Registered))
	g.render.bestEffort(ctx, "registration update", func(ctx context.Context) error {
		return g.deps.Presenter.Announce(ctx, g.cfg.Channel, announcement)
	})
	return nil
}

func (g *GroupController) registrationLocked() domain.Announcement {
	remaining := g.startsAt.Sub(g.deps.Clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return domain.Announcement{
		Kind:         domain.AnnounceRegistration,
		SessionID:    g.cfg.ID,
		QuizID:       g.quiz.ID,
		QuizName:     g.quiz.Name,
		Registered:   len(g.order),
		Remaining:    remaining,
		Participants: g.participantsLocked(),
	}
}

// registration announces the countdown until the start time.
func (g *GroupController) registration() error {
	for {
		g.mu.Lock()
		if g.phase != domain.PhaseRegistering {
			g.mu.Unlock()
			return errGroupStopped
		}
		announcement := g.registrationLocked()
		g.mu.Unlock()

		g.render.bestEffort(g.scope.Context(), "registration countdown", func(ctx context.Context) error {
			return g.deps.Presenter.Announce(ctx, g.cfg.Channel, announcement)
		})

		remaining := announcement.Remaining
		if remaining <= 0 {
			return nil
		}
		step := g.cfg.RegistrationTick
		if step <= 0 || (g.cfg.FinalCountdown > 0 && remaining <= g.cfg.FinalCountdown) {
			step = time.Second
		}
		if step > remaining {
			step = remaining
		}
		if err := g.scope.Sleep(step); err != nil {
			return err
		}
	}
}

// closeRegistration moves to InProgress, or cancels when nobody registered.
func (g *GroupController) closeRegistration() bool {
	g.mu.Lock()
	if g.phase != domain.PhaseRegistering {
		g.mu.Unlock()
		return false
	}
	if len(g.slots) == 0 {
		g.phase = domain.PhaseCancelled
		g.reason = "no participants"
		g.mu.Unlock()

		g.logger.Info("group quiz cancelled, nobody registered")
		g.render.bestEffort(g.base, "cancellation", func(ctx context.Context) error {
			return g.deps.Presenter.Announce(ctx, g.cfg.Channel, domain.Announcement{
				Kind:      domain.AnnounceCancelled,
				SessionID: g.cfg.ID,
				QuizID:    g.quiz.ID,
				QuizName:  g.quiz.Name,
				Message:   "cancelled due to no participants",
			})
		})
		g.close()
		return false
	}
	g.phase = domain.PhaseInProgress
	participants := g.participantsLocked()
	g.mu.Unlock()

	g.logger.Info("group quiz starting", zap.Int("participants", len(participants)))
	g.render.bestEffort(g.scope.Context(), "starting", func(ctx context.Context) error {
		return g.deps.Presenter.Announce(ctx, g.cfg.Channel, domain.Announcement{
			Kind:         domain.AnnounceStarting,
			SessionID:    g.cfg.ID,
			QuizID:       g.quiz.ID,
			QuizName:     g.quiz.Name,
			Registered:   len(participants),
			Participants: participants,
		})
	})
	return true
}

func (g *GroupController) runQuestion(idx int) error {
	g.mu.Lock()
	if g.phase.Terminal() {
		g.mu.Unlock()
		return errGroupStopped
	}
	questionCtx, closeEarly := context.WithCancel(g.scope.Context())
	defer closeEarly()
	g.index = idx
	g.phase = domain.PhaseInProgress
	g.shownAt = g.deps.Clock.Now()
	g.closeEarly = closeEarly
	g.reveal = nil
	deadline := g.shownAt.Add(g.cfg.Window)
	channelView := g.questionViewLocked(nil)
	views := make(map[string]domain.QuestionView, len(g.slots))
	for id, slot := range g.slots {
		views[id] = g.questionViewLocked(slot)
	}
	participants := g.participantsLocked()
	g.mu.Unlock()

	g.announceQuestion(channelView)
	g.fanOut(participants, "question", func(ctx context.Context, p domain.Participant) error {
		return g.deps.Presenter.ShowQuestion(ctx, p, views[p.ID])
	})

	for {
		remaining := deadline.Sub(g.deps.Clock.Now())
		if remaining <= 0 {
			break
		}
		step := g.cfg.CountdownEvery
		if step <= 0 || step > remaining {
			step = remaining
		}
		if err := g.deps.Clock.Sleep(questionCtx, step); err != nil {
			if g.scope.Context().Err() != nil {
				return errGroupStopped
			}
			// everyone answered
			break
		}
		if left := deadline.Sub(g.deps.Clock.Now()); left > 0 {
			channelView.Remaining = left
			g.announceQuestion(channelView)
		}
	}

	g.revealAnswer(idx)
	if err := g.scope.Sleep(g.cfg.RevealPause); err != nil {
		return errGroupStopped
	}
	return nil
}

func (g *GroupController) announceQuestion(view domain.QuestionView) {
	g.render.bestEffort(g.scope.Context(), "question countdown", func(ctx context.Context) error {
		return g.deps.Presenter.Announce(ctx, g.cfg.Channel, domain.Announcement{
			Kind:      domain.AnnounceQuestion,
			SessionID: g.cfg.ID,
			QuizID:    g.quiz.ID,
			QuizName:  g.quiz.Name,
			Remaining: view.Remaining,
			Question:  &view,
		})
	})
}

// SubmitAnswer applies the single-credit rule per participant for the open
// question on the shared clock.
func (g *GroupController) SubmitAnswer(_ context.Context, participantID, questionID, key string) (domain.AnswerResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot, ok := g.slots[participantID]
	if !ok {
		return domain.AnswerResult{Status: domain.AnswerNotYours, QuestionID: questionID}, nil
	}
	tooLate := domain.AnswerResult{Status: domain.AnswerTooLate, QuestionID: questionID, TotalScore: slot.score}
	if _, _, known := g.quiz.Question(questionID); !known {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	if g.phase != domain.PhaseInProgress || g.index < 0 {
		return tooLate, nil
	}
	q := g.quiz.Questions[g.index]
	if q.ID != questionID {
		return tooLate, nil
	}
	if _, seen := slot.answered[q.ID]; seen {
		return tooLate, nil
	}
	if !q.HasOption(key) {
		return domain.AnswerResult{}, domain.ErrOptionNotFound
	}

	now := g.deps.Clock.Now()
	correct, awarded := domain.Award(q, key, now.Sub(g.shownAt), g.cfg.Window)
	slot.answered[q.ID] = answerRecord{key: key, correct: correct, awarded: awarded, at: now}
	slot.score += awarded

	if g.allAnsweredLocked(q.ID) && g.closeEarly != nil {
		g.closeEarly()
	}
	return domain.AnswerResult{
		Status:     domain.AnswerAccepted,
		QuestionID: q.ID,
		Correct:    correct,
		Awarded:    awarded,
		TotalScore: slot.score,
	}, nil
}

func (g *GroupController) allAnsweredLocked(questionID string) bool {
	for _, slot := range g.slots {
		if _, ok := slot.answered[questionID]; !ok {
			return false
		}
	}
	return true
}

// revealAnswer closes question idx: silent participants are scored as
// timeouts, then the correct answer and running tally are broadcast.
func (g *GroupController) revealAnswer(idx int) {
	g.mu.Lock()
	if g.phase.Terminal() || g.index != idx {
		g.mu.Unlock()
		return
	}
	g.phase = domain.PhaseShowingAnswer
	g.closeEarly = nil
	q := g.quiz.Questions[idx]
	now := g.deps.Clock.Now()

	reveal := domain.Reveal{
		QuestionID:  q.ID,
		Index:       idx,
		Total:       len(g.quiz.Questions),
		CorrectKey:  q.CorrectKey,
		CorrectText: q.OptionLabel(q.CorrectKey),
		Explanation: q.Explanation,
		Picks:       make(map[string]int, len(q.Options)),
	}
	for _, opt := range q.Options {
		reveal.Picks[opt.Key] = 0
	}
	feedback := make(map[string]domain.Feedback, len(g.slots))
	for id, slot := range g.slots {
		rec, ok := slot.answered[q.ID]
		if !ok {
			rec = answerRecord{timedOut: true, at: now}
			slot.answered[q.ID] = rec
		} else {
			reveal.AnsweredN++
			reveal.Picks[rec.key]++
			if rec.correct {
				reveal.CorrectN++
			}
		}
		fb := domain.Feedback{
			SessionID:   g.cfg.ID,
			QuestionID:  q.ID,
			Index:       idx,
			Total:       len(g.quiz.Questions),
			TimedOut:    rec.timedOut,
			Correct:     rec.correct,
			ChosenKey:   rec.key,
			CorrectKey:  q.CorrectKey,
			CorrectText: reveal.CorrectText,
			Awarded:     rec.awarded,
			TotalScore:  slot.score,
			Last:        idx+1 >= len(g.quiz.Questions),
		}
		if !rec.correct {
			fb.Explanation = q.Explanation
		}
		feedback[id] = fb
	}
	lb := g.leaderboardLocked()
	reveal.Tally = lb.Entries
	g.reveal = &reveal
	participants := g.participantsLocked()
	g.mu.Unlock()

	g.logger.Debug("answer revealed",
		zap.String("question_id", q.ID), zap.Int("answered", reveal.AnsweredN), zap.Int("correct", reveal.CorrectN))
	g.render.bestEffort(g.scope.Context(), "reveal", func(ctx context.Context) error {
		return g.deps.Presenter.Announce(ctx, g.cfg.Channel, domain.Announcement{
			Kind:       domain.AnnounceReveal,
			SessionID:  g.cfg.ID,
			QuizID:     g.quiz.ID,
			QuizName:   g.quiz.Name,
			Registered: len(participants),
			Reveal:     &reveal,
		})
	})
	g.fanOut(participants, "feedback", func(ctx context.Context, p domain.Participant) error {
		return g.deps.Presenter.ShowFeedback(ctx, p, feedback[p.ID])
	})
	g.publish(g.scope.Context(), lb)
}

func (g *GroupController) finish() {
	g.mu.Lock()
	if g.phase.Terminal() {
		g.mu.Unlock()
		return
	}
	g.phase = domain.PhaseFinished
	lb := g.leaderboardLocked()
	g.leaderboard = &lb
	results := g.resultsLocked()
	participants := g.participantsLocked()
	g.mu.Unlock()

	g.logger.Info("group quiz finished", zap.Int("participants", len(participants)))
	g.render.bestEffort(g.base, "final leaderboard", func(ctx context.Context) error {
		return g.deps.Presenter.Announce(ctx, g.cfg.Channel, domain.Announcement{
			Kind:        domain.AnnounceFinished,
			SessionID:   g.cfg.ID,
			QuizID:      g.quiz.ID,
			QuizName:    g.quiz.Name,
			Registered:  len(participants),
			Leaderboard: &lb,
		})
	})
	g.fanOutCtx(g.base, participants, "result", func(ctx context.Context, p domain.Participant) error {
		return g.deps.Presenter.ShowResult(ctx, p, results[p.ID])
	})
	g.flush(results)
	g.publish(g.base, lb)
	g.close()
}

// Cancel stops the group. Scores gathered after registration closed are
// still flushed; a group cancelled during registration touches no store.
func (g *GroupController) Cancel(reason string) {
	g.mu.Lock()
	if g.phase.Terminal() {
		g.mu.Unlock()
		return
	}
	started := g.phase != domain.PhaseRegistering
	g.phase = domain.PhaseCancelled
	g.reason = reason
	var results map[string]domain.SessionResult
	if started {
		results = g.resultsLocked()
	}
	announcement := domain.Announcement{
		Kind:      domain.AnnounceCancelled,
		SessionID: g.cfg.ID,
		QuizID:    g.cfg.QuizID,
		QuizName:  g.quiz.Name,
		Message:   reason,
	}
	g.mu.Unlock()

	g.scope.Close()
	g.logger.Warn("group quiz cancelled", zap.String("reason", reason))
	g.render.bestEffort(g.base, "cancellation", func(ctx context.Context) error {
		return g.deps.Presenter.Announce(ctx, g.cfg.Channel, announcement)
	})
	if started {
		g.flush(results)
	}
	g.close()
}

// Next is not available in group mode; the shared clock drives progression.
func (g *GroupController) Next(context.Context, string) error {
	return domain.ErrNotAdvanceable
}

func (g *GroupController) close() {
	g.scope.Close()
	g.doneOnce.Do(func() {
		close(g.done)
		if g.deps.OnDone != nil {
			g.deps.OnDone(g)
		}
	})
}

func (g *GroupController) flush(results map[string]domain.SessionResult) {
	var eg errgroup.Group
	eg.SetLimit(g.cfg.BroadcastLimit)
	for _, result := range results {
		rec := domain.ScoreRecord{
			ParticipantID: result.Participant.ID,
			DisplayName:   result.Participant.DisplayName,
			QuizID:        g.cfg.QuizID,
			Score:         result.Score,
		}
		eg.Go(func() error {
			if err := g.deps.Recorder.Record(g.base, rec); err != nil {
				g.logger.Error("group score not stored", zap.String("participant_id", rec.ParticipantID), zap.Error(err))
			}
			return nil
		})
	}
	_ = eg.Wait()
}

func (g *GroupController) publish(ctx context.Context, lb domain.Leaderboard) {
	if g.deps.Leaderboards == nil {
		return
	}
	if err := g.deps.Leaderboards.PublishLeaderboard(ctx, lb); err != nil {
		g.logger.Warn("leaderboard publish failed", zap.Error(err))
	}
}

func (g *GroupController) fanOut(participants []domain.Participant, op string, fn func(ctx context.Context, p domain.Participant) error) {
	g.fanOutCtx(g.scope.Context(), participants, op, fn)
}

// fanOutCtx renders to every participant concurrently. A participant whose
// surface keeps failing is only logged; they can recover their view later.
func (g *GroupController) fanOutCtx(ctx context.Context, participants []domain.Participant, op string, fn func(ctx context.Context, p domain.Participant) error) {
	var eg errgroup.Group
	eg.SetLimit(g.cfg.BroadcastLimit)
	for _, p := range participants {
		eg.Go(func() error {
			err := g.deps.Retry.Do(ctx, func(ctx context.Context) error {
				err := fn(ctx, p)
				var pe *domain.PresentationError
				if errors.As(err, &pe) && pe.Permanent {
					return retry.Permanent(err)
				}
				return err
			}, nil)
			if err != nil {
				g.logger.Warn("participant render failed",
					zap.String("op", op), zap.String("participant_id", p.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// Snapshot rebuilds the participant's view for the current phase. It is a
// presentation replay and never scores.
func (g *GroupController) Snapshot(participantID string) (domain.SessionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	slot, ok := g.slots[participantID]
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrParticipantNotFound
	}
	snap := domain.SessionSnapshot{
		SessionID:     g.cfg.ID,
		QuizID:        g.cfg.QuizID,
		ParticipantID: participantID,
		Group:         true,
		Phase:         g.phase,
		Score:         slot.score,
		Registered:    len(g.order),
	}
	switch g.phase {
	case domain.PhaseRegistering:
		if startsIn := g.startsAt.Sub(g.deps.Clock.Now()); startsIn > 0 {
			snap.StartsIn = startsIn
		}
	case domain.PhaseInProgress, domain.PhaseShowingAnswer:
		if g.index >= 0 {
			view := g.questionViewLocked(slot)
			snap.Question = &view
			snap.Answered = view.Answered
			snap.ChosenKey = view.ChosenKey
		}
		if g.phase == domain.PhaseShowingAnswer && g.reveal != nil {
			reveal := *g.reveal
			snap.Reveal = &reveal
		}
	case domain.PhaseFinished, domain.PhaseCancelled:
		lb := g.leaderboardLocked()
		snap.Leaderboard = &lb
		result := g.resultLocked(slot)
		snap.Result = &result
	}
	return snap, nil
}

// Leaderboard returns the current standings.
func (g *GroupController) Leaderboard() domain.Leaderboard {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leaderboardLocked()
}

func (g *GroupController) questionViewLocked(slot *groupSlot) domain.QuestionView {
	q := g.quiz.Questions[g.index]
	remaining := g.cfg.Window - g.deps.Clock.Now().Sub(g.shownAt)
	if remaining < 0 || g.phase != domain.PhaseInProgress {
		remaining = 0
	}
	view := domain.QuestionView{
		SessionID:  g.cfg.ID,
		QuizID:     g.quiz.ID,
		QuizName:   g.quiz.Name,
		QuestionID: q.ID,
		Index:      g.index,
		Total:      len(g.quiz.Questions),
		Text:       q.Text,
		Options:    q.Options,
		MaxScore:   q.MaxScore,
		Window:     g.cfg.Window,
		Remaining:  remaining,
	}
	if slot != nil {
		view.ParticipantID = slot.participant.ID
		if rec, ok := slot.answered[q.ID]; ok && !rec.timedOut {
			view.Answered = true
			view.ChosenKey = rec.key
		}
	}
	return view
}

// leaderboardLocked sorts by score descending, ties by registration order.
func (g *GroupController) leaderboardLocked() domain.Leaderboard {
	slots := make([]*groupSlot, 0, len(g.slots))
	for _, slot := range g.slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].score != slots[j].score {
			return slots[i].score > slots[j].score
		}
		return slots[i].seq < slots[j].seq
	})
	entries := make([]domain.LeaderboardEntry, len(slots))
	for i, slot := range slots {
		entries[i] = domain.LeaderboardEntry{
			Rank:          i + 1,
			ParticipantID: slot.participant.ID,
			DisplayName:   slot.participant.DisplayName,
			Score:         slot.score,
		}
	}
	return domain.Leaderboard{
		SessionID: g.cfg.ID,
		QuizID:    g.cfg.QuizID,
		Entries:   entries,
		UpdatedAt: g.deps.Clock.Now(),
	}
}

func (g *GroupController) resultsLocked() map[string]domain.SessionResult {
	results := make(map[string]domain.SessionResult, len(g.slots))
	for id, slot := range g.slots {
		results[id] = g.resultLocked(slot)
	}
	return results
}

func (g *GroupController) resultLocked(slot *groupSlot) domain.SessionResult {
	answered, correct := 0, 0
	for _, rec := range slot.answered {
		if rec.timedOut {
			continue
		}
		answered++
		if rec.correct {
			correct++
		}
	}
	status := domain.StatusCompleted
	if g.phase == domain.PhaseCancelled {
		status = domain.StatusAborted
	}
	return domain.SessionResult{
		SessionID:   g.cfg.ID,
		Participant: slot.participant,
		QuizID:      g.cfg.QuizID,
		QuizName:    g.quiz.Name,
		Score:       slot.score,
		MaxScore:    g.quiz.MaxTotal(),
		Answered:    answered,
		Correct:     correct,
		Total:       len(g.quiz.Questions),
		Status:      status,
		Reason:      g.reason,
	}
}

func (g *GroupController) participantsLocked() []domain.Participant {
	out := make([]domain.Participant, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.slots[id].participant)
	}
	return out
}
