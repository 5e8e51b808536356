package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

// Engine is the slice of the quiz engine driven from chat commands and
// button presses.
type Engine interface {
	StartSolo(ctx context.Context, p domain.Participant, quizID string, timerSeconds int) (app.Ticket, error)
	StartGroup(ctx context.Context, req app.GroupRequest) (*app.GroupController, error)
	Register(ctx context.Context, sessionID string, p domain.Participant) error
	SubmitAnswer(ctx context.Context, cmd app.AnswerCommand) (domain.AnswerResult, error)
	Next(ctx context.Context, sessionID, participantID string) error
	Recover(ctx context.Context, sessionID string, p domain.Participant) (domain.SessionSnapshot, error)
	ActiveSession(participantID string) (string, bool)
	LeaveQueue(participantID string) bool
}

const helpText = `Commands:
/quiz <quizId> [seconds] - take a quiz on your own
/schedule <quizId> <registrationSeconds> [seconds] - run a quiz for this group
/recover - show your current question again
/leave - leave the quiz queue`

// Dispatcher turns Telegram updates into engine commands. Updates from the
// same user are handled in order by one worker.
type Dispatcher struct {
	engine  Engine
	bot     BotAPI
	handles *Handles
	logger  *zap.Logger
	workers int
}

func NewDispatcher(engine Engine, bot BotAPI, handles *Handles, workers int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{engine: engine, bot: bot, handles: handles, logger: logger, workers: workers}
}

// Run consumes updates until ctx ends or the channel closes.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	queues := make([]chan tgbotapi.Update, d.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan tgbotapi.Update, 100)
		wg.Add(1)
		go func(in <-chan tgbotapi.Update) {
			defer wg.Done()
			for update := range in {
				d.Handle(ctx, update)
			}
		}(queues[i])
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			userID := updateUserID(update)
			if userID < 0 {
				userID = -userID
			}
			select {
			case queues[userID%int64(len(queues))] <- update:
			case <-ctx.Done():
				return
			}
		}
	}
}

func updateUserID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

// Handle processes a single update.
func (d *Dispatcher) Handle(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling update", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()
	switch {
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		d.handleCommand(ctx, update.Message)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	p := participantFrom(msg.From)
	args := strings.Fields(msg.CommandArguments())
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		d.reply(chatID, helpText)
	case "quiz":
		if len(args) < 1 {
			d.reply(chatID, "Usage: /quiz <quizId> [seconds]")
			return
		}
		timer := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				d.reply(chatID, "The timer must be a number of seconds.")
				return
			}
			timer = n
		}
		ticket, err := d.engine.StartSolo(ctx, p, args[0], timer)
		switch {
		case err != nil:
			d.reply(chatID, d.errorText(err))
		case ticket.Admitted:
			d.reply(chatID, fmt.Sprintf("Starting quiz %s. Good luck, %s!", args[0], p.DisplayName))
		default:
			d.reply(chatID, fmt.Sprintf("You've been added to the quiz queue. Position: %d", ticket.Position))
		}
	case "schedule":
		if msg.Chat.IsPrivate() {
			d.reply(chatID, "Group quizzes can only be scheduled in a group chat.")
			return
		}
		if len(args) < 2 {
			d.reply(chatID, "Usage: /schedule <quizId> <registrationSeconds> [seconds]")
			return
		}
		registration, err := strconv.Atoi(args[1])
		if err != nil || registration <= 0 {
			d.reply(chatID, "Registration must be a positive number of seconds.")
			return
		}
		timer := 0
		if len(args) > 2 {
			if timer, err = strconv.Atoi(args[2]); err != nil {
				d.reply(chatID, "The timer must be a number of seconds.")
				return
			}
		}
		g, err := d.engine.StartGroup(ctx, app.GroupRequest{
			Channel:      strconv.FormatInt(chatID, 10),
			QuizID:       args[0],
			Registration: time.Duration(registration) * time.Second,
			TimerSeconds: timer,
		})
		if err != nil {
			d.reply(chatID, d.errorText(err))
			return
		}
		d.logger.Info("group quiz scheduled",
			zap.String("session_id", g.ID()), zap.String("quiz_id", g.QuizID()), zap.Int64("chat_id", chatID))
	case "recover":
		id, ok := d.engine.ActiveSession(p.ID)
		if !ok {
			d.reply(chatID, "You have no active quiz.")
			return
		}
		if _, err := d.engine.Recover(ctx, id, p); err != nil {
			d.reply(chatID, d.errorText(err))
		}
	case "leave":
		if d.engine.LeaveQueue(p.ID) {
			d.reply(chatID, "You left the quiz queue.")
		} else {
			d.reply(chatID, "You are not in the quiz queue.")
		}
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	cb, err := ParseCallback(q.Data)
	if err != nil {
		d.toast(q.ID, "This button is no longer valid.")
		return
	}
	sessionID, ok := d.handles.Resolve(cb.Handle)
	if !ok {
		d.toast(q.ID, "This quiz has ended.")
		return
	}
	p := participantFrom(q.From)

	switch cb.Action {
	case ActionAnswer:
		res, err := d.engine.SubmitAnswer(ctx, app.AnswerCommand{
			SessionID:     sessionID,
			ParticipantID: p.ID,
			QuestionID:    cb.QuestionID,
			Key:           cb.Key,
		})
		if err != nil {
			d.toast(q.ID, d.errorText(err))
			return
		}
		d.toast(q.ID, answerText(res.Status))
	case ActionNext:
		if err := d.engine.Next(ctx, sessionID, p.ID); err != nil {
			d.toast(q.ID, d.errorText(err))
			return
		}
		d.toast(q.ID, "")
	case ActionRegister:
		if err := d.engine.Register(ctx, sessionID, p); err != nil {
			d.toast(q.ID, d.errorText(err))
			return
		}
		d.toast(q.ID, "You're registered!")
	case ActionRecover:
		if _, err := d.engine.Recover(ctx, sessionID, p); err != nil {
			d.toast(q.ID, d.errorText(err))
			return
		}
		d.toast(q.ID, "")
	}
}

func answerText(status domain.AnswerStatus) string {
	switch status {
	case domain.AnswerAccepted:
		return "Answer recorded."
	case domain.AnswerTooLate:
		return "Too late for this question."
	case domain.AnswerNotYours:
		return "This quiz belongs to someone else."
	}
	return ""
}

// errorText turns engine errors into user-facing text. Unexpected errors are
// logged and reported generically.
func (d *Dispatcher) errorText(err error) string {
	var admission *domain.AdmissionError
	switch {
	case errors.As(err, &admission):
		return admission.Error()
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return "You are already registered."
	case errors.Is(err, domain.ErrRegistrationClosed):
		return "Registration is closed."
	case errors.Is(err, domain.ErrNotAdvanceable):
		return "This quiz moves on by itself."
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrParticipantNotFound):
		return "This quiz has ended."
	case errors.Is(err, domain.ErrQuizNotFound):
		return "Quiz not found."
	case errors.Is(err, domain.ErrQuestionNotFound), errors.Is(err, domain.ErrOptionNotFound):
		return "This button is no longer valid."
	}
	d.logger.Error("telegram command failed", zap.Error(err))
	return "Something went wrong, please try again."
}

func (d *Dispatcher) reply(chatID int64, text string) {
	if _, err := d.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		d.logger.Warn("reply not delivered", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (d *Dispatcher) toast(queryID, text string) {
	if _, err := d.bot.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		d.logger.Debug("callback answer not delivered", zap.Error(err))
	}
}

func participantFrom(u *tgbotapi.User) domain.Participant {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	if name == "" {
		name = fmt.Sprintf("User-%d", u.ID)
	}
	return domain.Participant{ID: strconv.FormatInt(u.ID, 10), DisplayName: name}
}
