package telegram

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

type fakeEngine struct {
	soloQuiz  string
	soloTimer int
	soloErr   error
	ticket    app.Ticket
	answers   []app.AnswerCommand
	result    domain.AnswerResult
	registers []string
	left      bool
}

func (e *fakeEngine) StartSolo(_ context.Context, _ domain.Participant, quizID string, timer int) (app.Ticket, error) {
	e.soloQuiz, e.soloTimer = quizID, timer
	return e.ticket, e.soloErr
}

func (e *fakeEngine) StartGroup(context.Context, app.GroupRequest) (*app.GroupController, error) {
	return nil, domain.ErrQuizNotFound
}

func (e *fakeEngine) Register(_ context.Context, sessionID string, p domain.Participant) error {
	for _, id := range e.registers {
		if id == p.ID {
			return domain.ErrAlreadyRegistered
		}
	}
	e.registers = append(e.registers, p.ID)
	return nil
}

func (e *fakeEngine) SubmitAnswer(_ context.Context, cmd app.AnswerCommand) (domain.AnswerResult, error) {
	e.answers = append(e.answers, cmd)
	return e.result, nil
}

func (e *fakeEngine) Next(context.Context, string, string) error { return domain.ErrNotAdvanceable }

func (e *fakeEngine) Recover(context.Context, string, domain.Participant) (domain.SessionSnapshot, error) {
	return domain.SessionSnapshot{}, nil
}

func (e *fakeEngine) ActiveSession(string) (string, bool) { return "", false }
func (e *fakeEngine) LeaveQueue(string) bool              { return e.left }

func command(chatType, text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 42, FirstName: "Alice"},
		Chat:     &tgbotapi.Chat{ID: 42, Type: chatType},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func press(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: 42, FirstName: "Alice"},
		Data: data,
	}}
}

func lastText(t *testing.T, bot *fakeBot) string {
	t.Helper()
	sent := bot.all()
	if len(sent) == 0 {
		t.Fatalf("expected a reply")
	}
	msg, ok := sent[len(sent)-1].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected a text message, got %#v", sent[len(sent)-1])
	}
	return msg.Text
}

func lastToast(t *testing.T, bot *fakeBot) string {
	t.Helper()
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if len(bot.requests) == 0 {
		t.Fatalf("expected a callback answer")
	}
	cb, ok := bot.requests[len(bot.requests)-1].(tgbotapi.CallbackConfig)
	if !ok {
		t.Fatalf("expected callback config, got %#v", bot.requests[len(bot.requests)-1])
	}
	return cb.Text
}

func TestDispatcherQuizCommand(t *testing.T) {
	bot := &fakeBot{}
	engine := &fakeEngine{ticket: app.Ticket{Position: 2}}
	d := NewDispatcher(engine, bot, NewHandles(), 1, nil)
	ctx := context.Background()

	d.Handle(ctx, command("private", "/quiz quiz-1 15"))
	if engine.soloQuiz != "quiz-1" || engine.soloTimer != 15 {
		t.Fatalf("unexpected start args %q %d", engine.soloQuiz, engine.soloTimer)
	}
	if got := lastText(t, bot); !strings.Contains(got, "Position: 2") {
		t.Fatalf("expected queue position reply, got %q", got)
	}

	engine.soloErr = &domain.AdmissionError{Reason: domain.AdmissionAlreadyTaken}
	d.Handle(ctx, command("private", "/quiz quiz-1"))
	if got := lastText(t, bot); got != engine.soloErr.Error() {
		t.Fatalf("expected admission text, got %q", got)
	}

	d.Handle(ctx, command("private", "/quiz"))
	if got := lastText(t, bot); !strings.HasPrefix(got, "Usage") {
		t.Fatalf("expected usage, got %q", got)
	}

	d.Handle(ctx, command("private", "/schedule quiz-1 30"))
	if got := lastText(t, bot); !strings.Contains(got, "group chat") {
		t.Fatalf("expected group-only reply, got %q", got)
	}

	d.Handle(ctx, command("group", "/schedule quiz-1 30"))
	if got := lastText(t, bot); got != "Quiz not found." {
		t.Fatalf("expected not found reply, got %q", got)
	}
}

func TestDispatcherCallbacks(t *testing.T) {
	bot := &fakeBot{}
	engine := &fakeEngine{result: domain.AnswerResult{Status: domain.AnswerTooLate}}
	handles := NewHandles()
	d := NewDispatcher(engine, bot, handles, 1, nil)
	ctx := context.Background()
	alias := handles.Alias("session-1")

	data, _ := Callback{Action: ActionAnswer, Handle: alias, QuestionID: "q1", Key: "B"}.Encode()
	d.Handle(ctx, press(data))
	if len(engine.answers) != 1 {
		t.Fatalf("expected one answer, got %d", len(engine.answers))
	}
	want := app.AnswerCommand{SessionID: "session-1", ParticipantID: "42", QuestionID: "q1", Key: "B"}
	if engine.answers[0] != want {
		t.Fatalf("unexpected command %+v", engine.answers[0])
	}
	if got := lastToast(t, bot); got != "Too late for this question." {
		t.Fatalf("unexpected toast %q", got)
	}

	reg, _ := Callback{Action: ActionRegister, Handle: alias}.Encode()
	d.Handle(ctx, press(reg))
	d.Handle(ctx, press(reg))
	if got := lastToast(t, bot); got != "You are already registered." {
		t.Fatalf("unexpected toast %q", got)
	}

	next, _ := Callback{Action: ActionNext, Handle: alias}.Encode()
	d.Handle(ctx, press(next))
	if got := lastToast(t, bot); got != "This quiz moves on by itself." {
		t.Fatalf("unexpected toast %q", got)
	}

	d.Handle(ctx, press("a:unknown:q1:B"))
	if got := lastToast(t, bot); got != "This quiz has ended." {
		t.Fatalf("unexpected toast %q", got)
	}
	d.Handle(ctx, press("garbage"))
	if got := lastToast(t, bot); got != "This button is no longer valid." {
		t.Fatalf("unexpected toast %q", got)
	}
	if len(engine.answers) != 1 {
		t.Fatalf("invalid presses must not reach the engine")
	}
}

func TestDispatcherRunRoutesUpdates(t *testing.T) {
	bot := &fakeBot{}
	engine := &fakeEngine{left: true}
	d := NewDispatcher(engine, bot, NewHandles(), 3, nil)

	updates := make(chan tgbotapi.Update, 2)
	updates <- command("private", "/leave")
	updates <- command("private", "/help")
	close(updates)
	d.Run(context.Background(), updates)

	sent := bot.all()
	if len(sent) != 2 {
		t.Fatalf("expected two replies, got %d", len(sent))
	}
	if got := sent[0].(tgbotapi.MessageConfig).Text; got != "You left the quiz queue." {
		t.Fatalf("expected in-order handling, got %q", got)
	}
}
