package telegram

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"trivia-engine/internal/domain"
)

// BotAPI is the subset of *tgbotapi.BotAPI the adapter calls.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// target is a private chat or channel id, or a public @channel name.
type target struct {
	chatID   int64
	username string
}

func parseTarget(raw string) (target, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "@") && len(raw) > 1 {
		return target{username: raw}, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return target{}, false
	}
	return target{chatID: id}, true
}

func (t target) String() string {
	if t.username != "" {
		return t.username
	}
	return strconv.FormatInt(t.chatID, 10)
}

// messageKey identifies a message that later output edits in place.
type messageKey struct {
	chat    string
	session string
	slot    string
}

// Presenter renders engine output as Telegram messages with inline keyboards.
// Participants and channels whose ids are not Telegram chat ids are skipped.
type Presenter struct {
	bot     BotAPI
	handles *Handles
	logger  *zap.Logger

	mu       sync.Mutex
	messages map[messageKey]int
}

func NewPresenter(bot BotAPI, handles *Handles, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{
		bot:      bot,
		handles:  handles,
		logger:   logger,
		messages: make(map[messageKey]int),
	}
}

func (p *Presenter) ShowQuestion(_ context.Context, to domain.Participant, view domain.QuestionView) error {
	t, ok := parseTarget(to.ID)
	if !ok {
		return nil
	}
	markup, err := p.answerKeyboard(view)
	if err != nil {
		return &domain.PresentationError{Op: "question", Err: err, Permanent: true}
	}
	key := messageKey{chat: t.String(), session: view.SessionID, slot: "question"}
	return p.send("question", t, key, questionText(view), markup)
}

func (p *Presenter) ShowFeedback(_ context.Context, to domain.Participant, fb domain.Feedback) error {
	t, ok := parseTarget(to.ID)
	if !ok {
		return nil
	}
	var markup *tgbotapi.InlineKeyboardMarkup
	if fb.CanAdvance {
		data, err := Callback{Action: ActionNext, Handle: p.handles.Alias(fb.SessionID)}.Encode()
		if err == nil {
			kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Next question", data),
			))
			markup = &kb
		}
	}
	key := messageKey{chat: t.String(), session: fb.SessionID, slot: "question"}
	return p.edit("feedback", t, key, feedbackText(fb), markup)
}

func (p *Presenter) ShowResult(_ context.Context, to domain.Participant, result domain.SessionResult) error {
	t, ok := parseTarget(to.ID)
	if !ok {
		return nil
	}
	err := p.send("result", t, messageKey{}, resultText(result), nil)
	p.forget(t.String(), result.SessionID)
	return err
}

func (p *Presenter) ShowSnapshot(_ context.Context, to domain.Participant, snap domain.SessionSnapshot) error {
	t, ok := parseTarget(to.ID)
	if !ok {
		return nil
	}
	var markup *tgbotapi.InlineKeyboardMarkup
	if snap.Question != nil && !snap.Answered {
		kb, err := p.answerKeyboard(*snap.Question)
		if err != nil {
			return &domain.PresentationError{Op: "snapshot", Err: err, Permanent: true}
		}
		markup = kb
	}
	key := messageKey{chat: t.String(), session: snap.SessionID, slot: "question"}
	return p.send("snapshot", t, key, snapshotText(snap), markup)
}

func (p *Presenter) Notify(_ context.Context, to domain.Participant, text string) error {
	t, ok := parseTarget(to.ID)
	if !ok {
		return nil
	}
	return p.send("notify", t, messageKey{}, text, nil)
}

// Announce posts channel-level output. Registration countdowns and question
// countdowns edit the message they started with.
func (p *Presenter) Announce(_ context.Context, channel string, a domain.Announcement) error {
	t, ok := parseTarget(channel)
	if !ok {
		return nil
	}
	text := announcementText(a)
	switch a.Kind {
	case domain.AnnounceRegistration:
		data, err := Callback{Action: ActionRegister, Handle: p.handles.Alias(a.SessionID)}.Encode()
		if err != nil {
			return &domain.PresentationError{Op: "announce", Err: err, Permanent: true}
		}
		kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Join", data),
		))
		return p.edit("announce", t, messageKey{chat: t.String(), session: a.SessionID, slot: "registration"}, text, &kb)
	case domain.AnnounceQuestion:
		if a.Question == nil {
			break
		}
		kb, err := p.answerKeyboard(*a.Question)
		if err != nil {
			return &domain.PresentationError{Op: "announce", Err: err, Permanent: true}
		}
		key := messageKey{chat: t.String(), session: a.SessionID, slot: "question:" + a.Question.QuestionID}
		return p.edit("announce", t, key, text, kb)
	case domain.AnnounceFinished, domain.AnnounceCancelled:
		err := p.send("announce", t, messageKey{}, text, nil)
		p.forget(t.String(), a.SessionID)
		p.handles.Forget(a.SessionID)
		return err
	}
	return p.send("announce", t, messageKey{}, text, nil)
}

func (p *Presenter) answerKeyboard(view domain.QuestionView) (*tgbotapi.InlineKeyboardMarkup, error) {
	alias := p.handles.Alias(view.SessionID)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(view.Options))
	for _, opt := range view.Options {
		data, err := Callback{Action: ActionAnswer, Handle: alias, QuestionID: view.QuestionID, Key: opt.Key}.Encode()
		if err != nil {
			return nil, err
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Key+". "+opt.Label, data),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb, nil
}

// send posts a new message and remembers it under key when key is set.
func (p *Presenter) send(op string, t target, key messageKey, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	var msg tgbotapi.MessageConfig
	if t.username != "" {
		msg = tgbotapi.NewMessageToChannel(t.username, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := p.bot.Send(msg)
	if err != nil {
		return classifyError(op, err)
	}
	if key != (messageKey{}) {
		p.mu.Lock()
		p.messages[key] = sent.MessageID
		p.mu.Unlock()
	}
	return nil
}

// edit rewrites the remembered message for key, or sends a new one when
// there is none or it can no longer be edited.
func (p *Presenter) edit(op string, t target, key messageKey, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	p.mu.Lock()
	id, ok := p.messages[key]
	p.mu.Unlock()
	if !ok {
		return p.send(op, t, key, text, markup)
	}

	cfg := tgbotapi.EditMessageTextConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:          t.chatID,
			ChannelUsername: t.username,
			MessageID:       id,
			ReplyMarkup:     markup,
		},
		Text: text,
	}
	_, err := p.bot.Send(cfg)
	switch {
	case err == nil, isNotModified(err):
		return nil
	case isEditGone(err):
		p.logger.Debug("message not editable, sending a new one", zap.String("op", op), zap.String("chat", t.String()))
		return p.send(op, t, key, text, markup)
	}
	return classifyError(op, err)
}

func (p *Presenter) forget(chat, sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.messages {
		if key.chat == chat && key.session == sessionID {
			delete(p.messages, key)
		}
	}
}

type rateLimitError struct {
	err   error
	after time.Duration
}

func (e *rateLimitError) Error() string             { return e.err.Error() }
func (e *rateLimitError) Unwrap() error             { return e.err }
func (e *rateLimitError) RetryAfter() time.Duration { return e.after }

// classifyError maps Bot API failures onto presentation errors: flood
// control carries its retry hint, client errors are permanent.
func classifyError(op string, err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return &domain.PresentationError{Op: op, Err: err}
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0:
		return &domain.PresentationError{Op: op, Err: &rateLimitError{
			err:   err,
			after: time.Duration(apiErr.RetryAfter) * time.Second,
		}}
	case apiErr.Code == http.StatusForbidden, apiErr.Code == http.StatusBadRequest:
		return &domain.PresentationError{Op: op, Err: err, Permanent: true}
	}
	return &domain.PresentationError{Op: op, Err: err}
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}

func isEditGone(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
		return false
	}
	return strings.Contains(apiErr.Message, "message to edit not found") ||
		strings.Contains(apiErr.Message, "message can't be edited")
}
