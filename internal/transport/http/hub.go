package http

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"trivia-engine/internal/domain"
)

// Outbound message types pushed to websocket clients.
const (
	MsgQuestion     = "question"
	MsgFeedback     = "feedback"
	MsgResult       = "result"
	MsgAnnouncement = "announcement"
	MsgNotice       = "notice"
	MsgSnapshot     = "snapshot"
	MsgAnswerResult = "answerResult"
	MsgTicket       = "ticket"
	MsgGroup        = "group"
	MsgError        = "error"
)

var errSlowClient = errors.New("websocket client send buffer full")

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	participant domain.Participant
	channel     string
	send        chan outboundMessage
}

// Hub tracks connected websocket clients and renders engine output to them.
// It implements app.Presenter; output for participants that are not
// connected is dropped and can be replayed through recovery.
type Hub struct {
	logger *zap.Logger

	mu       sync.RWMutex
	clients  map[string]*client
	channels map[string]map[*client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:   logger,
		clients:  make(map[string]*client),
		channels: make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) attach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.clients[c.participant.ID]; ok {
		h.detachLocked(prev)
	}
	h.clients[c.participant.ID] = c
	if c.channel != "" {
		if h.channels[c.channel] == nil {
			h.channels[c.channel] = make(map[*client]struct{})
		}
		h.channels[c.channel][c] = struct{}{}
	}
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c)
}

func (h *Hub) detachLocked(c *client) {
	if h.clients[c.participant.ID] == c {
		delete(h.clients, c.participant.ID)
	}
	if members, ok := h.channels[c.channel]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, c.channel)
		}
	}
}

// Connected reports whether the participant has a live socket.
func (h *Hub) Connected(participantID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[participantID]
	return ok
}

func (h *Hub) push(participantID, op, typ string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[participantID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("participant offline, dropping", zap.String("participant_id", participantID), zap.String("type", typ))
		return nil
	}
	select {
	case c.send <- outboundMessage{Type: typ, Payload: payload}:
		return nil
	default:
		return &domain.PresentationError{Op: op, Err: errSlowClient}
	}
}

func (h *Hub) ShowQuestion(_ context.Context, to domain.Participant, view domain.QuestionView) error {
	return h.push(to.ID, "question", MsgQuestion, view)
}

func (h *Hub) ShowFeedback(_ context.Context, to domain.Participant, fb domain.Feedback) error {
	return h.push(to.ID, "feedback", MsgFeedback, fb)
}

func (h *Hub) ShowResult(_ context.Context, to domain.Participant, result domain.SessionResult) error {
	return h.push(to.ID, "result", MsgResult, result)
}

func (h *Hub) ShowSnapshot(_ context.Context, to domain.Participant, snap domain.SessionSnapshot) error {
	return h.push(to.ID, "snapshot", MsgSnapshot, snap)
}

func (h *Hub) Notify(_ context.Context, to domain.Participant, text string) error {
	return h.push(to.ID, "notify", MsgNotice, map[string]string{"message": text})
}

// Announce broadcasts to every client subscribed to the channel. Slow
// clients miss the message instead of blocking the others.
func (h *Hub) Announce(_ context.Context, channel string, a domain.Announcement) error {
	h.mu.RLock()
	members := make([]*client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	msg := outboundMessage{Type: MsgAnnouncement, Payload: a}
	for _, c := range members {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("announcement dropped for slow client",
				zap.String("channel", channel), zap.String("participant_id", c.participant.ID))
		}
	}
	return nil
}
