package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

// Engine is the slice of the quiz engine the transports drive.
type Engine interface {
	StartSolo(ctx context.Context, p domain.Participant, quizID string, timerSeconds int) (app.Ticket, error)
	StartGroup(ctx context.Context, req app.GroupRequest) (*app.GroupController, error)
	Register(ctx context.Context, sessionID string, p domain.Participant) error
	SubmitAnswer(ctx context.Context, cmd app.AnswerCommand) (domain.AnswerResult, error)
	Next(ctx context.Context, sessionID, participantID string) error
	Recover(ctx context.Context, sessionID string, p domain.Participant) (domain.SessionSnapshot, error)
	Snapshot(sessionID, participantID string) (domain.SessionSnapshot, error)
	ActiveSession(participantID string) (string, bool)
	LeaveQueue(participantID string) bool
	QueuePosition(participantID string) int
	QueueStats() app.QueueStats
}

type WSHandler struct {
	engine   Engine
	hub      *Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(engine Engine, hub *Hub, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		engine: engine,
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startSoloPayload struct {
	QuizID string `json:"quizId"`
	Timer  int    `json:"timer"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type answerPayload struct {
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
	Key        string `json:"key"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the engine.
// Query: userId and name identify the participant, channel subscribes to
// group announcements.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" || displayName == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{
		participant: domain.Participant{ID: userID, DisplayName: displayName},
		channel:     r.URL.Query().Get("channel"),
		send:        make(chan outboundMessage, 32),
	}
	h.hub.attach(c)

	writerDone := make(chan struct{})
	stopWriter := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-c.send:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Debug("ws write error", zap.String("participant_id", userID), zap.Error(err))
					return
				}
			case <-stopWriter:
				return
			}
		}
	}()

	ctx := r.Context()
	h.reply(c, MsgNotice, map[string]any{"message": "connected", "queue": h.engine.QueueStats()})
	if id, ok := h.engine.ActiveSession(userID); ok {
		if _, err := h.engine.Recover(ctx, id, c.participant); err != nil {
			h.logger.Debug("reconnect recovery failed", zap.String("session_id", id), zap.Error(err))
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(ctx, c, inbound)
	}

	h.hub.detach(c)
	close(stopWriter)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *client, inbound inboundMessage) {
	p := c.participant
	switch inbound.Type {
	case "start_solo":
		var payload startSoloPayload
		if !h.decode(c, inbound.Payload, &payload) {
			return
		}
		ticket, err := h.engine.StartSolo(ctx, p, payload.QuizID, payload.Timer)
		if err != nil {
			h.fail(c, err)
			return
		}
		h.reply(c, MsgTicket, ticket)
	case "register":
		var payload sessionPayload
		if !h.decode(c, inbound.Payload, &payload) {
			return
		}
		if err := h.engine.Register(ctx, payload.SessionID, p); err != nil {
			h.fail(c, err)
			return
		}
		h.reply(c, MsgNotice, map[string]string{"message": "registered", "sessionId": payload.SessionID})
	case "answer":
		var payload answerPayload
		if !h.decode(c, inbound.Payload, &payload) {
			return
		}
		res, err := h.engine.SubmitAnswer(ctx, app.AnswerCommand{
			SessionID:     payload.SessionID,
			ParticipantID: p.ID,
			QuestionID:    payload.QuestionID,
			Key:           payload.Key,
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		h.reply(c, MsgAnswerResult, res)
	case "next":
		var payload sessionPayload
		if !h.decode(c, inbound.Payload, &payload) {
			return
		}
		if err := h.engine.Next(ctx, payload.SessionID, p.ID); err != nil {
			h.fail(c, err)
		}
	case "recover":
		var payload sessionPayload
		if !h.decode(c, inbound.Payload, &payload) {
			return
		}
		if payload.SessionID == "" {
			payload.SessionID, _ = h.engine.ActiveSession(p.ID)
		}
		if _, err := h.engine.Recover(ctx, payload.SessionID, p); err != nil {
			h.fail(c, err)
		}
	case "leave_queue":
		h.reply(c, MsgNotice, map[string]any{"message": "left queue", "removed": h.engine.LeaveQueue(p.ID)})
	default:
		h.reply(c, MsgError, errorPayload{Message: "unsupported message type"})
	}
}

func (h *WSHandler) decode(c *client, raw json.RawMessage, into any) bool {
	if err := json.Unmarshal(raw, into); err != nil {
		h.reply(c, MsgError, errorPayload{Message: "invalid payload"})
		return false
	}
	return true
}

func (h *WSHandler) fail(c *client, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("ws command failed", zap.String("participant_id", c.participant.ID), zap.Error(err))
	}
	h.reply(c, MsgError, errorPayload{Message: err.Error(), Code: code})
}

func (h *WSHandler) reply(c *client, typ string, payload any) {
	select {
	case c.send <- outboundMessage{Type: typ, Payload: payload}:
	default:
		h.logger.Warn("ws reply dropped", zap.String("participant_id", c.participant.ID), zap.String("type", typ))
	}
}
