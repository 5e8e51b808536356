package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"trivia-engine/internal/app"
	"trivia-engine/internal/domain"
)

// LiveBoard reads published group tallies.
type LiveBoard interface {
	Latest(ctx context.Context, sessionID string) (domain.Leaderboard, error)
	Rank(ctx context.Context, sessionID, participantID string) (int64, error)
}

// RouterDeps holds what the REST and websocket surfaces need. Live is optional.
type RouterDeps struct {
	Engine Engine
	Hub    *Hub
	Scores app.ScoreBoard
	Live   LiveBoard
	Logger *zap.Logger
}

type api struct {
	engine Engine
	scores app.ScoreBoard
	live   LiveBoard
	logger *zap.Logger
}

// NewRouter builds the HTTP API:
//
//	GET    /healthz
//	GET    /ws
//	POST   /api/solo
//	POST   /api/groups
//	POST   /api/groups/{id}/participants
//	GET    /api/groups/{id}/leaderboard?participantId=
//	POST   /api/sessions/{id}/answers
//	POST   /api/sessions/{id}/next
//	GET    /api/sessions/{id}/snapshot?participantId=
//	GET    /api/participants/{participantId}/session
//	DELETE /api/queue/{participantId}
//	GET    /api/queue
//	GET    /api/leaderboard?quiz=&limit=
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &api{engine: deps.Engine, scores: deps.Scores, live: deps.Live, logger: logger}
	ws := NewWSHandler(deps.Engine, deps.Hub, logger)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api").Subrouter()
	v1.HandleFunc("/solo", a.startSolo).Methods(http.MethodPost)
	v1.HandleFunc("/groups", a.startGroup).Methods(http.MethodPost)
	v1.HandleFunc("/groups/{id}/participants", a.register).Methods(http.MethodPost)
	v1.HandleFunc("/groups/{id}/leaderboard", a.liveLeaderboard).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}/answers", a.answer).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/next", a.next).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/snapshot", a.snapshot).Methods(http.MethodGet)
	v1.HandleFunc("/participants/{participantId}/session", a.activeSession).Methods(http.MethodGet)
	v1.HandleFunc("/queue/{participantId}", a.leaveQueue).Methods(http.MethodDelete)
	v1.HandleFunc("/queue", a.queueStats).Methods(http.MethodGet)
	v1.HandleFunc("/leaderboard", a.leaderboard).Methods(http.MethodGet)
	return r
}

type participantRequest struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

func (p participantRequest) participant() domain.Participant {
	return domain.Participant{ID: p.ParticipantID, DisplayName: p.DisplayName}
}

type startSoloRequest struct {
	participantRequest
	QuizID string `json:"quizId"`
	Timer  int    `json:"timer"`
}

type startGroupRequest struct {
	Channel             string `json:"channel"`
	QuizID              string `json:"quizId"`
	RegistrationSeconds int    `json:"registrationSeconds"`
	Timer               int    `json:"timer"`
}

type answerRequest struct {
	ParticipantID string `json:"participantId"`
	QuestionID    string `json:"questionId"`
	Key           string `json:"key"`
}

func (a *api) startSolo(w http.ResponseWriter, r *http.Request) {
	var req startSoloRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ParticipantID == "" || req.QuizID == "" {
		writeError(w, http.StatusBadRequest, "participantId and quizId are required", "")
		return
	}
	ticket, err := a.engine.StartSolo(r.Context(), req.participant(), req.QuizID, req.Timer)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	status := http.StatusAccepted
	if ticket.Admitted {
		status = http.StatusCreated
	}
	writeJSON(w, status, ticket)
}

func (a *api) startGroup(w http.ResponseWriter, r *http.Request) {
	var req startGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Channel == "" || req.QuizID == "" || req.RegistrationSeconds <= 0 {
		writeError(w, http.StatusBadRequest, "channel, quizId and registrationSeconds are required", "")
		return
	}
	g, err := a.engine.StartGroup(r.Context(), app.GroupRequest{
		Channel:      req.Channel,
		QuizID:       req.QuizID,
		Registration: time.Duration(req.RegistrationSeconds) * time.Second,
		TimerSeconds: req.Timer,
	})
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": g.ID(), "quizId": g.QuizID(), "channel": g.Channel()})
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "participantId is required", "")
		return
	}
	if err := a.engine.Register(r.Context(), mux.Vars(r)["id"], req.participant()); err != nil {
		a.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := a.engine.SubmitAnswer(r.Context(), app.AnswerCommand{
		SessionID:     mux.Vars(r)["id"],
		ParticipantID: req.ParticipantID,
		QuestionID:    req.QuestionID,
		Key:           req.Key,
	})
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) next(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.engine.Next(r.Context(), mux.Vars(r)["id"], req.ParticipantID); err != nil {
		a.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := a.engine.Snapshot(mux.Vars(r)["id"], r.URL.Query().Get("participantId"))
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *api) activeSession(w http.ResponseWriter, r *http.Request) {
	participantID := mux.Vars(r)["participantId"]
	id, ok := a.engine.ActiveSession(participantID)
	if !ok {
		writeError(w, http.StatusNotFound, "no active session", "session_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":     id,
		"queuePosition": a.engine.QueuePosition(participantID),
	})
}

func (a *api) leaveQueue(w http.ResponseWriter, r *http.Request) {
	if !a.engine.LeaveQueue(mux.Vars(r)["participantId"]) {
		writeError(w, http.StatusNotFound, "participant is not queued", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) queueStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.QueueStats())
}

func (a *api) leaderboard(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quiz")
	if quizID == "" {
		writeError(w, http.StatusBadRequest, "quiz is required", "")
		return
	}
	if a.scores == nil {
		writeError(w, http.StatusNotImplemented, "leaderboard not available", "")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100", "")
			return
		}
		limit = n
	}
	entries, err := a.scores.TopScores(r.Context(), quizID, limit)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizId": quizID, "entries": entries})
}

func (a *api) liveLeaderboard(w http.ResponseWriter, r *http.Request) {
	if a.live == nil {
		writeError(w, http.StatusNotImplemented, "live leaderboard not available", "")
		return
	}
	sessionID := mux.Vars(r)["id"]
	lb, err := a.live.Latest(r.Context(), sessionID)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	body := map[string]any{"leaderboard": lb}
	if participantID := r.URL.Query().Get("participantId"); participantID != "" {
		rank, err := a.live.Rank(r.Context(), sessionID, participantID)
		if err != nil {
			a.writeEngineError(w, err)
			return
		}
		body["rank"] = rank
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *api) writeEngineError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", zap.Error(err))
	}
	var admission *domain.AdmissionError
	if errors.As(err, &admission) && admission.Reason == domain.AdmissionOnCooldown {
		w.Header().Set("Retry-After", strconv.Itoa(admission.RemainingSeconds()))
	}
	writeError(w, status, err.Error(), code)
}

// classify maps engine errors onto HTTP statuses and stable error codes.
func classify(err error) (int, string) {
	var admission *domain.AdmissionError
	switch {
	case errors.As(err, &admission):
		switch admission.Reason {
		case domain.AdmissionOnCooldown:
			return http.StatusTooManyRequests, string(admission.Reason)
		case domain.AdmissionQuizNotFound:
			return http.StatusNotFound, string(admission.Reason)
		}
		return http.StatusConflict, string(admission.Reason)
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrParticipantNotFound):
		return http.StatusNotFound, "participant_not_found"
	case errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound, "quiz_not_found"
	case errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusBadRequest, "question_not_found"
	case errors.Is(err, domain.ErrOptionNotFound):
		return http.StatusBadRequest, "option_not_found"
	case errors.Is(err, domain.ErrInvalidQuiz), errors.Is(err, domain.ErrNoQuestions):
		return http.StatusUnprocessableEntity, "invalid_quiz"
	case errors.Is(err, domain.ErrRegistrationClosed):
		return http.StatusConflict, "registration_closed"
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return http.StatusConflict, "already_registered"
	case errors.Is(err, domain.ErrNotAdvanceable):
		return http.StatusConflict, "not_advanceable"
	}
	return http.StatusInternalServerError, "internal"
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorPayload{Message: message, Code: code})
}
