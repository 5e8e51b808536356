package domain

import "time"

// SessionStatus is the solo session state machine position.
type SessionStatus string

const (
	StatusInitializing   SessionStatus = "initializing"
	StatusAwaitingAnswer SessionStatus = "awaiting_answer"
	StatusGrading        SessionStatus = "grading"
	StatusTransitioning  SessionStatus = "transitioning"
	StatusCompleted      SessionStatus = "completed"
	StatusAborted        SessionStatus = "aborted"
)

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// GroupPhase is the aggregate state of a group session.
type GroupPhase string

const (
	PhaseRegistering   GroupPhase = "registering"
	PhaseInProgress    GroupPhase = "in_progress"
	PhaseShowingAnswer GroupPhase = "showing_answer"
	PhaseFinished      GroupPhase = "finished"
	PhaseCancelled     GroupPhase = "cancelled"
)

// Terminal reports whether the group session has ended.
func (p GroupPhase) Terminal() bool {
	return p == PhaseFinished || p == PhaseCancelled
}

// QuestionView is what a participant sees for an open question. It carries
// the routing tuple every answer control maps back to.
type QuestionView struct {
	SessionID     string        `json:"sessionId"`
	QuizID        string        `json:"quizId"`
	QuizName      string        `json:"quizName,omitempty"`
	QuestionID    string        `json:"questionId"`
	Index         int           `json:"index"`
	Total         int           `json:"total"`
	Text          string        `json:"text"`
	Options       []Option      `json:"options"`
	MaxScore      int           `json:"maxScore"`
	Window        time.Duration `json:"window"`
	Remaining     time.Duration `json:"remaining"`
	Answered      bool          `json:"answered"`
	ChosenKey     string        `json:"chosenKey,omitempty"`
	ParticipantID string        `json:"participantId,omitempty"`
}

// Feedback is rendered after grading an answer or a timeout.
type Feedback struct {
	SessionID   string `json:"sessionId"`
	QuestionID  string `json:"questionId"`
	Index       int    `json:"index"`
	Total       int    `json:"total"`
	TimedOut    bool   `json:"timedOut"`
	Correct     bool   `json:"correct"`
	ChosenKey   string `json:"chosenKey,omitempty"`
	CorrectKey  string `json:"correctKey"`
	CorrectText string `json:"correctText"`
	Explanation string `json:"explanation,omitempty"`
	Awarded     int    `json:"awarded"`
	TotalScore  int    `json:"totalScore"`
	Last        bool   `json:"last"`
	// CanAdvance is set when the participant may request the next question.
	CanAdvance bool `json:"canAdvance"`
}

// SessionResult is the final view of a solo session.
type SessionResult struct {
	SessionID   string        `json:"sessionId"`
	Participant Participant   `json:"participant"`
	QuizID      string        `json:"quizId"`
	QuizName    string        `json:"quizName,omitempty"`
	Score       int           `json:"score"`
	MaxScore    int           `json:"maxScore"`
	Answered    int           `json:"answered"`
	Correct     int           `json:"correct"`
	Total       int           `json:"total"`
	Status      SessionStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
}

// AnnouncementKind tags channel-level messages.
type AnnouncementKind string

const (
	AnnounceRegistration AnnouncementKind = "registration"
	AnnounceCancelled    AnnouncementKind = "cancelled"
	AnnounceStarting     AnnouncementKind = "starting"
	AnnounceQuestion     AnnouncementKind = "question"
	AnnounceReveal       AnnouncementKind = "reveal"
	AnnounceFinished     AnnouncementKind = "finished"
	AnnounceSoloResult   AnnouncementKind = "solo_result"
)

// Announcement is a message addressed to a channel rather than a participant.
type Announcement struct {
	Kind         AnnouncementKind `json:"kind"`
	SessionID    string           `json:"sessionId"`
	QuizID       string           `json:"quizId"`
	QuizName     string           `json:"quizName,omitempty"`
	Registered   int              `json:"registered"`
	Remaining    time.Duration    `json:"remaining,omitempty"`
	Question     *QuestionView    `json:"question,omitempty"`
	Reveal       *Reveal          `json:"reveal,omitempty"`
	Leaderboard  *Leaderboard     `json:"leaderboard,omitempty"`
	Result       *SessionResult   `json:"result,omitempty"`
	Message      string           `json:"message,omitempty"`
	Participants []Participant    `json:"participants,omitempty"`
}

// Reveal is the showing-answer view of a group question.
type Reveal struct {
	QuestionID  string             `json:"questionId"`
	Index       int                `json:"index"`
	Total       int                `json:"total"`
	CorrectKey  string             `json:"correctKey"`
	CorrectText string             `json:"correctText"`
	Explanation string             `json:"explanation,omitempty"`
	Picks       map[string]int     `json:"picks"`
	CorrectN    int                `json:"correctCount"`
	AnsweredN   int                `json:"answeredCount"`
	Tally       []LeaderboardEntry `json:"tally"`
}

// SessionSnapshot is a pure view of where a participant stands. It drives
// recovery rendering and never mutates scores.
type SessionSnapshot struct {
	SessionID     string         `json:"sessionId"`
	QuizID        string         `json:"quizId"`
	ParticipantID string         `json:"participantId"`
	Group         bool           `json:"group"`
	Status        SessionStatus  `json:"status,omitempty"`
	Phase         GroupPhase     `json:"phase,omitempty"`
	Question      *QuestionView  `json:"question,omitempty"`
	Answered      bool           `json:"answered"`
	ChosenKey     string         `json:"chosenKey,omitempty"`
	Score         int            `json:"score"`
	Registered    int            `json:"registered,omitempty"`
	StartsIn      time.Duration  `json:"startsIn,omitempty"`
	Reveal        *Reveal        `json:"reveal,omitempty"`
	Leaderboard   *Leaderboard   `json:"leaderboard,omitempty"`
	Result        *SessionResult `json:"result,omitempty"`
}
