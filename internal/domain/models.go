package domain

import "time"

// Participant is an opaque identity referenced by sessions.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Option is one selectable answer of a question.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Question models a multiple choice question with exactly one correct key.
type Question struct {
	ID          string   `json:"id" yaml:"id"`
	Text        string   `json:"text" yaml:"text"`
	Options     []Option `json:"options" yaml:"options"`
	CorrectKey  string   `json:"correctKey" yaml:"correct_key"`
	MaxScore    int      `json:"maxScore" yaml:"max_score"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation"`
}

// HasOption reports whether key is one of the question's options.
func (q Question) HasOption(key string) bool {
	for _, opt := range q.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}

// OptionLabel returns the label for key, or the key itself if unknown.
func (q Question) OptionLabel(key string) string {
	for _, opt := range q.Options {
		if opt.Key == key {
			return opt.Label
		}
	}
	return key
}

// Quiz is an ordered collection of questions. It is treated as immutable
// once handed to a session.
type Quiz struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// MaxTotal is the highest score a participant can reach on the quiz.
func (q Quiz) MaxTotal() int {
	total := 0
	for _, question := range q.Questions {
		total += question.MaxScore
	}
	return total
}

// Validate checks the structural rules a quiz must satisfy before a session
// can run it.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return ErrNoQuestions
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if question.ID == "" {
			return invalidQuiz(q.ID, "question without id")
		}
		if _, dup := seen[question.ID]; dup {
			return invalidQuiz(q.ID, "duplicate question "+question.ID)
		}
		seen[question.ID] = struct{}{}
		if question.MaxScore < 0 {
			return invalidQuiz(q.ID, "negative max score on "+question.ID)
		}
		keys := make(map[string]struct{}, len(question.Options))
		for _, opt := range question.Options {
			if _, dup := keys[opt.Key]; dup {
				return invalidQuiz(q.ID, "duplicate option "+opt.Key+" on "+question.ID)
			}
			keys[opt.Key] = struct{}{}
		}
		if _, ok := keys[question.CorrectKey]; !ok {
			return invalidQuiz(q.ID, "correct key missing on "+question.ID)
		}
	}
	return nil
}

// Question returns the question with the given id and its index.
func (q Quiz) Question(id string) (Question, int, bool) {
	for i, question := range q.Questions {
		if question.ID == id {
			return question, i, true
		}
	}
	return Question{}, -1, false
}

// AnswerAttempt is the transient record of one submission. It is never
// persisted beyond scoring.
type AnswerAttempt struct {
	SessionID   string
	QuestionID  string
	ChosenKey   string
	SubmittedAt time.Time
}

// AnswerStatus is the caller-visible outcome of SubmitAnswer.
type AnswerStatus string

const (
	AnswerAccepted AnswerStatus = "accepted"
	AnswerTooLate  AnswerStatus = "too_late"
	AnswerNotYours AnswerStatus = "not_yours"
)

// AnswerResult summarizes the outcome of a submission for a single participant.
type AnswerResult struct {
	Status     AnswerStatus `json:"status"`
	QuestionID string       `json:"questionId"`
	Correct    bool         `json:"correct"`
	Awarded    int          `json:"awarded"`
	TotalScore int          `json:"totalScore"`
}

// ScoreRecord is what gets flushed to the score store once a session ends.
type ScoreRecord struct {
	ParticipantID string
	DisplayName   string
	QuizID        string
	Score         int
}

// LeaderboardEntry is a ranked participant view.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard of a group session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
