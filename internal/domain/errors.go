package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionNotFound is returned when no session or group matches a handle.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a participant is not part of a session.
	ErrParticipantNotFound = errors.New("participant not found in quiz")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option key is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrNoQuestions is returned for quizzes without questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrInvalidQuiz wraps structural quiz problems.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrRegistrationClosed is returned when joining a group that already started.
	ErrRegistrationClosed = errors.New("registration closed")
	// ErrAlreadyRegistered is returned on a duplicate group registration.
	ErrAlreadyRegistered = errors.New("participant already registered")
	// ErrNotAdvanceable is returned when Next is requested while a question is open.
	ErrNotAdvanceable = errors.New("session cannot advance now")
)

func invalidQuiz(quizID, reason string) error {
	return fmt.Errorf("%w %s: %s", ErrInvalidQuiz, quizID, reason)
}

// AdmissionReason enumerates why a start request was rejected.
type AdmissionReason string

const (
	AdmissionOnCooldown    AdmissionReason = "on_cooldown"
	AdmissionAlreadyActive AdmissionReason = "already_active"
	AdmissionQuizNotFound  AdmissionReason = "quiz_not_found"
	AdmissionAlreadyTaken  AdmissionReason = "already_taken"
)

// AdmissionError is reported to the requester immediately; no session exists.
type AdmissionError struct {
	Reason    AdmissionReason
	Remaining time.Duration
	Err       error
}

func (e *AdmissionError) Error() string {
	switch e.Reason {
	case AdmissionOnCooldown:
		return fmt.Sprintf("admission rejected: on cooldown for %d more seconds", e.RemainingSeconds())
	case AdmissionAlreadyActive:
		return "admission rejected: a quiz is already active"
	case AdmissionAlreadyTaken:
		return "admission rejected: quiz already taken"
	case AdmissionQuizNotFound:
		return "admission rejected: quiz not found"
	}
	return "admission rejected: " + string(e.Reason)
}

func (e *AdmissionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Reason == AdmissionQuizNotFound {
		return ErrQuizNotFound
	}
	return nil
}

// RemainingSeconds rounds the cooldown remainder up to whole seconds.
func (e *AdmissionError) RemainingSeconds() int {
	secs := e.Remaining / time.Second
	if e.Remaining%time.Second > 0 {
		secs++
	}
	return int(secs)
}

// PresentationError is a render or edit failure in the presentation layer.
// Permanent errors are not retried.
type PresentationError struct {
	Op        string
	Err       error
	Permanent bool
}

func (e *PresentationError) Error() string {
	return fmt.Sprintf("present %s: %v", e.Op, e.Err)
}

func (e *PresentationError) Unwrap() error { return e.Err }

// ScoringStoreError is surfaced when a score flush exhausted its retries.
// The in-memory result is kept regardless.
type ScoringStoreError struct {
	Record ScoreRecord
	Err    error
}

func (e *ScoringStoreError) Error() string {
	return fmt.Sprintf("record score %d for %s on %s: %v", e.Record.Score, e.Record.ParticipantID, e.Record.QuizID, e.Err)
}

func (e *ScoringStoreError) Unwrap() error { return e.Err }

// IsAdmission reports whether err carries the given admission reason.
func IsAdmission(err error, reason AdmissionReason) bool {
	var admission *AdmissionError
	return errors.As(err, &admission) && admission.Reason == reason
}
