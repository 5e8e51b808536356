package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestAwardDecaysWithLatency(t *testing.T) {
	q := Question{ID: "q1", CorrectKey: "B", MaxScore: 10, Options: []Option{{Key: "A"}, {Key: "B"}}}
	window := 10 * time.Second

	cases := []struct {
		name    string
		key     string
		taken   time.Duration
		correct bool
		awarded int
	}{
		{"instant", "B", 0, true, 10},
		{"half window", "B", 5 * time.Second, true, 5},
		{"floor", "B", 2500 * time.Millisecond, true, 7},
		{"window end", "B", window, true, 0},
		{"past window", "B", window + time.Second, true, 0},
		{"wrong fast", "A", 0, false, 0},
	}
	for _, tc := range cases {
		correct, awarded := Award(q, tc.key, tc.taken, window)
		if correct != tc.correct || awarded != tc.awarded {
			t.Fatalf("%s: expected (%v,%d), got (%v,%d)", tc.name, tc.correct, tc.awarded, correct, awarded)
		}
	}
}

func TestAwardZeroMaxScore(t *testing.T) {
	q := Question{ID: "q1", CorrectKey: "A", MaxScore: 0, Options: []Option{{Key: "A"}}}
	if _, awarded := Award(q, "A", 0, time.Second); awarded != 0 {
		t.Fatalf("expected 0, got %d", awarded)
	}
}

func TestAwardLargeScoresStayInRange(t *testing.T) {
	cases := []struct {
		maxScore int
		taken    time.Duration
		window   time.Duration
		awarded  int
	}{
		{100_000_000, time.Second, 5 * time.Minute, 99_666_666},
		{1_000_000_000, 0, 20 * time.Second, 1_000_000_000},
		{1_000_000_000, 10 * time.Second, 20 * time.Second, 500_000_000},
		{math.MaxInt32, 150 * time.Second, 5 * time.Minute, math.MaxInt32 / 2},
	}
	for _, tc := range cases {
		q := Question{ID: "q1", CorrectKey: "A", MaxScore: tc.maxScore}
		correct, awarded := Award(q, "A", tc.taken, tc.window)
		if !correct || awarded != tc.awarded {
			t.Fatalf("max %d taken %v window %v: expected %d, got %d", tc.maxScore, tc.taken, tc.window, tc.awarded, awarded)
		}
		if awarded < 0 || awarded > tc.maxScore {
			t.Fatalf("awarded %d outside [0,%d]", awarded, tc.maxScore)
		}
	}
}

func TestQuizValidate(t *testing.T) {
	valid := Quiz{ID: "quiz", Questions: []Question{{
		ID: "q1", CorrectKey: "A", MaxScore: 5,
		Options: []Option{{Key: "A", Label: "x"}, {Key: "B", Label: "y"}},
	}}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}
	if valid.MaxTotal() != 5 {
		t.Fatalf("expected max total 5, got %d", valid.MaxTotal())
	}

	if err := (Quiz{ID: "empty"}).Validate(); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}

	missing := valid
	missing.Questions = []Question{{ID: "q1", CorrectKey: "C", Options: valid.Questions[0].Options}}
	if err := missing.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected ErrInvalidQuiz, got %v", err)
	}

	dup := valid
	dup.Questions = []Question{valid.Questions[0], valid.Questions[0]}
	if err := dup.Validate(); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected duplicate question error, got %v", err)
	}
}

func TestAdmissionErrorRemainingRoundsUp(t *testing.T) {
	err := &AdmissionError{Reason: AdmissionOnCooldown, Remaining: 1500 * time.Millisecond}
	if err.RemainingSeconds() != 2 {
		t.Fatalf("expected 2 seconds, got %d", err.RemainingSeconds())
	}
	if !IsAdmission(err, AdmissionOnCooldown) {
		t.Fatalf("expected cooldown admission error")
	}
	notFound := &AdmissionError{Reason: AdmissionQuizNotFound}
	if !errors.Is(notFound, ErrQuizNotFound) {
		t.Fatalf("expected quiz-not-found to unwrap to ErrQuizNotFound")
	}
}
