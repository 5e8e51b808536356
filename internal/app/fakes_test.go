package app

import (
	"context"
	"errors"
	"sync"

	"trivia-engine/internal/domain"
)

type staticQuizzes map[string]domain.Quiz

func (s staticQuizzes) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := s[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

type presented struct {
	kind        string
	participant string
	channel     string
	question    domain.QuestionView
	feedback    domain.Feedback
	result      domain.SessionResult
	snapshot    domain.SessionSnapshot
	announce    domain.Announcement
	text        string
}

// recordingPresenter stores every call. failQuestions makes ShowQuestion
// fail that many times before succeeding.
type recordingPresenter struct {
	mu            sync.Mutex
	calls         []presented
	failQuestions int
	failAll       bool
}

var errRender = errors.New("message to edit not found")

func (p *recordingPresenter) add(call presented) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *recordingPresenter) ShowQuestion(_ context.Context, to domain.Participant, view domain.QuestionView) error {
	p.mu.Lock()
	if p.failAll || p.failQuestions > 0 {
		if p.failQuestions > 0 {
			p.failQuestions--
		}
		p.mu.Unlock()
		return errRender
	}
	p.mu.Unlock()
	p.add(presented{kind: "question", participant: to.ID, question: view})
	return nil
}

func (p *recordingPresenter) ShowFeedback(_ context.Context, to domain.Participant, fb domain.Feedback) error {
	p.add(presented{kind: "feedback", participant: to.ID, feedback: fb})
	return nil
}

func (p *recordingPresenter) ShowResult(_ context.Context, to domain.Participant, result domain.SessionResult) error {
	p.add(presented{kind: "result", participant: to.ID, result: result})
	return nil
}

func (p *recordingPresenter) ShowSnapshot(_ context.Context, to domain.Participant, snap domain.SessionSnapshot) error {
	p.add(presented{kind: "snapshot", participant: to.ID, snapshot: snap})
	return nil
}

func (p *recordingPresenter) Announce(_ context.Context, channel string, a domain.Announcement) error {
	p.add(presented{kind: "announce", channel: channel, announce: a})
	return nil
}

func (p *recordingPresenter) Notify(_ context.Context, to domain.Participant, text string) error {
	p.add(presented{kind: "notify", participant: to.ID, text: text})
	return nil
}

func (p *recordingPresenter) byKind(kind string) []presented {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []presented
	for _, call := range p.calls {
		if call.kind == kind {
			out = append(out, call)
		}
	}
	return out
}

func (p *recordingPresenter) announcements(kind domain.AnnouncementKind) []domain.Announcement {
	var out []domain.Announcement
	for _, call := range p.byKind("announce") {
		if call.announce.Kind == kind {
			out = append(out, call.announce)
		}
	}
	return out
}

func twoQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:   "quiz-1",
		Name: "Basics",
		Questions: []domain.Question{
			{
				ID:         "q1",
				Text:       "What is 2 + 2?",
				Options:    []domain.Option{{Key: "A", Label: "3"}, {Key: "B", Label: "4"}},
				CorrectKey: "B",
				MaxScore:   10,
			},
			{
				ID:          "q2",
				Text:        "Capital of France?",
				Options:     []domain.Option{{Key: "A", Label: "Paris"}, {Key: "B", Label: "Rome"}},
				CorrectKey:  "A",
				MaxScore:    20,
				Explanation: "Paris has been the capital since 987.",
			},
		},
	}
}
