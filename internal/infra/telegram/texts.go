package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"trivia-engine/internal/domain"
)

var medals = []string{"🥇", "🥈", "🥉"}

func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func questionText(view domain.QuestionView) string {
	var b strings.Builder
	if view.QuizName != "" {
		fmt.Fprintf(&b, "%s\n", view.QuizName)
	}
	fmt.Fprintf(&b, "Question %d/%d (%d points)\n\n%s\n\n", view.Index+1, view.Total, view.MaxScore, view.Text)
	for _, opt := range view.Options {
		fmt.Fprintf(&b, "%s. %s\n", opt.Key, opt.Label)
	}
	fmt.Fprintf(&b, "\nTime left: %d seconds", seconds(view.Remaining))
	return b.String()
}

func feedbackText(fb domain.Feedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d/%d\n", fb.Index+1, fb.Total)
	switch {
	case fb.TimedOut:
		b.WriteString("Time's up!\n")
	case fb.Correct:
		fmt.Fprintf(&b, "Correct! You earned %d points.\n", fb.Awarded)
	default:
		fmt.Fprintf(&b, "Wrong answer, you picked %s.\n", fb.ChosenKey)
	}
	if !fb.Correct {
		fmt.Fprintf(&b, "The correct answer was %s. %s\n", fb.CorrectKey, fb.CorrectText)
		if fb.Explanation != "" {
			fmt.Fprintf(&b, "%s\n", fb.Explanation)
		}
	}
	fmt.Fprintf(&b, "Score: %d", fb.TotalScore)
	if fb.Last {
		b.WriteString("\nThat was the last question.")
	}
	return b.String()
}

func resultText(r domain.SessionResult) string {
	var b strings.Builder
	name := r.QuizName
	if name == "" {
		name = r.QuizID
	}
	if r.Status == domain.StatusAborted {
		fmt.Fprintf(&b, "Quiz ended early: %s\n", name)
		if r.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", r.Reason)
		}
	} else {
		fmt.Fprintf(&b, "Quiz complete: %s\n", name)
	}
	fmt.Fprintf(&b, "Score: %d of %d points\n", r.Score, r.MaxScore)
	fmt.Fprintf(&b, "Correct: %d of %d questions", r.Correct, r.Total)
	return b.String()
}

func snapshotText(s domain.SessionSnapshot) string {
	switch {
	case s.Result != nil:
		return resultText(*s.Result)
	case s.Question != nil:
		text := questionText(*s.Question)
		if s.Answered {
			text += fmt.Sprintf("\n\nYou answered %s. Score so far: %d", s.ChosenKey, s.Score)
		}
		return text
	case s.Group && s.Phase == domain.PhaseRegistering:
		return fmt.Sprintf("You are registered. %d players so far, starting in %d seconds.", s.Registered, seconds(s.StartsIn))
	case s.Leaderboard != nil:
		return leaderboardText("Final standings", s.Leaderboard.Entries)
	}
	return fmt.Sprintf("Score so far: %d", s.Score)
}

func leaderboardText(title string, entries []domain.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString(title)
	if len(entries) == 0 {
		b.WriteString("\nNo scores yet.")
		return b.String()
	}
	for _, e := range entries {
		if e.Rank >= 1 && e.Rank <= len(medals) {
			fmt.Fprintf(&b, "\n%s %s: %d", medals[e.Rank-1], e.DisplayName, e.Score)
			continue
		}
		fmt.Fprintf(&b, "\n%d. %s: %d", e.Rank, e.DisplayName, e.Score)
	}
	return b.String()
}

func announcementText(a domain.Announcement) string {
	name := a.QuizName
	if name == "" {
		name = a.QuizID
	}
	switch a.Kind {
	case domain.AnnounceRegistration:
		return fmt.Sprintf("A new quiz is starting: %s\nPress Join to take part. %d registered, starting in %d seconds.",
			name, a.Registered, seconds(a.Remaining))
	case domain.AnnounceCancelled:
		if a.Message != "" {
			return fmt.Sprintf("Quiz %s was cancelled: %s", name, a.Message)
		}
		return fmt.Sprintf("Quiz %s was cancelled.", name)
	case domain.AnnounceStarting:
		return fmt.Sprintf("Quiz %s is starting with %d players!", name, a.Registered)
	case domain.AnnounceQuestion:
		if a.Question != nil {
			return questionText(*a.Question)
		}
	case domain.AnnounceReveal:
		if a.Reveal != nil {
			return revealText(*a.Reveal)
		}
	case domain.AnnounceFinished:
		if a.Leaderboard != nil {
			return leaderboardText(fmt.Sprintf("Quiz %s finished! Final standings", name), a.Leaderboard.Entries)
		}
	case domain.AnnounceSoloResult:
		if a.Result != nil {
			return fmt.Sprintf("%s completed %s with %d of %d points.",
				a.Result.Participant.DisplayName, name, a.Result.Score, a.Result.MaxScore)
		}
	}
	if a.Message != "" {
		return a.Message
	}
	return fmt.Sprintf("Quiz %s update", name)
}

func revealText(r domain.Reveal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d/%d: the correct answer was %s. %s\n", r.Index+1, r.Total, r.CorrectKey, r.CorrectText)
	if r.Explanation != "" {
		fmt.Fprintf(&b, "%s\n", r.Explanation)
	}
	fmt.Fprintf(&b, "%d of %d answered correctly.", r.CorrectN, r.AnsweredN)
	if len(r.Picks) > 0 {
		keys := make([]string, 0, len(r.Picks))
		for k := range r.Picks {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nPicks:")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%d", k, r.Picks[k])
		}
	}
	if len(r.Tally) > 0 {
		b.WriteString("\n\n")
		b.WriteString(leaderboardText("Standings", r.Tally))
	}
	return b.String()
}
