package memory

import (
	"context"
	"sort"
	"sync"

	"trivia-engine/internal/domain"
)

// ScoreStore keeps the best score per participant and quiz in memory.
type ScoreStore struct {
	mu     sync.RWMutex
	scores map[scoreKey]domain.ScoreRecord
	seq    map[scoreKey]int
	next   int
}

type scoreKey struct {
	participantID string
	quizID        string
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{
		scores: make(map[scoreKey]domain.ScoreRecord),
		seq:    make(map[scoreKey]int),
	}
}

// RecordScore keeps the greater of the stored and the given score.
func (s *ScoreStore) RecordScore(_ context.Context, rec domain.ScoreRecord) error {
	key := scoreKey{participantID: rec.ParticipantID, quizID: rec.QuizID}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.scores[key]
	if !ok {
		s.seq[key] = s.next
		s.next++
		s.scores[key] = rec
		return nil
	}
	if rec.Score > current.Score {
		current.Score = rec.Score
	}
	if rec.DisplayName != "" {
		current.DisplayName = rec.DisplayName
	}
	s.scores[key] = current
	return nil
}

func (s *ScoreStore) HasTaken(_ context.Context, participantID, quizID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.scores[scoreKey{participantID: participantID, quizID: quizID}]
	return ok, nil
}

// Score returns the stored best score.
func (s *ScoreStore) Score(participantID, quizID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.scores[scoreKey{participantID: participantID, quizID: quizID}]
	return rec.Score, ok
}

// TopScores ranks a quiz's stored scores, highest first, earlier entries
// winning ties.
func (s *ScoreStore) TopScores(_ context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	type row struct {
		rec domain.ScoreRecord
		seq int
	}
	var rows []row
	for key, rec := range s.scores {
		if key.quizID == quizID {
			rows = append(rows, row{rec: rec, seq: s.seq[key]})
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].rec.Score != rows[j].rec.Score {
			return rows[i].rec.Score > rows[j].rec.Score
		}
		return rows[i].seq < rows[j].seq
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = domain.LeaderboardEntry{
			Rank:          i + 1,
			ParticipantID: r.rec.ParticipantID,
			DisplayName:   r.rec.DisplayName,
			Score:         r.rec.Score,
		}
	}
	return entries, nil
}
