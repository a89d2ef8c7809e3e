package memory

import (
	"context"
	"sort"
	"sync"

	"quizmaster/internal/domain"
)

// ProgressStore keeps player progress in process memory. Wrong answers are keyed by
// question text per category, so a repeated mistake never grows the pool.
type ProgressStore struct {
	mu           sync.RWMutex
	stats        map[string]domain.Stats
	highScores   map[string]map[string]int
	achievements map[string]map[string]bool
	wrong        map[string]map[string]map[string]domain.Question
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		stats:        make(map[string]domain.Stats),
		highScores:   make(map[string]map[string]int),
		achievements: make(map[string]map[string]bool),
		wrong:        make(map[string]map[string]map[string]domain.Question),
	}
}

func (s *ProgressStore) HighScore(_ context.Context, userID, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highScores[userID][key], nil
}

func (s *ProgressStore) HighScores(_ context.Context, userID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.highScores[userID]))
	for key, score := range s.highScores[userID] {
		out[key] = score
	}
	return out, nil
}

func (s *ProgressStore) Achievements(_ context.Context, userID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.achievements[userID]))
	for id := range s.achievements[userID] {
		out[id] = true
	}
	return out, nil
}

func (s *ProgressStore) Stats(_ context.Context, userID string) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats[userID], nil
}

func (s *ProgressStore) UpdateStats(_ context.Context, userID string, update domain.StatsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[userID] = s.stats[userID].Apply(update)
	return nil
}

func (s *ProgressStore) UpdateHighScore(_ context.Context, userID, key string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.highScores[userID] == nil {
		s.highScores[userID] = make(map[string]int)
	}
	s.highScores[userID][key] = score
	return nil
}

func (s *ProgressStore) UnlockAchievement(_ context.Context, userID, achievementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.achievements[userID] == nil {
		s.achievements[userID] = make(map[string]bool)
	}
	s.achievements[userID][achievementID] = true
	return nil
}

func (s *ProgressStore) AppendWrongAnswer(_ context.Context, userID, categoryID string, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCategory := s.wrong[userID]
	if byCategory == nil {
		byCategory = make(map[string]map[string]domain.Question)
		s.wrong[userID] = byCategory
	}
	pool := byCategory[categoryID]
	if pool == nil {
		pool = make(map[string]domain.Question)
		byCategory[categoryID] = pool
	}
	if _, exists := pool[q.Text]; exists {
		return nil
	}
	q.Category = categoryID
	q.Options = append([]string(nil), q.Options...)
	pool[q.Text] = q
	return nil
}

// WrongAnswers returns the remediation pool ordered by category and question text.
func (s *ProgressStore) WrongAnswers(_ context.Context, userID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, pool := range s.wrong[userID] {
		for _, q := range pool {
			q.Options = append([]string(nil), q.Options...)
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Text < out[j].Text
	})
	return out, nil
}
