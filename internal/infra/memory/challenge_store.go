package memory

import (
	"context"
	"sync"
	"time"

	"quizmaster/internal/domain"
)

// ChallengeStore keeps challenges in memory. Resolving is idempotent: only the first
// resolution of a pending challenge is recorded.
type ChallengeStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	challenges map[string]domain.Challenge
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		now:        time.Now,
		challenges: make(map[string]domain.Challenge),
	}
}

func (s *ChallengeStore) Create(_ context.Context, challenge domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if challenge.Status == "" {
		challenge.Status = domain.ChallengePending
	}
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = s.now()
	}
	s.challenges[challenge.ID] = challenge
	return nil
}

func (s *ChallengeStore) Get(_ context.Context, challengeID string) (domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[challengeID]
	if !ok {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return challenge, nil
}

func (s *ChallengeStore) ResolveChallenge(_ context.Context, challengeID, winnerDisplayName string, finalScore int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.challenges[challengeID]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	if challenge.Status != domain.ChallengePending {
		return nil
	}
	completedAt := s.now()
	challenge.Status = domain.ChallengeCompleted
	challenge.Winner = winnerDisplayName
	challenge.FinalScore = finalScore
	challenge.CompletedAt = &completedAt
	s.challenges[challengeID] = challenge
	return nil
}
