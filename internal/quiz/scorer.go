package quiz

import (
	"context"
	"errors"
	"fmt"
	"log"

	"quizmaster/internal/domain"
	"quizmaster/internal/metrics"
)

// ProgressStore is the part of the player document store the scorer reads and writes.
// Writes express intent per key; implementations choose how to merge.
type ProgressStore interface {
	HighScore(ctx context.Context, userID, key string) (int, error)
	Achievements(ctx context.Context, userID string) (map[string]bool, error)
	UpdateStats(ctx context.Context, userID string, update domain.StatsUpdate) error
	UpdateHighScore(ctx context.Context, userID, key string, score int) error
	UnlockAchievement(ctx context.Context, userID, achievementID string) error
	// AppendWrongAnswer adds q to the category's pool unless a question with the same text is there.
	AppendWrongAnswer(ctx context.Context, userID, categoryID string, q domain.Question) error
}

// ChallengeResolver records the result of a duel against its challenge id.
type ChallengeResolver interface {
	ResolveChallenge(ctx context.Context, challengeID, winnerDisplayName string, finalScore int) error
}

// Baseline is the player's recorded progress read before play starts.
type Baseline struct {
	HighScore    int
	Achievements map[string]bool
}

// Scorer turns the answers of a finished session into an Outcome and persists its side effects.
type Scorer struct {
	config     domain.SessionConfig
	identity   domain.Identity
	progress   ProgressStore
	challenges ChallengeResolver
	baseline   Baseline
}

func NewScorer(config domain.SessionConfig, identity domain.Identity, progress ProgressStore, challenges ChallengeResolver) *Scorer {
	return &Scorer{
		config:     config,
		identity:   identity,
		progress:   progress,
		challenges: challenges,
		baseline:   Baseline{Achievements: map[string]bool{}},
	}
}

// tracksProgress reports whether this session may read or write competitive progress.
func (s *Scorer) tracksProgress() bool {
	return s.progress != nil && !s.identity.Anonymous() && !s.config.IsRemediation()
}

// LoadBaseline reads the stored high score and unlocked achievements. Read failures are
// logged and leave a zero baseline; they never prevent play.
func (s *Scorer) LoadBaseline(ctx context.Context) {
	if !s.tracksProgress() {
		return
	}
	key := s.config.HighScoreKey()
	if score, err := s.progress.HighScore(ctx, s.identity.UserID, key); err != nil {
		log.Printf("load high score %s for user %s: %v", key, s.identity.UserID, err)
	} else {
		s.baseline.HighScore = score
	}
	if unlocked, err := s.progress.Achievements(ctx, s.identity.UserID); err != nil {
		log.Printf("load achievements for user %s: %v", s.identity.UserID, err)
	} else if unlocked != nil {
		s.baseline.Achievements = unlocked
	}
}

// Compute derives the outcome. It has no side effects.
func (s *Scorer) Compute(questions []domain.Question, answers map[int]int) domain.Outcome {
	correct := 0
	for i, q := range questions {
		if option, ok := answers[i]; ok && option == q.Correct {
			correct++
		}
	}
	outcome := domain.Outcome{
		FinalScore:           correct * domain.PointsPerCorrect,
		Correct:              correct,
		Total:                len(questions),
		AchievementsUnlocked: []string{},
	}

	if s.tracksProgress() {
		outcome.PreviousHighScore = s.baseline.HighScore
		outcome.HighScoreDelta = outcome.FinalScore > s.baseline.HighScore

		earned := []string{domain.AchievementFirstQuiz}
		if len(questions) > 0 && correct == len(questions) {
			earned = append(earned, domain.AchievementPerfectScore)
		}
		for _, id := range earned {
			if _, known := domain.LookupAchievement(id); !known || s.baseline.Achievements[id] {
				continue
			}
			outcome.AchievementsUnlocked = append(outcome.AchievementsUnlocked, id)
		}
	}

	if c := s.config.Challenge; c != nil {
		won := outcome.FinalScore > c.TargetScore
		winner := c.ChallengerName
		if won {
			winner = s.identity.DisplayName
		}
		outcome.ChallengeResult = &domain.ChallengeResult{
			ChallengeID: c.ChallengeID,
			Won:         won,
			Winner:      winner,
			TargetScore: c.TargetScore,
		}
	}
	return outcome
}

// Persist writes the side effects of outcome, one call per effect. Failures are logged and
// counted but never undo the outcome; they are returned joined for callers that care.
func (s *Scorer) Persist(ctx context.Context, questions []domain.Question, answers map[int]int, outcome domain.Outcome) error {
	if s.identity.Anonymous() {
		return nil
	}
	userID := s.identity.UserID
	var errs []error
	record := func(operation string, err error) {
		if err == nil {
			return
		}
		metrics.PersistenceFailures.WithLabelValues(operation).Inc()
		log.Printf("persist %s for user %s: %v", operation, userID, err)
		errs = append(errs, fmt.Errorf("%s: %w", operation, err))
	}

	if s.tracksProgress() {
		first := true
		for i, q := range questions {
			option, ok := answers[i]
			if !ok {
				continue
			}
			isCorrect := option == q.Correct
			record("stats", s.progress.UpdateStats(ctx, userID, domain.StatsUpdate{
				IsCorrect:                isCorrect,
				IsFirstQuestionOfSession: first,
			}))
			first = false
			if !isCorrect {
				missed := q
				missed.Category = s.config.CategoryID
				record("wrong_answer", s.progress.AppendWrongAnswer(ctx, userID, s.config.CategoryID, missed))
			}
		}
		if outcome.HighScoreDelta {
			record("high_score", s.progress.UpdateHighScore(ctx, userID, s.config.HighScoreKey(), outcome.FinalScore))
		}
		for _, id := range outcome.AchievementsUnlocked {
			record("achievement", s.progress.UnlockAchievement(ctx, userID, id))
		}
	}

	if r := outcome.ChallengeResult; r != nil && s.challenges != nil {
		record("challenge", s.challenges.ResolveChallenge(ctx, r.ChallengeID, r.Winner, outcome.FinalScore))
	}
	return errors.Join(errs...)
}
