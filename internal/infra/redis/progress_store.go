package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"quizmaster/internal/domain"
)

// ProgressStore keeps player progress in Redis. Every write is a keyed upsert:
//
//	progress:{user}:stats              hash   quizzesPlayed / totalCorrect / totalIncorrect
//	progress:{user}:highscores         hash   {category-mode} -> score
//	progress:{user}:achievements       set    achievement ids
//	progress:{user}:wrong              set    categories with wrong answers
//	progress:{user}:wrong:{category}   hash   {question text} -> question JSON
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) HighScore(ctx context.Context, userID, key string) (int, error) {
	score, err := s.client.HGet(ctx, s.highScoresKey(userID), key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get high score: %w", err)
	}
	return score, nil
}

func (s *ProgressStore) HighScores(ctx context.Context, userID string) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, s.highScoresKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get high scores: %w", err)
	}
	scores := make(map[string]int, len(raw))
	for key, value := range raw {
		score, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("decode high score %s: %w", key, err)
		}
		scores[key] = score
	}
	return scores, nil
}

func (s *ProgressStore) Achievements(ctx context.Context, userID string) (map[string]bool, error) {
	ids, err := s.client.SMembers(ctx, s.achievementsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get achievements: %w", err)
	}
	unlocked := make(map[string]bool, len(ids))
	for _, id := range ids {
		unlocked[id] = true
	}
	return unlocked, nil
}

func (s *ProgressStore) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	raw, err := s.client.HGetAll(ctx, s.statsKey(userID)).Result()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("get stats: %w", err)
	}
	atoi := func(field string) int {
		n, _ := strconv.Atoi(raw[field])
		return n
	}
	return domain.Stats{
		QuizzesPlayed:  atoi("quizzesPlayed"),
		TotalCorrect:   atoi("totalCorrect"),
		TotalIncorrect: atoi("totalIncorrect"),
	}, nil
}

func (s *ProgressStore) UpdateStats(ctx context.Context, userID string, update domain.StatsUpdate) error {
	key := s.statsKey(userID)
	pipe := s.client.TxPipeline()
	if update.IsFirstQuestionOfSession {
		pipe.HIncrBy(ctx, key, "quizzesPlayed", 1)
	}
	if update.IsCorrect {
		pipe.HIncrBy(ctx, key, "totalCorrect", 1)
	} else {
		pipe.HIncrBy(ctx, key, "totalIncorrect", 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	return nil
}

func (s *ProgressStore) UpdateHighScore(ctx context.Context, userID, key string, score int) error {
	if err := s.client.HSet(ctx, s.highScoresKey(userID), key, score).Err(); err != nil {
		return fmt.Errorf("update high score: %w", err)
	}
	return nil
}

func (s *ProgressStore) UnlockAchievement(ctx context.Context, userID, achievementID string) error {
	if err := s.client.SAdd(ctx, s.achievementsKey(userID), achievementID).Err(); err != nil {
		return fmt.Errorf("unlock achievement: %w", err)
	}
	return nil
}

// AppendWrongAnswer relies on HSETNX so a question already in the pool is left untouched.
func (s *ProgressStore) AppendWrongAnswer(ctx context.Context, userID, categoryID string, q domain.Question) error {
	q.Category = categoryID
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal wrong answer: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.wrongCategoriesKey(userID), categoryID)
	pipe.HSetNX(ctx, s.wrongKey(userID, categoryID), q.Text, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append wrong answer: %w", err)
	}
	return nil
}

func (s *ProgressStore) WrongAnswers(ctx context.Context, userID string) ([]domain.Question, error) {
	categories, err := s.client.SMembers(ctx, s.wrongCategoriesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list wrong answer categories: %w", err)
	}
	var out []domain.Question
	for _, categoryID := range categories {
		values, err := s.client.HVals(ctx, s.wrongKey(userID, categoryID)).Result()
		if err != nil {
			return nil, fmt.Errorf("get wrong answers for %s: %w", categoryID, err)
		}
		for _, raw := range values {
			var q domain.Question
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				return nil, fmt.Errorf("decode wrong answer: %w", err)
			}
			if q.Category == "" {
				q.Category = categoryID
			}
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *ProgressStore) statsKey(userID string) string {
	return "progress:" + userID + ":stats"
}

func (s *ProgressStore) highScoresKey(userID string) string {
	return "progress:" + userID + ":highscores"
}

func (s *ProgressStore) achievementsKey(userID string) string {
	return "progress:" + userID + ":achievements"
}

func (s *ProgressStore) wrongCategoriesKey(userID string) string {
	return "progress:" + userID + ":wrong"
}

func (s *ProgressStore) wrongKey(userID, categoryID string) string {
	return "progress:" + userID + ":wrong:" + categoryID
}
