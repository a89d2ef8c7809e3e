package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizmaster/internal/domain"
	"quizmaster/internal/infra/memory"
)

// QuestionRepository caches question pools in Redis (hash per category) and falls back to a loader on cache miss.
// Questions are stored as: HSET questions:{categoryID} {question text} {question JSON}
// Keying by text keeps the cached pool free of duplicates.
type QuestionRepository struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuestionRepository(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, categoryID string) ([]domain.Question, error) {
	key := r.key(categoryID)

	if questions, ok := r.cached(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(categoryID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.cached(ctx, key); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return questions, nil
		}

		pipe := r.client.Pipeline()
		for _, q := range questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("marshal question: %w", err)
			}
			pipe.HSet(ctx, key, q.Text, raw)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("cache questions for %s: %v", categoryID, err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), result.([]domain.Question)...), nil
}

// cached reads the pool from Redis. Entries that no longer decode are skipped.
func (r *QuestionRepository) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	entries, err := r.client.HGetAll(ctx, key).Result()
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	questions := make([]domain.Question, 0, len(entries))
	for text, raw := range entries {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			log.Printf("decode cached question %q: %v", text, err)
			continue
		}
		questions = append(questions, q)
	}
	return questions, len(questions) > 0
}

func (r *QuestionRepository) key(categoryID string) string {
	return "questions:" + categoryID
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
