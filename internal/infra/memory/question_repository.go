package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizmaster/internal/domain"
)

// QuestionLoader fetches the question pool of a category from a backing store (e.g., document DB).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, categoryID string) ([]domain.Question, error)
}

// QuestionRepository caches question pools with TTL to avoid repeated DB hits.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

// GetQuestions returns a copy of the cached pool; callers may reorder it freely.
func (r *QuestionRepository) GetQuestions(ctx context.Context, categoryID string) ([]domain.Question, error) {
	if questions, ok := r.lookup(categoryID); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(categoryID, func() (interface{}, error) {
		if questions, ok := r.lookup(categoryID); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, categoryID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[categoryID] = cachedPool{
			questions: questions,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), result.([]domain.Question)...), nil
}

func (r *QuestionRepository) lookup(categoryID string) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[categoryID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return append([]domain.Question(nil), entry.questions...), true
}

// StaticQuestionLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionLoader struct {
	banks map[string][]domain.Question
}

func NewStaticQuestionLoader(banks map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{banks: banks}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, categoryID string) ([]domain.Question, error) {
	if questions, ok := l.banks[categoryID]; ok {
		return questions, nil
	}
	return nil, domain.ErrCategoryNotFound
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
