package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizmaster/internal/quiz"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Controllers own timers and subscribers, so they stay in a local map.
//   - Redis marks session liveness with a TTL so other instances and operators can see
//     which sessions this node is serving. Every Get extends the TTL, so a session only
//     expires after ttl without player activity.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*quiz.Controller
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*quiz.Controller),
	}
}

func (s *SessionStore) Save(session *quiz.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	config := session.Config()
	// best-effort liveness marker
	_ = s.client.HSet(context.Background(), s.key(session.ID()),
		"category", config.CategoryID,
		"mode", string(config.Mode),
	).Err()
	if s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(session.ID()), s.ttl).Err()
	}
}

func (s *SessionStore) Get(sessionID string) (*quiz.Controller, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok && s.ttl > 0 {
		// best-effort refresh
		_ = s.client.Expire(context.Background(), s.key(sessionID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
