package redis

import (
	"context"
	"sync"
	"time"

	"ambient-quiz-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions own timers and subscribers, so the live objects stay in a local map.
//   - Redis holds a liveness marker per session, refreshed on every Put and
//     expiring after ttl, so other instances and operators can see who is playing.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

// Put refreshes the liveness marker and only then tracks the session, so a
// failed write leaves no local entry behind.
func (s *SessionStore) Put(ctx context.Context, session *app.Session) error {
	if err := s.client.Set(ctx, s.key(session.ID()), string(session.View().State), s.ttl).Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	// best-effort; the marker expires on its own
	_ = s.client.Del(ctx, s.key(id)).Err()
}

func (s *SessionStore) List(_ context.Context) []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
