package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"questrent/models"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound is returned when no live session exists for a user.
// The machine translates it into a sessionExpired dialogue error.
var ErrSessionNotFound = fmt.Errorf("intake session not found")

// SessionStore holds in-flight intake sessions keyed by requester id.
// Implementations enforce the inactivity TTL.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*models.IntakeSession, error)
	Put(ctx context.Context, s *models.IntakeSession) error
	Delete(ctx context.Context, userID int64) error
}

// RedisSessionStore stores sessions as JSON with a TTL, so abandoned
// dialogues expire without any sweeper.
type RedisSessionStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func sessionKey(userID int64) string {
	return "intake:" + strconv.FormatInt(userID, 10)
}

func (r *RedisSessionStore) Get(ctx context.Context, userID int64) (*models.IntakeSession, error) {
	data, err := r.Client.Get(ctx, sessionKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch intake session: %w", err)
	}
	var s models.IntakeSession
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to parse intake session: %w", err)
	}
	return &s, nil
}

func (r *RedisSessionStore) Put(ctx context.Context, s *models.IntakeSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal intake session: %w", err)
	}
	if err := r.Client.Set(ctx, sessionKey(s.UserID), data, r.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store intake session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, userID int64) error {
	if err := r.Client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete intake session: %w", err)
	}
	return nil
}

// MemorySessionStore keeps sessions in a map with an injected clock for TTL
// evaluation. Used by tests and single-process runs without Redis.
type MemorySessionStore struct {
	TTL time.Duration
	Now func() time.Time

	mu       sync.Mutex
	sessions map[int64]models.IntakeSession
}

func NewMemorySessionStore(ttl time.Duration, now func() time.Time) *MemorySessionStore {
	if now == nil {
		now = time.Now
	}
	return &MemorySessionStore{
		TTL:      ttl,
		Now:      now,
		sessions: make(map[int64]models.IntakeSession),
	}
}

func (m *MemorySessionStore) Get(ctx context.Context, userID int64) (*models.IntakeSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.TTL > 0 && m.Now().Sub(s.UpdatedAt) > m.TTL {
		delete(m.sessions, userID)
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemorySessionStore) Put(ctx context.Context, s *models.IntakeSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = *s
	return nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
