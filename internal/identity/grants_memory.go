package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type grant struct {
	userID    string
	expiresAt time.Time
}

// MemoryGrantStore keeps grants in process memory. It backs development
// runs without Redis and unit tests; it enforces the same single-use
// redemption contract as the Redis store.
type MemoryGrantStore struct {
	mu      sync.Mutex
	refresh map[string]grant
	codes   map[string]grant
	byUser  map[string]map[string]struct{}
}

// NewMemoryGrantStore builds an empty in-memory grant store.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{
		refresh: make(map[string]grant),
		codes:   make(map[string]grant),
		byUser:  make(map[string]map[string]struct{}),
	}
}

func (s *MemoryGrantStore) IssueRefreshToken(_ context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh[token] = grant{userID: userID, expiresAt: time.Now().Add(ttl)}
	if s.byUser[userID] == nil {
		s.byUser[userID] = make(map[string]struct{})
	}
	s.byUser[userID][token] = struct{}{}
	return token, nil
}

func (s *MemoryGrantStore) ConsumeRefreshToken(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.refresh[token]
	if !ok || time.Now().After(g.expiresAt) {
		delete(s.refresh, token)
		return "", ErrGrantNotFound
	}

	delete(s.refresh, token)
	delete(s.byUser[g.userID], token)
	return g.userID, nil
}

func (s *MemoryGrantStore) RevokeRefreshTokens(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token := range s.byUser[userID] {
		delete(s.refresh, token)
	}
	delete(s.byUser, userID)
	return nil
}

func (s *MemoryGrantStore) IssueAuthCode(_ context.Context, userID string, ttl time.Duration) (string, error) {
	code := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code] = grant{userID: userID, expiresAt: time.Now().Add(ttl)}
	return code, nil
}

func (s *MemoryGrantStore) ConsumeAuthCode(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.codes[code]
	if !ok || time.Now().After(g.expiresAt) {
		delete(s.codes, code)
		return "", ErrGrantNotFound
	}

	delete(s.codes, code)
	return g.userID, nil
}
