package tokens

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the active token set in process memory.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	generate   Generator
	now        func() time.Time
	defaultTTL time.Duration
}

type memoryEntry struct {
	issuedAt time.Time
	duration time.Duration
}

// NewMemoryStore constructs an empty store. Nil generator and clock fall back
// to RandomHex and time.Now.
func NewMemoryStore(defaultTTL time.Duration, generate Generator, now func() time.Time) *MemoryStore {
	if generate == nil {
		generate = RandomHex(tokenBytes)
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		generate:   generate,
		now:        now,
		defaultTTL: resolveDuration(defaultTTL, DefaultDuration),
	}
}

// Issue records a fresh token valid for duration from now.
func (s *MemoryStore) Issue(_ context.Context, duration time.Duration) (string, error) {
	duration = resolveDuration(duration, s.defaultTTL)

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token, err := s.generate()
		if err != nil {
			return "", err
		}
		if token == "" {
			continue
		}

		s.mu.Lock()
		if _, taken := s.entries[token]; taken {
			s.mu.Unlock()
			continue
		}
		s.entries[token] = memoryEntry{issuedAt: s.now(), duration: duration}
		s.mu.Unlock()
		return token, nil
	}
	return "", ErrTokenCollision
}

// Verify reports whether token is active, dropping it once it is seen expired.
func (s *MemoryStore) Verify(_ context.Context, token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return false
	}
	if expired(s.now(), entry.issuedAt, entry.duration) {
		delete(s.entries, token)
		return false
	}
	return true
}

// Revoke removes token from the active set.
func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.entries, token)
	s.mu.Unlock()
	return nil
}

// Len returns the number of tokens currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
