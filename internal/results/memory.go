package results

import (
	"context"
	"sync"

	"hopball-arena/internal/game"
)

// DefaultRecentLimit caps retained matches when the config leaves the
// limit unset.
const DefaultRecentLimit = 50

// MemoryStore keeps results in process memory. Single-node only; a
// restart loses history.
type MemoryStore struct {
	mu      sync.RWMutex
	matches []game.MatchResult // oldest first
	limit   int
}

// NewMemoryStore returns a store retaining at most limit matches.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &MemoryStore{limit: limit}
}

// RecordMatch appends a result, evicting the oldest past the limit.
func (s *MemoryStore) RecordMatch(ctx context.Context, result game.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.matches = append(s.matches, result)
	if len(s.matches) > s.limit {
		s.matches = s.matches[len(s.matches)-s.limit:]
	}
	return nil
}

// RecentMatches returns up to n results, newest first.
func (s *MemoryStore) RecentMatches(ctx context.Context, n int) ([]game.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.matches) == 0 {
		return nil, nil
	}
	if n > len(s.matches) {
		n = len(s.matches)
	}

	out := make([]game.MatchResult, 0, n)
	for i := len(s.matches) - 1; i >= len(s.matches)-n; i-- {
		out = append(out, s.matches[i])
	}
	return out, nil
}

// Len reports how many matches are retained.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}
