package gesture

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Source loads a recording by gesture name.
type Source interface {
	Load(ctx context.Context, name string) (*Recording, error)
}

// Store caches recordings by name for the life of the process.
//
// The cache is optimistic: two callers that miss on the same name before
// either load resolves both hit the source, and the later result replaces
// the earlier one. Once an entry is cached no further loads happen for that
// name until it is invalidated.
type Store struct {
	source Source
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*Recording
}

// NewStore creates an empty cache in front of source.
func NewStore(source Source, logger zerolog.Logger) *Store {
	return &Store{
		source: source,
		logger: logger.With().Str("component", "gesture-store").Logger(),
		cache:  make(map[string]*Recording),
	}
}

// Fetch returns the cached recording for name, loading it on a miss.
// Load failures are returned unchanged and nothing is cached.
func (s *Store) Fetch(ctx context.Context, name string) (*Recording, error) {
	s.mu.RLock()
	rec, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return rec, nil
	}

	rec, err := s.source.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load gesture %q: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = rec
	s.mu.Unlock()

	s.logger.Debug().
		Str("gesture", name).
		Int("samples", len(rec.Samples)).
		Float32("duration", rec.Duration).
		Msg("Gesture cached")

	return rec, nil
}

// Cached returns a recording only if it is already in the cache.
func (s *Store) Cached(name string) (*Recording, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.cache[name]
	return rec, ok
}

// Invalidate drops one cached recording.
func (s *Store) Invalidate(name string) {
	s.mu.Lock()
	_, ok := s.cache[name]
	delete(s.cache, name)
	s.mu.Unlock()

	if ok {
		s.logger.Debug().Str("gesture", name).Msg("Gesture invalidated")
	}
}

// Purge drops every cached recording.
func (s *Store) Purge() {
	s.mu.Lock()
	s.cache = make(map[string]*Recording)
	s.mu.Unlock()
}

// Len returns the number of cached recordings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
