package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/models"
)

// MemoryStore is an in-process TTL store with lazy expiry and capacity
// eviction. The clock is injected so tests can drive expiry directly.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
	log        zerolog.Logger
}

type memoryEntry struct {
	record    *models.AnalysisRecord
	expiresAt time.Time
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithMaxEntries bounds the number of cached tickers.
func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) { s.maxEntries = n }
}

// NewMemoryStore creates an in-memory analysis cache.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]memoryEntry),
		maxEntries: 128,
		now:        time.Now,
		log:        config.NewLogger("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the cached record, or false on miss or expiry.
func (s *MemoryStore) Get(_ context.Context, ticker string) (*models.AnalysisRecord, bool) {
	key := Key(ticker)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(entry.expiresAt) {
		// Lazy expiry.
		delete(s.entries, key)
		return nil, false
	}
	return entry.record.Clone(), true
}

// Put stores a copy of the record, overwriting any existing entry. When the
// store is full, the entry closest to expiry is evicted first.
func (s *MemoryStore) Put(_ context.Context, ticker string, record *models.AnalysisRecord, ttl time.Duration) {
	if record == nil || ttl <= 0 {
		return
	}
	key := Key(ticker)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictEarliestLocked()
	}

	s.entries[key] = memoryEntry{
		record:    record.Clone(),
		expiresAt: s.now().Add(ttl),
	}
}

// Invalidate drops the entry for one ticker.
func (s *MemoryStore) Invalidate(_ context.Context, ticker string) {
	key := Key(ticker)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clear drops all entries.
func (s *MemoryStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
}

// Len reports the number of live entries, expired included until their
// next lazy sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evictEarliestLocked() {
	var victim string
	var earliest time.Time
	for key, entry := range s.entries {
		if victim == "" || entry.expiresAt.Before(earliest) {
			victim = key
			earliest = entry.expiresAt
		}
	}
	if victim != "" {
		delete(s.entries, victim)
		s.log.Debug().Str("ticker", victim).Msg("Evicted cache entry at capacity")
	}
}

var _ Store = (*MemoryStore)(nil)
