// Package history keeps the capped most-recent-first record of completed
// downloads.
package history

import (
	"context"
	"sync"

	"github.com/vidgrab/vidgrab/internal/domain"
)

// Store persists completed-download records. Implementations keep at most
// domain.HistoryCap entries; appending beyond the cap evicts the oldest.
type Store interface {
	// Append records a completed download.
	Append(ctx context.Context, entry domain.HistoryEntry) error

	// List returns entries most-recent-first.
	List(ctx context.Context) ([]domain.HistoryEntry, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

// MemoryStore is an in-memory Store, used in tests and when persistence is
// disabled.
type MemoryStore struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append records an entry, evicting the oldest past the cap.
func (s *MemoryStore) Append(ctx context.Context, entry domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]domain.HistoryEntry{entry}, s.entries...)
	if len(s.entries) > domain.HistoryCap {
		s.entries = s.entries[:domain.HistoryCap]
	}
	return nil
}

// List returns entries most-recent-first.
func (s *MemoryStore) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
