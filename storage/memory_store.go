package storage

import (
	"context"
	"sync"

	"dwv-scraper/models"
)

// MemoryStore is an in-process ListingStore keyed by title. It backs tests
// and store-less local runs (POSTGRES_DISABLE=true).
type MemoryStore struct {
	mu       sync.RWMutex
	listings map[string]*models.Listing
}

var _ ListingStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{listings: make(map[string]*models.Listing)}
}

// GetExistingTitles returns the subset of titles already stored.
func (s *MemoryStore) GetExistingTitles(_ context.Context, titles []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var existing []string
	for _, title := range titles {
		if _, ok := s.listings[title]; ok {
			existing = append(existing, title)
		}
	}
	return existing, nil
}

// InsertListings stores listings by title, skipping ones already present.
func (s *MemoryStore) InsertListings(_ context.Context, listings []*models.Listing) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	for _, l := range listings {
		if _, exists := s.listings[l.Title]; exists {
			continue
		}
		s.listings[l.Title] = l
		saved++
	}
	return saved, nil
}

// FetchAll returns every stored listing in unspecified order.
func (s *MemoryStore) FetchAll(_ context.Context) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listings := make([]*models.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		listings = append(listings, l)
	}
	return listings, nil
}

// Len reports how many listings are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listings)
}

func (s *MemoryStore) Close() error { return nil }
