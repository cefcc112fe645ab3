package storage

import (
	"context"

	"dwv-scraper/models"
)

// ListingStore is the persistence collaborator contract the pipeline depends
// on. Both operations are fallible I/O; the orchestrator treats errors as
// "zero matched / zero saved" rather than propagating them.
type ListingStore interface {
	// GetExistingTitles returns the subset of the given titles that are
	// already persisted.
	GetExistingTitles(ctx context.Context, titles []string) ([]string, error)
	// InsertListings persists a batch and reports how many rows were
	// actually inserted (conflicts are skipped, not errors).
	InsertListings(ctx context.Context, listings []*models.Listing) (int, error)
	Close() error
}

// ListingFetcher is implemented by stores that can also enumerate their
// contents, for the UI-facing insight and export paths.
type ListingFetcher interface {
	FetchAll(ctx context.Context) ([]*models.Listing, error)
}
