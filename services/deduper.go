package services

import (
	"strings"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

// Deduper removes duplicate listings, both within a single extraction run and
// against what the store already holds.
type Deduper struct {
	logger *utils.Logger
}

// NewDeduper creates a Deduper with the given logger.
func NewDeduper(logger *utils.Logger) *Deduper {
	return &Deduper{logger: logger}
}

// DedupeWithinRun collapses entries sharing a case-insensitive
// (title, location) key, keeping the first occurrence. Idempotent.
func (d *Deduper) DedupeWithinRun(listings []*models.Listing) []*models.Listing {
	seen := make(map[string]struct{}, len(listings))
	result := make([]*models.Listing, 0, len(listings))

	for _, l := range listings {
		key := strings.ToLower(strings.TrimSpace(l.Title)) + "|" +
			strings.ToLower(strings.TrimSpace(l.Location))
		if _, dup := seen[key]; dup {
			d.logger.Debug("[deduper] in-run duplicate skipped: %s", l.Title)
			continue
		}
		seen[key] = struct{}{}
		result = append(result, l)
	}

	if len(result) != len(listings) {
		d.logger.Info("[deduper] in-run dedup: %d → %d listings", len(listings), len(result))
	}
	return result
}

// DedupeAgainstStore drops listings whose exact title appears in the set of
// already-persisted titles. Title-only matching mirrors how the store keys
// records; see DESIGN.md for the known false-positive tradeoff.
func (d *Deduper) DedupeAgainstStore(listings []*models.Listing, existingTitles []string) []*models.Listing {
	if len(existingTitles) == 0 {
		return listings
	}

	existing := make(map[string]struct{}, len(existingTitles))
	for _, title := range existingTitles {
		existing[title] = struct{}{}
	}

	result := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if _, dup := existing[l.Title]; dup {
			d.logger.Debug("[deduper] already stored, skipped: %s", l.Title)
			continue
		}
		result = append(result, l)
	}

	if len(result) != len(listings) {
		d.logger.Info("[deduper] store dedup: %d → %d listings", len(listings), len(result))
	}
	return result
}
