package services

import (
	"testing"

	"dwv-scraper/models"
)

func listing(title, location string) *models.Listing {
	return &models.Listing{Title: title, Location: location}
}

func TestDedupeWithinRunCaseInsensitiveKey(t *testing.T) {
	d := NewDeduper(newTestLogger())

	in := []*models.Listing{
		listing("Casa X", "Curitiba"),
		listing("casa x", "CURITIBA"),
		listing("Casa X", "São Paulo"), // same title, different location — kept
		listing("Casa Y", "Curitiba"),
	}

	out := d.DedupeWithinRun(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(out))
	}
	if out[0].Title != "Casa X" || out[0].Location != "Curitiba" {
		t.Errorf("first occurrence must win, got %+v", out[0])
	}
}

func TestDedupeWithinRunIdempotent(t *testing.T) {
	d := NewDeduper(newTestLogger())

	in := []*models.Listing{
		listing("A", "X"),
		listing("A", "X"),
		listing("B", "Y"),
	}

	once := d.DedupeWithinRun(in)
	twice := d.DedupeWithinRun(once)

	if len(once) != len(twice) {
		t.Fatalf("idempotence violated: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("entry %d differs after second pass", i)
		}
	}
}

func TestDedupeAgainstStore(t *testing.T) {
	d := NewDeduper(newTestLogger())

	in := []*models.Listing{
		listing("Casa X", "Curitiba"),
		listing("Casa Y", "Curitiba"),
		listing("Casa Z", "Curitiba"),
	}

	out := d.DedupeAgainstStore(in, []string{"Casa Y"})
	if len(out) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(out))
	}
	for _, l := range out {
		if l.Title == "Casa Y" {
			t.Error("listing with an existing title survived store dedup")
		}
	}
}

func TestDedupeAgainstStoreEmptySet(t *testing.T) {
	d := NewDeduper(newTestLogger())

	in := []*models.Listing{listing("Casa X", "Curitiba")}
	out := d.DedupeAgainstStore(in, nil)
	if len(out) != 1 {
		t.Fatalf("empty existing set must keep everything, got %d", len(out))
	}
}

func TestDedupeAgainstStoreCaseSensitive(t *testing.T) {
	d := NewDeduper(newTestLogger())

	// Store matching is exact, unlike the in-run key.
	in := []*models.Listing{listing("casa x", "Curitiba")}
	out := d.DedupeAgainstStore(in, []string{"Casa X"})
	if len(out) != 1 {
		t.Fatalf("store dedup must be case-sensitive, got %d listings", len(out))
	}
}
