package auth

import (
	"testing"
	"time"

	"dwv-scraper/models"
)

func TestCacheKeyDerivation(t *testing.T) {
	if got := CacheKey("user@example.com"); got != "session_user@example.com" {
		t.Errorf("CacheKey: got %q", got)
	}
}

func TestCachePutGet(t *testing.T) {
	c := NewMemorySessionCache()
	session := &models.Session{CookieHeader: "sess=abc", Identifier: "user@example.com"}

	c.Put("k", session, time.Minute)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.CookieHeader != "sess=abc" {
		t.Errorf("CookieHeader: got %q", got.CookieHeader)
	}
}

func TestCacheLazyEviction(t *testing.T) {
	c := NewMemorySessionCache()
	c.Put("k", &models.Session{CookieHeader: "sess=abc"}, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry must be evicted on lookup")
	}
	// Second lookup confirms the entry was actually deleted, not just hidden.
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry resurfaced after eviction")
	}
}

func TestCacheClear(t *testing.T) {
	c := NewMemorySessionCache()
	c.Put("k", &models.Session{CookieHeader: "sess=abc"}, time.Minute)
	c.Clear("k")

	if _, ok := c.Get("k"); ok {
		t.Fatal("cleared entry must be gone")
	}
}

func TestCacheReplaceWhole(t *testing.T) {
	c := NewMemorySessionCache()
	c.Put("k", &models.Session{CookieHeader: "sess=old"}, time.Minute)
	c.Put("k", &models.Session{CookieHeader: "sess=new"}, time.Minute)

	got, ok := c.Get("k")
	if !ok || got.CookieHeader != "sess=new" {
		t.Fatalf("expected replacement entry, got %+v (hit=%v)", got, ok)
	}
}
