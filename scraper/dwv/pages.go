package dwv

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dwv-scraper/models"
)

// listingPagePaths are the rendered HTML pages likely to carry listing cards.
var listingPagePaths = []string{
	"/imoveis",
	"/properties",
	"/listings",
	"/busca",
}

// embeddedJSONPatterns recognize state dumps inside script tags. Checked
// before any HTML card matching because the embedded JSON is richer.
var embeddedJSONPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\})\s*;?\s*</script>`),
	regexp.MustCompile(`(?s)window\.__NUXT__\s*=\s*(\{.*?\})\s*;?\s*</script>`),
	regexp.MustCompile(`(?s)<script[^>]*type="application/json"[^>]*>(.*?)</script>`),
}

// cardSelectors locate repeating listing-card structures, tried in order.
var cardSelectors = []string{
	`div.property-card`,
	`div.card-imovel`,
	`div.listing-card`,
	`article.imovel`,
	`div[class*="card"]`,
}

// loggedOutMarkers in a page body mean the session is dead.
var loggedOutMarkers = []string{
	`name="password"`,
	"faça login",
	"faca login",
	"entrar na sua conta",
	"sessão expirada",
	"sessao expirada",
}

// pagesStage fetches the candidate listing pages and applies the dual
// embedded-JSON-then-HTML-card strategy to each. It stops early with
// ErrLoggedOut when a page shows login markers.
func (s *Scraper) pagesStage(ctx context.Context, session *models.Session) ([]*models.Listing, error) {
	var (
		listings    []*models.Listing
		networkErrs int
	)

	for _, path := range listingPagePaths {
		status, body, err := s.fetch(ctx, session, path)
		if err != nil {
			s.logger.Debug("[extract/pages] %s: %v", path, err)
			networkErrs++
			continue
		}
		if status < 200 || status >= 300 {
			s.logger.Debug("[extract/pages] %s returned %d", path, status)
			continue
		}
		if isLoggedOut(body) {
			s.logger.Warn("[extract/pages] %s looks like a login page, stopping stage", path)
			return listings, ErrLoggedOut
		}

		found := s.listingsFromHTML(body, s.baseURL+path)
		if len(found) > 0 {
			s.logger.Debug("[extract/pages] %s yielded %d listings", path, len(found))
			listings = append(listings, found...)
		}
	}

	if len(listings) == 0 && networkErrs == len(listingPagePaths) {
		return nil, fmt.Errorf("all %d listing pages unreachable", networkErrs)
	}
	return listings, nil
}

// listingsFromHTML first looks for embedded JSON state dumps, then falls back
// to matching repeating card structures with goquery and normalizing each
// card fragment through the regex extractor tables.
func (s *Scraper) listingsFromHTML(body []byte, sourceURL string) []*models.Listing {
	text := string(body)

	for _, pattern := range embeddedJSONPatterns {
		m := pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if listings := s.listingsFromJSON([]byte(m[1]), sourceURL); len(listings) > 0 {
			s.logger.Debug("[extract/html] embedded JSON yielded %d listings", len(listings))
			return listings
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.logger.Debug("[extract/html] parse document: %v", err)
		return nil
	}

	for _, selector := range cardSelectors {
		cards := doc.Find(selector)
		if cards.Length() == 0 {
			continue
		}

		var listings []*models.Listing
		cards.Each(func(_ int, card *goquery.Selection) {
			fragment, err := goquery.OuterHtml(card)
			if err != nil {
				return
			}
			if l := s.normalizer.NormalizeFragment(fragment, sourceURL); l != nil {
				listings = append(listings, l)
			}
		})

		if len(listings) > 0 {
			s.logger.Debug("[extract/html] selector %q yielded %d listings", selector, len(listings))
			return listings
		}
	}

	return nil
}

func isLoggedOut(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range loggedOutMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
