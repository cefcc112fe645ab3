package dwv

import (
	"context"
	"net/url"

	"dwv-scraper/models"
)

// searchQueries are generic keyword probes — city and property-type words —
// used only when every other stage left the chain under threshold.
var searchQueries = []string{
	"Curitiba",
	"apartamento",
	"casa",
	"cobertura",
}

// searchPaths are candidate search URL prefixes; the escaped query is
// appended.
var searchPaths = []string{
	"/busca?q=",
	"/search?q=",
}

// searchStage runs the dual-strategy extraction against fixed keyword
// searches, as a last resort.
func (s *Scraper) searchStage(ctx context.Context, session *models.Session) ([]*models.Listing, error) {
	var listings []*models.Listing

	for _, query := range searchQueries {
		for _, base := range searchPaths {
			path := base + url.QueryEscape(query)

			status, body, err := s.fetch(ctx, session, path)
			if err != nil {
				s.logger.Debug("[extract/search] %q via %s: %v", query, base, err)
				continue
			}
			if status < 200 || status >= 300 {
				continue
			}
			if isLoggedOut(body) {
				s.logger.Warn("[extract/search] search page demands login, stopping stage")
				return listings, ErrLoggedOut
			}

			found := s.extractAny(body, s.baseURL+path)
			if len(found) > 0 {
				s.logger.Debug("[extract/search] %q yielded %d listings", query, len(found))
				listings = append(listings, found...)
				break
			}
		}
	}

	return listings, nil
}
