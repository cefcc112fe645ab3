package dwv

import (
	"context"
	"fmt"

	"dwv-scraper/models"
)

// apiEndpoints are the candidate JSON listing endpoints, tried in order.
var apiEndpoints = []string{
	"/api/properties",
	"/api/imoveis",
	"/api/v1/properties",
	"/api/listings",
	"/api/imoveis/disponiveis",
}

// apiStage calls each candidate JSON endpoint with the session cookie and
// aggregates whatever normalizes into listings. The stage only reports an
// error (and so becomes retryable) when every endpoint failed at the network
// level; 404s and empty bodies are final answers.
func (s *Scraper) apiStage(ctx context.Context, session *models.Session) ([]*models.Listing, error) {
	var (
		listings    []*models.Listing
		networkErrs int
	)

	for _, endpoint := range apiEndpoints {
		status, body, err := s.fetch(ctx, session, endpoint)
		if err != nil {
			s.logger.Debug("[extract/api] %s: %v", endpoint, err)
			networkErrs++
			continue
		}
		if status < 200 || status >= 300 {
			s.logger.Debug("[extract/api] %s returned %d", endpoint, status)
			continue
		}
		if !looksLikeJSON(body) {
			s.logger.Debug("[extract/api] %s returned non-JSON body", endpoint)
			continue
		}

		found := s.listingsFromJSON(body, s.baseURL+endpoint)
		if len(found) > 0 {
			s.logger.Debug("[extract/api] %s yielded %d listings", endpoint, len(found))
			listings = append(listings, found...)
		}
	}

	if len(listings) == 0 && networkErrs == len(apiEndpoints) {
		return nil, fmt.Errorf("all %d API endpoints unreachable", networkErrs)
	}
	return listings, nil
}
