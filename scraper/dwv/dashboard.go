package dwv

import (
	"bytes"
	"context"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

// dashboardPaths are account-area pages that sometimes list the user's
// portfolio when the public pages do not.
var dashboardPaths = []string{
	"/dashboard",
	"/minha-conta",
	"/painel",
	"/account",
}

// listingLinkPattern recognizes hrefs that point at individual listings.
var listingLinkPattern = regexp.MustCompile(`/(?:imove(?:l|is)|propert(?:y|ies)|listings?|anuncios?)/[\w-]+`)

// dashboardStage applies the dual JSON-then-HTML strategy to the dashboard
// paths and additionally follows a bounded number of listing-like links
// discovered there, so the crawl can never run away.
func (s *Scraper) dashboardStage(ctx context.Context, session *models.Session) ([]*models.Listing, error) {
	var listings []*models.Listing
	visited := utils.NewURLSet()
	follows := 0

	for _, path := range dashboardPaths {
		status, body, err := s.fetch(ctx, session, path)
		if err != nil {
			s.logger.Debug("[extract/dashboard] %s: %v", path, err)
			continue
		}
		if status < 200 || status >= 300 {
			s.logger.Debug("[extract/dashboard] %s returned %d", path, status)
			continue
		}
		if isLoggedOut(body) {
			s.logger.Warn("[extract/dashboard] %s looks like a login page, stopping stage", path)
			return listings, ErrLoggedOut
		}

		found := s.extractAny(body, s.baseURL+path)
		listings = append(listings, found...)

		for _, link := range discoverListingLinks(body) {
			if follows >= s.maxLinkFollows {
				break
			}
			if !visited.Add(link) {
				continue
			}
			follows++

			status, linkBody, err := s.fetch(ctx, session, link)
			if err != nil || status < 200 || status >= 300 {
				s.logger.Debug("[extract/dashboard] follow %s failed (status %d): %v", link, status, err)
				continue
			}
			if detail := s.extractAny(linkBody, s.baseURL+link); len(detail) > 0 {
				listings = append(listings, detail...)
			}
		}
	}

	return listings, nil
}

// discoverListingLinks pulls listing-like hrefs out of a page body.
func discoverListingLinks(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		if m := listingLinkPattern.FindString(href); m != "" {
			links = append(links, m)
		}
	})
	return links
}
