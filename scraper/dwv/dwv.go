package dwv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dwv-scraper/config"
	"dwv-scraper/models"
	"dwv-scraper/services"
	"dwv-scraper/utils"
)

// ErrLoggedOut signals that a page response carried login-page markers: the
// session is dead and further requests with it would be wasted.
var ErrLoggedOut = errors.New("session rejected: logged out mid-extraction")

// Scraper runs the content-extraction strategy chain against an
// authenticated DWV session: API endpoints first, then rendered listing
// pages, the dashboard area, and keyword search as a last resort.
type Scraper struct {
	client     *http.Client
	normalizer *services.Normalizer
	logger     *utils.Logger
	pacer      *utils.Pacer
	retry      *utils.RetryConfig

	baseURL        string
	minCount       int
	maxLinkFollows int
}

// New creates a ready-to-use Scraper. A nil client gets a default with the
// configured timeout.
func New(cfg *config.Config, client *http.Client, logger *utils.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.RequestTimeoutSec) * time.Second}
	}
	return &Scraper{
		client:     client,
		normalizer: services.NewNormalizer(logger),
		logger:     logger,
		pacer:      utils.NewPacer(time.Duration(cfg.RateLimitMs) * time.Millisecond),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		baseURL:        strings.TrimRight(cfg.DWVBaseURL, "/"),
		minCount:       cfg.ExtractionMinCount,
		maxLinkFollows: cfg.MaxLinkFollows,
	}
}

type stage struct {
	name string
	run  func(ctx context.Context, session *models.Session) ([]*models.Listing, error)
}

// Extract runs the stages in order, moving to the next fallback only while
// the aggregate stays below the configured threshold. A stage's total failure
// never aborts the chain; whatever the stages produced is aggregated.
func (s *Scraper) Extract(ctx context.Context, session *models.Session) models.ExtractionResult {
	stages := []stage{
		{"api", s.apiStage},
		{"pages", s.pagesStage},
		{"dashboard", s.dashboardStage},
		{"search", s.searchStage},
	}

	var (
		aggregate []*models.Listing
		sources   []string
		loggedOut bool
	)

	for i, st := range stages {
		if i > 0 && len(aggregate) >= s.minCount {
			s.logger.Info("[extract] %d listings collected, skipping remaining stages", len(aggregate))
			break
		}
		if loggedOut {
			break
		}

		var stageListings []*models.Listing
		err := s.retry.Do("extract-"+st.name, func() error {
			var stageErr error
			stageListings, stageErr = st.run(ctx, session)
			if errors.Is(stageErr, ErrLoggedOut) {
				loggedOut = true
				// Partial results before the logout marker still count.
				return nil
			}
			return stageErr
		})
		if err != nil {
			s.logger.Warn("[extract] stage %s abandoned: %v", st.name, err)
			continue
		}

		if len(stageListings) > 0 {
			aggregate = append(aggregate, stageListings...)
			sources = append(sources, st.name)
		}
		s.logger.Info("[extract] stage %s produced %d listings (total %d)",
			st.name, len(stageListings), len(aggregate))
	}

	result := models.ExtractionResult{
		Success:  len(aggregate) > 0,
		Listings: aggregate,
		Source:   strings.Join(sources, ","),
	}
	if loggedOut {
		result.Message = "extraction stopped early: session no longer authorized"
	}
	if len(aggregate) == 0 {
		result.Error = "no listings extracted by any stage"
	}
	return result
}

// fetch issues a paced GET with the session cookie attached and returns the
// status code and a bounded read of the body.
func (s *Scraper) fetch(ctx context.Context, session *models.Session, pathOrURL string) (int, []byte, error) {
	s.pacer.Wait()

	target := pathOrURL
	if strings.HasPrefix(pathOrURL, "/") {
		target = s.baseURL + pathOrURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cookie", session.CookieHeader)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s: %w", target, err)
	}
	return resp.StatusCode, body, nil
}

// extractAny applies the dual JSON-then-HTML strategy to a response body.
func (s *Scraper) extractAny(body []byte, sourceURL string) []*models.Listing {
	if looksLikeJSON(body) {
		return s.listingsFromJSON(body, sourceURL)
	}
	return s.listingsFromHTML(body, sourceURL)
}

// wrapperKeys are the known envelope keys under which a listings array may
// hide, checked in order before falling back to "the value is the array".
var wrapperKeys = []string{"data", "items", "results", "properties", "imoveis", "listings", "anuncios"}

// listingsFromJSON locates the listings array inside an arbitrary JSON shape
// and normalizes each element.
func (s *Scraper) listingsFromJSON(raw []byte, sourceURL string) []*models.Listing {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		s.logger.Debug("[extract] body is not valid JSON: %v", err)
		return nil
	}

	var items []any
	switch node := parsed.(type) {
	case []any:
		items = node
	case map[string]any:
		for _, key := range wrapperKeys {
			if arr, ok := node[key].([]any); ok {
				items = arr
				break
			}
		}
	}

	listings := make([]*models.Listing, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if l := s.normalizer.NormalizeItem(obj, sourceURL); l != nil {
			listings = append(listings, l)
		}
	}
	return listings
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
