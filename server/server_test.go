package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"dwv-scraper/models"
	"dwv-scraper/pipeline"
	"dwv-scraper/services"
	"dwv-scraper/storage"
	"dwv-scraper/utils"
)

type stubAuth struct {
	calls     atomic.Int32
	succeed   bool
	lastEmail string
}

func (s *stubAuth) Authenticate(ctx context.Context, creds models.Credentials) models.AuthResult {
	s.calls.Add(1)
	s.lastEmail = creds.Email
	if !s.succeed {
		return models.AuthResult{Success: false, Message: "all strategies failed"}
	}
	return models.AuthResult{
		Success: true,
		Session: &models.Session{CookieHeader: "sess=ok"},
		Method:  "form_login",
	}
}

type stubExtractor struct {
	listings []*models.Listing
}

func (s *stubExtractor) Extract(ctx context.Context, session *models.Session) models.ExtractionResult {
	return models.ExtractionResult{
		Success:  len(s.listings) > 0,
		Listings: s.listings,
		Source:   "api",
	}
}

func newTestServer(auth *stubAuth, listings []*models.Listing, store storage.ListingStore) *Server {
	logger := utils.NewLogger(false)
	if store == nil {
		store = storage.NewMemoryStore()
	}
	orchestrator := pipeline.New(auth, &stubExtractor{listings: listings}, store,
		services.NewDeduper(logger), logger, pipeline.Options{
			MaxRetries:     1,
			RetryBaseDelay: time.Millisecond,
		})
	return New(orchestrator, auth, store,
		models.Credentials{Email: "default@example.com", Password: "secret"}, logger)
}

func sampleListings() []*models.Listing {
	return []*models.Listing{
		{Title: "Casa A", Price: "R$ 200.000", Location: "Curitiba", Status: models.StatusActive},
		{Title: "Apto B", Price: "R$ 450.000", Location: "Curitiba", Status: models.StatusActive},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubAuth{succeed: true}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body: %v", body)
	}
}

func TestPreflightBypassesPipeline(t *testing.T) {
	auth := &stubAuth{succeed: true}
	srv := newTestServer(auth, sampleListings(), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/scrape", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
	if auth.calls.Load() != 0 {
		t.Error("preflight must not start a run")
	}
}

func TestScrapeSuccess(t *testing.T) {
	store := storage.NewMemoryStore()
	srv := newTestServer(&stubAuth{succeed: true}, sampleListings(), store)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var result models.ProcessResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.ListingsSaved != 2 {
		t.Errorf("ListingsSaved: got %d, want 2", result.ListingsSaved)
	}
	if store.Len() != 2 {
		t.Errorf("store size: got %d, want 2", store.Len())
	}
}

func TestScrapeFailureStatus(t *testing.T) {
	srv := newTestServer(&stubAuth{succeed: false}, nil, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scrape", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}
}

func TestAuthEndpointCredentialOverride(t *testing.T) {
	auth := &stubAuth{succeed: true}
	srv := newTestServer(auth, nil, nil)

	body := strings.NewReader(`{"email": "override@example.com"}`)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if auth.lastEmail != "override@example.com" {
		t.Errorf("email: got %q, want the body override", auth.lastEmail)
	}

	var result models.AuthResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Method != "form_login" {
		t.Errorf("Method: got %q", result.Method)
	}
}

func TestStatusReflectsLastRun(t *testing.T) {
	srv := newTestServer(&stubAuth{succeed: true}, sampleListings(), nil)
	router := srv.Router()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/scrape", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var meta models.RunMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatal(err)
	}
	if !meta.Success || meta.Saved != 2 {
		t.Errorf("metadata: %+v", meta)
	}
}

func TestInsightsEndpoint(t *testing.T) {
	store := storage.NewMemoryStore()
	if _, err := store.InsertListings(context.Background(), sampleListings()); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(&stubAuth{succeed: true}, nil, store)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/insights", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var report models.InsightReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.TotalListings != 2 {
		t.Errorf("TotalListings: got %d, want 2", report.TotalListings)
	}
}
