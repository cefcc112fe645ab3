package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"dwv-scraper/models"
	"dwv-scraper/pipeline"
	"dwv-scraper/services"
	"dwv-scraper/storage"
	"dwv-scraper/utils"
)

// Server exposes the pipeline to the browser UI: a full-run endpoint, an
// auth-only diagnostic endpoint, last-run status, insights, and a health
// check.
type Server struct {
	orchestrator *pipeline.Orchestrator
	auth         pipeline.Authenticator
	store        storage.ListingStore
	insights     *services.InsightService
	defaultCreds models.Credentials
	logger       *utils.Logger
}

// New wires the HTTP layer.
func New(orchestrator *pipeline.Orchestrator, auth pipeline.Authenticator,
	store storage.ListingStore, defaultCreds models.Credentials, logger *utils.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		auth:         auth,
		store:        store,
		insights:     services.NewInsightService(logger),
		defaultCreds: defaultCreds,
		logger:       logger,
	}
}

// Router builds the mux router with CORS applied to every route. Preflight
// OPTIONS requests are answered without touching the pipeline.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/api/scrape", s.handleScrape).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/auth", s.handleAuth).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/insights", s.handleInsights).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// credentialOverride is the optional request body for both POST endpoints.
type credentialOverride struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) credentials(r *http.Request) models.Credentials {
	creds := s.defaultCreds

	var override credentialOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err == nil {
		if override.Email != "" {
			creds.Email = override.Email
		}
		if override.Password != "" {
			creds.Password = override.Password
		}
	}
	return creds
}

// handleScrape runs the full pipeline and returns the ProcessResult as JSON:
// 200 on success, 500 on pipeline failure.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("[server] scrape requested by %s", r.RemoteAddr)

	result := s.orchestrator.Run(r.Context(), s.credentials(r))

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// handleAuth runs the authentication chain only — used for diagnostics and
// health checks of the login flow.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("[server] auth check requested by %s", r.RemoteAddr)

	result := s.auth.Authenticate(r.Context(), s.credentials(r))

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// handleStatus reports metadata about the most recent run.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.LastRun())
}

// handleInsights serves aggregates over the stored listings. Requires a
// store that can enumerate its contents.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	fetcher, ok := s.store.(storage.ListingFetcher)
	if !ok {
		writeJSON(w, http.StatusNotImplemented,
			map[string]string{"error": "store does not support enumeration"})
		return
	}

	listings, err := fetcher.FetchAll(r.Context())
	if err != nil {
		s.logger.Error("[server] insights fetch failed: %v", err)
		writeJSON(w, http.StatusInternalServerError,
			map[string]string{"error": "failed to load listings"})
		return
	}
	writeJSON(w, http.StatusOK, s.insights.Generate(listings))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
