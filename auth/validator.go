package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

// defaultProbePaths are resources known to require an authorized session.
var defaultProbePaths = []string{
	"/dashboard",
	"/imoveis",
	"/profile",
	"/api/user",
	"/minha-conta",
}

// Validator confirms that a candidate session is actually authorized. A login
// response can look successful without granting access, so the chain never
// trusts a strategy result until it passes here.
type Validator struct {
	client     *http.Client
	baseURL    string
	probePaths []string
	logger     *utils.Logger
}

// NewValidator wires a Validator against baseURL. A nil client gets a default
// that reports redirects instead of following them.
func NewValidator(client *http.Client, baseURL string, logger *utils.Logger) *Validator {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Validator{
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		probePaths: defaultProbePaths,
		logger:     logger,
	}
}

// Validate probes the protected paths with the session's cookie header and
// returns true at the first probe that indicates authorized access. Probe
// network errors are swallowed; the next path is tried.
func (v *Validator) Validate(ctx context.Context, session *models.Session) bool {
	if session == nil || session.CookieHeader == "" {
		return false
	}

	for _, path := range v.probePaths {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+path, nil)
		if err != nil {
			continue
		}
		req.Header.Set("Cookie", session.CookieHeader)
		req.Header.Set("User-Agent", userAgent)

		resp, err := v.client.Do(req)
		if err != nil {
			v.logger.Debug("[validator] probe %s failed: %v", path, err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			v.logger.Debug("[validator] probe %s → %d, session authorized", path, resp.StatusCode)
			return true
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := strings.ToLower(resp.Header.Get("Location"))
			if location != "" && !containsAny(location, loginFailureKeywords) {
				v.logger.Debug("[validator] probe %s redirected to %s, session authorized", path, location)
				return true
			}
		}
	}

	return false
}
