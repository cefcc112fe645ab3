package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

// apiLoginPaths are the candidate JSON login endpoints, tried in order.
var apiLoginPaths = []string{
	"/api/auth/login",
	"/api/login",
	"/api/sessions",
	"/api/v1/auth/login",
	"/auth/api/login",
}

// apiSuccessIndicators mark a 2xx JSON body as an actual login success.
var apiSuccessIndicators = []string{"token", "user", "success"}

// APIStrategy posts JSON credentials to each candidate API endpoint; the
// first 2xx response whose body carries a success indicator wins.
type APIStrategy struct {
	client  *http.Client
	baseURL string
	logger  *utils.Logger
}

// NewAPIStrategy wires the JSON-API login strategy.
func NewAPIStrategy(client *http.Client, baseURL string, logger *utils.Logger) *APIStrategy {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIStrategy{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (s *APIStrategy) Name() string { return "api_login" }

// Login tries each API path in order.
func (s *APIStrategy) Login(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}

	var lastErr error
	for _, path := range apiLoginPaths {
		session, err := s.loginAt(ctx, path, payload, creds.Email)
		if err != nil {
			s.logger.Debug("[api_login] path %s: %v", path, err)
			lastErr = err
			continue
		}
		return session, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no API endpoint accepted the credentials")
	}
	return nil, lastErr
}

func (s *APIStrategy) loginAt(ctx context.Context, path string, payload []byte, email string) (*models.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post credentials: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}

	lower := strings.ToLower(string(body))
	if !containsAny(lower, apiSuccessIndicators) {
		return nil, fmt.Errorf("2xx response without success indicator")
	}

	cookies := cookieHeaderFrom(resp.Cookies())
	if cookies == "" {
		// Token-only APIs issue no cookie; carry the bearer token in the
		// cookie header slot so downstream requests can still present it.
		if token := extractBearerToken(body); token != "" {
			cookies = "token=" + token
		}
	}
	if cookies == "" {
		return nil, fmt.Errorf("login succeeded but response carried no cookie or token")
	}

	return &models.Session{
		CookieHeader: cookies,
		Identifier:   email,
	}, nil
}

// extractBearerToken digs a token out of common JSON response shapes.
func extractBearerToken(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	for _, key := range []string{"token", "access_token", "accessToken", "jwt"} {
		if val, ok := parsed[key].(string); ok && val != "" {
			return val
		}
	}
	if data, ok := parsed["data"].(map[string]any); ok {
		for _, key := range []string{"token", "access_token", "accessToken"} {
			if val, ok := data[key].(string); ok && val != "" {
				return val
			}
		}
	}
	return ""
}
