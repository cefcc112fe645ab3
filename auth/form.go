package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

// csrfPatterns locate an anti-forgery token on the login page. First match
// wins.
var csrfPatterns = []*regexp.Regexp{
	regexp.MustCompile(`name="csrf_token"[^>]*value="([^"]+)"`),
	regexp.MustCompile(`name="_token"[^>]*value="([^"]+)"`),
	regexp.MustCompile(`name="authenticity_token"[^>]*value="([^"]+)"`),
	regexp.MustCompile(`name="csrf-token"[^>]*content="([^"]+)"`),
	regexp.MustCompile(`csrfToken["']?\s*[:=]\s*["']([^"']+)["']`),
}

// errorFragmentPatterns pull a human-readable failure message out of known
// error-containing HTML fragments.
var errorFragmentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<div[^>]*class="[^"]*(?:error|alert|invalid)[^"]*"[^>]*>\s*([^<]+?)\s*<`),
	regexp.MustCompile(`(?is)<span[^>]*class="[^"]*(?:error|alert)[^"]*"[^>]*>\s*([^<]+?)\s*<`),
	regexp.MustCompile(`(?is)<p[^>]*class="[^"]*(?:error|message)[^"]*"[^>]*>\s*([^<]+?)\s*<`),
}

// primaryLoginPaths and alternateLoginPaths are the candidate form-login
// endpoints. The alternate set is only reached after the primary form and the
// API strategy both fail.
var (
	primaryLoginPaths   = []string{"/login", "/entrar"}
	alternateLoginPaths = []string{"/signin", "/auth", "/auth/login", "/account/login"}
)

// FormStrategy performs a classic GET-page / POST-credentials login with
// manual redirect handling. The same implementation backs the primary and
// alternate-path strategies; only the name and path list differ.
type FormStrategy struct {
	name    string
	client  *http.Client
	baseURL string
	paths   []string
	logger  *utils.Logger
}

// NewFormStrategy creates the primary form-login strategy.
func NewFormStrategy(client *http.Client, baseURL string, logger *utils.Logger) *FormStrategy {
	return newFormStrategy("form_login", client, baseURL, primaryLoginPaths, logger)
}

// NewAlternateStrategy creates the secondary-path form-login strategy.
func NewAlternateStrategy(client *http.Client, baseURL string, logger *utils.Logger) *FormStrategy {
	return newFormStrategy("alternate_login", client, baseURL, alternateLoginPaths, logger)
}

func newFormStrategy(name string, client *http.Client, baseURL string, paths []string, logger *utils.Logger) *FormStrategy {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &FormStrategy{
		name:    name,
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		paths:   paths,
		logger:  logger,
	}
}

func (s *FormStrategy) Name() string { return s.name }

// Login tries each candidate login path in order and returns the first
// session classified as successful.
func (s *FormStrategy) Login(ctx context.Context, creds models.Credentials) (*models.Session, error) {
	var lastErr error

	for _, path := range s.paths {
		session, err := s.loginAt(ctx, path, creds)
		if err != nil {
			s.logger.Debug("[%s] path %s: %v", s.name, path, err)
			lastErr = err
			continue
		}
		return session, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no login path accepted the credentials")
	}
	return nil, lastErr
}

func (s *FormStrategy) loginAt(ctx context.Context, path string, creds models.Credentials) (*models.Session, error) {
	pageURL := s.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch login page: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read login page: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("login page returned %d", resp.StatusCode)
	}

	token := extractCSRFToken(string(body))
	pageCookies := cookieHeaderFrom(resp.Cookies())

	form := url.Values{}
	form.Set("email", creds.Email)
	form.Set("password", creds.Password)
	if token != "" {
		form.Set("_token", token)
		form.Set("csrf_token", token)
	}

	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pageURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build POST request: %w", err)
	}
	postReq.Header.Set("User-Agent", userAgent)
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	postReq.Header.Set("Referer", pageURL)
	if pageCookies != "" {
		postReq.Header.Set("Cookie", pageCookies)
	}

	postResp, err := s.client.Do(postReq)
	if err != nil {
		return nil, fmt.Errorf("submit login form: %w", err)
	}
	postBody, err := io.ReadAll(io.LimitReader(postResp.Body, 2<<20))
	postResp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}

	cookies := mergeCookieHeaders(pageCookies, cookieHeaderFrom(postResp.Cookies()))

	ok, reason := classifyLoginResponse(postResp, string(postBody))
	if !ok {
		return nil, fmt.Errorf("login rejected: %s", reason)
	}
	if cookies == "" {
		return nil, fmt.Errorf("login accepted but no session cookie issued")
	}

	return &models.Session{
		CookieHeader: cookies,
		Identifier:   creds.Email,
	}, nil
}

// classifyLoginResponse decides whether a form POST succeeded. Redirects are
// judged by their Location, 200s by success/error indicators in the body.
func classifyLoginResponse(resp *http.Response, body string) (bool, string) {
	switch {
	case resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther:
		location := strings.ToLower(resp.Header.Get("Location"))
		if containsAny(location, loginFailureKeywords) {
			return false, fmt.Sprintf("redirected back to login (%s)", location)
		}
		if location == "/" || containsAny(location, loginSuccessKeywords) {
			return true, ""
		}
		// Redirect away from the login page with no failure marker counts
		// as success.
		return true, ""

	case resp.StatusCode == http.StatusOK:
		lower := strings.ToLower(body)
		if containsAny(lower, bodyErrorIndicators) {
			return false, extractErrorMessage(body)
		}
		if containsAny(lower, bodySuccessIndicators) {
			return true, ""
		}
		return false, "response body has no success indicator"

	default:
		return false, fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
}

// extractCSRFToken applies the ordered pattern list to the login page body.
func extractCSRFToken(body string) string {
	for _, pattern := range csrfPatterns {
		if m := pattern.FindStringSubmatch(body); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// extractErrorMessage pulls a readable failure message from known error
// fragments, falling back to a generic message.
func extractErrorMessage(body string) string {
	for _, pattern := range errorFragmentPatterns {
		if m := pattern.FindStringSubmatch(body); len(m) > 1 {
			msg := strings.TrimSpace(m[1])
			if msg != "" {
				return msg
			}
		}
	}
	return "credentials rejected"
}

func cookieHeaderFrom(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// mergeCookieHeaders combines two cookie headers, later values overriding
// earlier ones with the same name.
func mergeCookieHeaders(headers ...string) string {
	order := make([]string, 0)
	values := make(map[string]string)

	for _, header := range headers {
		for _, part := range strings.Split(header, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, found := strings.Cut(part, "=")
			if !found {
				continue
			}
			if _, seen := values[name]; !seen {
				order = append(order, name)
			}
			values[name] = value
		}
	}

	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, name+"="+values[name])
	}
	return strings.Join(parts, "; ")
}
