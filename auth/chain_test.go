package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger(false) }

var testCreds = models.Credentials{Email: "user@example.com", Password: "secret"}

// stubStrategy stands in for the browser strategy in chain tests.
type stubStrategy struct {
	name    string
	called  atomic.Int32
	session *models.Session
	err     error
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Login(context.Context, models.Credentials) (*models.Session, error) {
	s.called.Add(1)
	return s.session, s.err
}

// newFormLoginServer simulates the DWV app: a login page with a CSRF token,
// a form POST answering 302 → /dashboard, and a protected dashboard.
func newFormLoginServer(t *testing.T, loginPosts *atomic.Int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/login" && r.Method == http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "sess", Value: "page"})
			fmt.Fprint(w, `<form method="post">
				<input type="hidden" name="csrf_token" value="abc123">
				<input name="email"><input name="password" type="password">
			</form>`)

		case r.URL.Path == "/login" && r.Method == http.MethodPost:
			loginPosts.Add(1)
			if err := r.ParseForm(); err != nil {
				http.Error(w, "bad form", http.StatusBadRequest)
				return
			}
			if r.PostForm.Get("csrf_token") != "abc123" {
				http.Error(w, "missing token", http.StatusForbidden)
				return
			}
			if r.PostForm.Get("email") != testCreds.Email || r.PostForm.Get("password") != testCreds.Password {
				http.Redirect(w, r, "/login?failed=1", http.StatusFound)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "auth", Value: "tok"})
			http.Redirect(w, r, "/dashboard", http.StatusFound)

		case r.URL.Path == "/dashboard":
			if cookie, err := r.Cookie("auth"); err == nil && cookie.Value == "tok" {
				fmt.Fprint(w, "<h1>Dashboard</h1>")
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)

		default:
			http.NotFound(w, r)
		}
	}))
}

func newChain(srvURL string, strategies ...Strategy) *Authenticator {
	logger := newTestLogger()
	validator := NewValidator(noRedirectClient(), srvURL, logger)
	return NewAuthenticator(NewMemorySessionCache(), validator, 30*time.Minute, logger, strategies...)
}

func TestAuthenticateFormLogin(t *testing.T) {
	var loginPosts atomic.Int32
	srv := newFormLoginServer(t, &loginPosts)
	defer srv.Close()

	chain := newChain(srv.URL, NewFormStrategy(noRedirectClient(), srv.URL, newTestLogger()))

	result := chain.Authenticate(context.Background(), testCreds)
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Message)
	}
	if result.Method != "form_login" {
		t.Errorf("Method: got %q, want form_login", result.Method)
	}
	if result.Session == nil || result.Session.CookieHeader == "" {
		t.Fatal("expected a session with cookies")
	}
}

func TestAuthenticateReusesCachedSession(t *testing.T) {
	var loginPosts atomic.Int32
	srv := newFormLoginServer(t, &loginPosts)
	defer srv.Close()

	chain := newChain(srv.URL, NewFormStrategy(noRedirectClient(), srv.URL, newTestLogger()))

	first := chain.Authenticate(context.Background(), testCreds)
	if !first.Success {
		t.Fatalf("first call failed: %s", first.Message)
	}
	second := chain.Authenticate(context.Background(), testCreds)
	if !second.Success {
		t.Fatalf("second call failed: %s", second.Message)
	}

	if second.Method != "existing_session" {
		t.Errorf("second call method: got %q, want existing_session", second.Method)
	}
	if n := loginPosts.Load(); n != 1 {
		t.Errorf("login POSTs: got %d, want 1 (cache hit must not re-login)", n)
	}
}

func TestAuthenticateFallsThroughToLastStrategy(t *testing.T) {
	// Every endpoint 404s, so all HTTP strategies fail.
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	browser := &stubStrategy{name: "browser_login", err: errors.New("no chrome available")}
	chain := newChain(srv.URL,
		NewFormStrategy(noRedirectClient(), srv.URL, newTestLogger()),
		NewAPIStrategy(nil, srv.URL, newTestLogger()),
		NewAlternateStrategy(noRedirectClient(), srv.URL, newTestLogger()),
		browser,
	)

	result := chain.Authenticate(context.Background(), testCreds)
	if result.Success {
		t.Fatal("expected overall failure")
	}
	if result.Message != "all strategies failed" {
		t.Errorf("Message: got %q", result.Message)
	}
	if browser.called.Load() != 1 {
		t.Errorf("browser strategy must be reached after the HTTP strategies, called=%d", browser.called.Load())
	}
}

func TestAuthenticateRejectsUnvalidatedStrategyResult(t *testing.T) {
	// Strategy "succeeds" but its session probes nowhere — the chain must
	// treat it as a false positive and keep going.
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	liar := &stubStrategy{name: "liar", session: &models.Session{CookieHeader: "sess=fake"}}
	chain := newChain(srv.URL, liar)

	result := chain.Authenticate(context.Background(), testCreds)
	if result.Success {
		t.Fatal("unvalidated session must not produce success")
	}
}

func TestAuthenticateEmptyCredentials(t *testing.T) {
	browser := &stubStrategy{name: "browser_login", err: errors.New("unreachable")}
	chain := newChain("http://127.0.0.1:0", browser)

	result := chain.Authenticate(context.Background(), models.Credentials{})
	if result.Success {
		t.Fatal("empty credentials must fail")
	}
	if browser.called.Load() != 0 {
		t.Error("empty credentials must short-circuit before any strategy")
	}
}
