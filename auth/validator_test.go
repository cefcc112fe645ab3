package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"dwv-scraper/models"
)

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestValidatorAcceptsAuthorizedProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dashboard" && r.Header.Get("Cookie") == "sess=good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	v := NewValidator(noRedirectClient(), srv.URL, newTestLogger())

	if !v.Validate(context.Background(), &models.Session{CookieHeader: "sess=good"}) {
		t.Error("session with an authorized probe must validate")
	}
	if v.Validate(context.Background(), &models.Session{CookieHeader: "sess=bad"}) {
		t.Error("session rejected by every probe must not validate")
	}
}

func TestValidatorRejectsLoginRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	defer srv.Close()

	v := NewValidator(noRedirectClient(), srv.URL, newTestLogger())
	if v.Validate(context.Background(), &models.Session{CookieHeader: "sess=x"}) {
		t.Error("redirect to login must not count as authorized")
	}
}

func TestValidatorAcceptsNonLoginRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/overview", http.StatusFound)
	}))
	defer srv.Close()

	v := NewValidator(noRedirectClient(), srv.URL, newTestLogger())
	if !v.Validate(context.Background(), &models.Session{CookieHeader: "sess=x"}) {
		t.Error("redirect away from login must count as authorized")
	}
}

func TestValidatorNilSession(t *testing.T) {
	v := NewValidator(noRedirectClient(), "http://127.0.0.1:0", newTestLogger())
	if v.Validate(context.Background(), nil) {
		t.Error("nil session must not validate")
	}
	if v.Validate(context.Background(), &models.Session{}) {
		t.Error("cookie-less session must not validate")
	}
}
