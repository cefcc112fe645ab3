package auth

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

// BrowserStrategy drives a headless browser through the login flow. The DWV
// app is a client-rendered SPA, so the form fields only exist after the
// JavaScript bundle has run; this is the highest-fidelity and most expensive
// strategy and therefore last in the chain.
type BrowserStrategy struct {
	baseURL   string
	loginPath string
	chromeBin string
	logger    *utils.Logger
}

// NewBrowserStrategy wires the browser-automation login strategy. chromeBin
// may be empty; the binary is then located on PATH and in well-known spots.
func NewBrowserStrategy(baseURL, chromeBin string, logger *utils.Logger) *BrowserStrategy {
	return &BrowserStrategy{
		baseURL:   strings.TrimRight(baseURL, "/"),
		loginPath: "/login",
		chromeBin: chromeBin,
		logger:    logger,
	}
}

func (s *BrowserStrategy) Name() string { return "browser_login" }

// Login launches headless Chrome, fills the login form via candidate field
// selectors, submits, and classifies the resulting URL. Every exit path
// cancels the browser contexts; internal errors degrade to a failure return
// so the chain can fall through.
func (s *BrowserStrategy) Login(ctx context.Context, creds models.Credentials) (session *models.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			session = nil
			err = fmt.Errorf("browser strategy panicked: %v", r)
		}
	}()

	chromeBin := s.chromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	s.logger.Debug("[browser_login] using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	runCtx, cancelTimeout := context.WithTimeout(browserCtx, 90*time.Second)
	defer cancelTimeout()

	var (
		formFilled bool
		finalURL   string
		cookies    []*network.Cookie
	)

	err = chromedp.Run(runCtx,
		chromedp.Navigate(s.baseURL+s.loginPath),
		// Let the SPA render its form.
		chromedp.Sleep(5*time.Second),

		// Fill email and password using the first candidate selector that
		// exists, then click the submit control.
		chromedp.Evaluate(`
			(function() {
				var emailSelectors = [
					'input[type="email"]',
					'input[name="email"]',
					'#email',
					'input[name="username"]',
					'input[placeholder*="mail"]'
				];
				var passwordSelectors = [
					'input[type="password"]',
					'input[name="password"]',
					'#password'
				];
				var submitSelectors = [
					'button[type="submit"]',
					'input[type="submit"]',
					'button[name="login"]',
					'form button'
				];

				function firstMatch(selectors) {
					for (var i = 0; i < selectors.length; i++) {
						var el = document.querySelector(selectors[i]);
						if (el) return el;
					}
					return null;
				}

				function fill(el, value) {
					var setter = Object.getOwnPropertyDescriptor(
						window.HTMLInputElement.prototype, 'value').set;
					setter.call(el, value);
					el.dispatchEvent(new Event('input', { bubbles: true }));
					el.dispatchEvent(new Event('change', { bubbles: true }));
				}

				var emailInput = firstMatch(emailSelectors);
				var passwordInput = firstMatch(passwordSelectors);
				if (!emailInput || !passwordInput) return false;

				fill(emailInput, `+jsString(creds.Email)+`);
				fill(passwordInput, `+jsString(creds.Password)+`);

				var submit = firstMatch(submitSelectors);
				if (submit) {
					submit.click();
				} else {
					var form = emailInput.closest('form');
					if (form) form.submit();
				}
				return true;
			})()
		`, &formFilled),

		// Wait for the post-login navigation.
		chromedp.Sleep(6*time.Second),
		chromedp.Location(&finalURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var cErr error
			cookies, cErr = network.GetCookies().Do(ctx)
			return cErr
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("browser run: %w", err)
	}
	if !formFilled {
		return nil, fmt.Errorf("login form fields never appeared")
	}

	lowerURL := strings.ToLower(finalURL)
	stillOnLogin := containsAny(lowerURL, loginFailureKeywords) &&
		!containsAny(lowerURL, loginSuccessKeywords)
	if stillOnLogin {
		return nil, fmt.Errorf("still on login page after submit (%s)", finalURL)
	}

	header := browserCookieHeader(cookies)
	if header == "" {
		return nil, fmt.Errorf("browser login produced no cookies")
	}

	s.logger.Info("[browser_login] landed on %s with %d cookies", finalURL, len(cookies))
	return &models.Session{
		CookieHeader: header,
		Identifier:   creds.Email,
	}, nil
}

func browserCookieHeader(cookies []*network.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// jsString quotes a Go string as a JavaScript string literal.
func jsString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", ``)
	return "'" + replacer.Replace(s) + "'"
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
