package auth

import (
	"context"
	"strings"
	"time"

	"dwv-scraper/models"
	"dwv-scraper/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Keyword lists used to classify login responses. The target app localizes
// its UI in Portuguese, so both languages appear.
var (
	loginFailureKeywords = []string{"login", "signin", "auth", "error", "entrar"}
	loginSuccessKeywords = []string{"dashboard", "home", "painel", "imoveis"}

	bodySuccessIndicators = []string{"dashboard", "logout", "bem-vindo", "sair", "minha conta", "meus imóveis"}
	bodyErrorIndicators   = []string{"senha incorreta", "credenciais inválidas", "invalid password", "login failed", "usuário não encontrado"}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Strategy is one interchangeable login mechanism. Implementations return an
// error on failure; errors never escape the chain.
type Strategy interface {
	Name() string
	Login(ctx context.Context, creds models.Credentials) (*models.Session, error)
}

// Authenticator runs the login strategy chain: cached-session reuse first,
// then each registered strategy in order until one produces a session that
// passes validation.
type Authenticator struct {
	cache      SessionCache
	validator  *Validator
	strategies []Strategy
	sessionTTL time.Duration
	logger     *utils.Logger
}

// NewAuthenticator wires the chain. Strategies are tried strictly in the
// order given.
func NewAuthenticator(cache SessionCache, validator *Validator, sessionTTL time.Duration,
	logger *utils.Logger, strategies ...Strategy) *Authenticator {
	return &Authenticator{
		cache:      cache,
		validator:  validator,
		strategies: strategies,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Authenticate tries each strategy in order and returns the first session
// that passes validation. It never returns an error: a total failure is a
// result with Success=false.
func (a *Authenticator) Authenticate(ctx context.Context, creds models.Credentials) models.AuthResult {
	if strings.TrimSpace(creds.Email) == "" || strings.TrimSpace(creds.Password) == "" {
		return models.AuthResult{Success: false, Message: "email and password are required"}
	}

	key := CacheKey(creds.Email)

	if session, ok := a.cache.Get(key); ok && !session.Expired() {
		if a.validator.Validate(ctx, session) {
			a.logger.Info("[auth] reusing cached session for %s", creds.Email)
			return models.AuthResult{
				Success: true,
				Session: session,
				Method:  "existing_session",
				Message: "cached session still valid",
			}
		}
		a.logger.Warn("[auth] cached session for %s no longer valid, clearing", creds.Email)
		a.cache.Clear(key)
	}

	for _, strategy := range a.strategies {
		a.logger.Info("[auth] trying strategy: %s", strategy.Name())

		session, err := strategy.Login(ctx, creds)
		if err != nil {
			a.logger.Warn("[auth] strategy %s failed: %v", strategy.Name(), err)
			continue
		}
		if session == nil || session.CookieHeader == "" {
			a.logger.Warn("[auth] strategy %s returned no session", strategy.Name())
			continue
		}

		if !a.validator.Validate(ctx, session) {
			a.logger.Warn("[auth] strategy %s produced an unauthorized session, falling through", strategy.Name())
			continue
		}

		session.IsValid = true
		session.ExpiresAt = time.Now().Add(a.sessionTTL)
		a.cache.Put(key, session, a.sessionTTL)

		a.logger.Info("[auth] authenticated via %s", strategy.Name())
		return models.AuthResult{
			Success: true,
			Session: session,
			Method:  strategy.Name(),
			Message: "login successful",
		}
	}

	return models.AuthResult{Success: false, Message: "all strategies failed"}
}
