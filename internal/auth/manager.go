// Package auth owns the OAuth2 credential: the consent URL, the one-shot
// code exchange, transparent single-flight refresh, and disconnect. A
// Manager is an explicit, injectable instance; there is no package-level
// token state.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// TokenStore persists the OAuth token pair. LoadToken returns nil, nil when
// no credential is stored ("not connected").
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
	Clear() error
}

// ConfigurationError reports missing OAuth client configuration. It blocks
// any sync attempt and is surfaced once at setup.
type ConfigurationError struct {
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("oauth client not configured: %s is unset", e.Missing)
}

// AuthError reports a missing, expired or unrefreshable credential. It never
// blocks local mutations; affected hearings settle in failed instead.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s", e.Op)
	}
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// expiryMargin is how close to expiry an access token is still trusted.
const expiryMargin = time.Minute

// Manager holds the process-wide credential set. All token reads and
// refreshes go through it; callers never mutate the credential directly.
type Manager struct {
	cfg        *oauth2.Config
	store      TokenStore
	revokeURL  string
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	token  *oauth2.Token
	loaded bool
}

// NewManager creates a credential manager. cfg carries the client id/secret,
// redirect URL, scopes and endpoints; store persists the refresh token.
func NewManager(cfg *oauth2.Config, store TokenStore, revokeURL string) *Manager {
	return &Manager{
		cfg:        cfg,
		store:      store,
		revokeURL:  revokeURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

func (m *Manager) checkConfigured() error {
	switch {
	case m.cfg.ClientID == "":
		return &ConfigurationError{Missing: "client id"}
	case m.cfg.ClientSecret == "":
		return &ConfigurationError{Missing: "client secret"}
	case m.cfg.RedirectURL == "":
		return &ConfigurationError{Missing: "redirect url"}
	}
	return nil
}

// AuthorizationURL builds the consent URL the professional must visit,
// requesting offline access so a refresh token is issued.
func (m *Manager) AuthorizationURL(state string) (string, error) {
	if err := m.checkConfigured(); err != nil {
		return "", err
	}
	return m.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// ExchangeCode performs the one-shot authorization-code exchange and
// persists the resulting credential.
func (m *Manager) ExchangeCode(ctx context.Context, code string) error {
	if err := m.checkConfigured(); err != nil {
		return err
	}

	token, err := m.cfg.Exchange(ctx, code)
	if err != nil {
		return &AuthError{Op: "exchange authorization code", Err: err}
	}
	if err := m.store.SaveToken(token); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.loaded = true
	m.mu.Unlock()
	return nil
}

// EnsureValidToken returns an access token that is valid for at least the
// expiry margin, refreshing with the persisted refresh token if needed.
// The manager's mutex makes the refresh single-flight: concurrent callers
// with an expired token wait for the one in-progress refresh and then reuse
// its result, so exactly one token-endpoint request is made.
func (m *Manager) EnsureValidToken(ctx context.Context) (string, error) {
	if err := m.checkConfigured(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		token, err := m.store.LoadToken()
		if err != nil {
			return "", fmt.Errorf("failed to load credential: %w", err)
		}
		m.token = token
		m.loaded = true
	}

	if m.token == nil || m.token.RefreshToken == "" {
		return "", &AuthError{Op: "no credential stored, connect first"}
	}

	if m.token.AccessToken != "" && m.token.Expiry.After(m.now().Add(expiryMargin)) {
		return m.token.AccessToken, nil
	}

	refreshed, err := m.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: m.token.RefreshToken}).Token()
	if err != nil {
		return "", &AuthError{Op: "refresh access token", Err: err}
	}
	// The token endpoint may rotate the refresh token or omit it entirely.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = m.token.RefreshToken
	}
	if err := m.store.SaveToken(refreshed); err != nil {
		return "", fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	m.token = refreshed
	return refreshed.AccessToken, nil
}

// Token implements oauth2.TokenSource so the remote client's HTTP transport
// shares the same single-flight refresh path.
func (m *Manager) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := m.EnsureValidToken(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *m.token
	return &copy, nil
}

// Connected reports whether a credential is available without refreshing it.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		token, err := m.store.LoadToken()
		if err != nil {
			return false
		}
		m.token = token
		m.loaded = true
	}
	return m.token != nil && m.token.RefreshToken != ""
}

// Disconnect revokes the refresh token best-effort and erases the credential
// from memory and durable storage. Subsequent EnsureValidToken calls fail
// with an AuthError until the professional re-authorizes.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		token, err := m.store.LoadToken()
		if err != nil {
			return fmt.Errorf("failed to load credential: %w", err)
		}
		m.token = token
		m.loaded = true
	}

	if m.token != nil && m.token.RefreshToken != "" && m.revokeURL != "" {
		m.revoke(ctx, m.token.RefreshToken)
	}

	m.token = nil
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("failed to erase credential: %w", err)
	}
	return nil
}

// revoke notifies the authorization server. Failures are swallowed: local
// erasure must succeed even when the server is unreachable.
func (m *Manager) revoke(ctx context.Context, refreshToken string) {
	form := url.Values{"token": {refreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
