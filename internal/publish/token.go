package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"slackscribe/internal/services"
)

const tokenRefreshLeeway = time.Minute

// HTTPDoer is the subset of *http.Client used by the publishers.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// tokenManager hands out Zoho OAuth access tokens, exchanging the long-lived
// refresh token whenever the cached access token is missing or stale.
type tokenManager struct {
	accountsURL  string
	clientID     string
	clientSecret string
	refreshToken string
	client       HTTPDoer
	now          func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error"`
}

// Token returns a current access token.
func (m *tokenManager) Token(ctx context.Context) (string, error) {
	if token, ok := m.cachedToken(); ok {
		return token, nil
	}
	return m.refresh(ctx)
}

// Invalidate drops the cached token if it still equals stale so the next
// Token call refreshes.
func (m *tokenManager) Invalidate(stale string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == stale {
		m.token = ""
		m.expiresAt = time.Time{}
	}
}

func (m *tokenManager) cachedToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", false
	}
	// A static token with no refresh credentials never expires locally.
	if m.expiresAt.IsZero() || m.expiresAt.Sub(m.now()) > tokenRefreshLeeway {
		return m.token, true
	}
	return "", false
}

func (m *tokenManager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && (m.expiresAt.IsZero() || m.expiresAt.Sub(m.now()) > tokenRefreshLeeway) {
		return m.token, nil
	}
	if strings.TrimSpace(m.refreshToken) == "" {
		return "", services.Wrap(services.ErrAuth, "zoho", "token", "no access token and no refresh token configured", nil)
	}

	form := url.Values{}
	form.Set("refresh_token", m.refreshToken)
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)
	form.Set("grant_type", "refresh_token")

	endpoint := strings.TrimRight(m.accountsURL, "/") + "/oauth/v2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", services.Wrap(services.ErrUpstream, "zoho", "token", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", services.ClassifyNetworkError("zoho", "token", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if marker := services.ClassifyHTTPStatus(resp.StatusCode); marker != nil {
		return "", services.Wrap(marker, "zoho", "token", fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded tokenResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrUpstream, "zoho", "token", "decode response", err)
	}
	// Zoho reports refresh failures as 200 with an error field.
	if decoded.Error != "" || decoded.AccessToken == "" {
		return "", services.Wrap(services.ErrAuth, "zoho", "token", "refresh rejected: "+decoded.Error, nil)
	}

	expiresIn := time.Duration(decoded.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	m.token = decoded.AccessToken
	m.expiresAt = m.now().Add(expiresIn)
	return m.token, nil
}
