// Package moltin implements the client for the Moltin commerce API.
package moltin

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
)

// tokenExpirySlack renews the token slightly before its declared expiry so an
// in-flight request never races the deadline.
const tokenExpirySlack = 60 * time.Second

// TokenSource lazily fetches and caches a Moltin access token until it
// expires. It is safe for concurrent use and is injected into Client so tests
// can substitute their own token endpoint.
type TokenSource struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Expires     int64  `json:"expires"`
}

// NewTokenSource creates a token source for the implicit grant flow.
func NewTokenSource(baseURL, clientID string, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &TokenSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   clientID,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Token returns a valid access token, fetching a fresh one when the cached
// token is missing or past its expiry.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && s.now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", s.clientID)
	form.Set("grant_type", "implicit")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty access_token")
	}

	s.accessToken = tr.AccessToken
	s.expiresAt = time.Unix(tr.Expires, 0).Add(-tokenExpirySlack)

	return s.accessToken, nil
}

// Invalidate discards the cached token so the next Token call fetches a new one.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = ""
	s.expiresAt = time.Time{}
}
