package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// HTTPDoer describes the HTTP client used by the session provider.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProvider is a Provider backed by a token-refresh endpoint and the
// contest API's current-user resource.
type HTTPProvider struct {
	refreshURL  string
	identityURL string
	client      HTTPDoer

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewHTTPProvider constructs a provider seeded with the configured tokens.
// refreshURL may be empty, in which case Refresh is a no-op.
func NewHTTPProvider(refreshURL, identityURL, accessToken, refreshToken string, client HTTPDoer) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{
		refreshURL:   strings.TrimSpace(refreshURL),
		identityURL:  strings.TrimSpace(identityURL),
		client:       client,
		accessToken:  strings.TrimSpace(accessToken),
		refreshToken: strings.TrimSpace(refreshToken),
	}
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Refresh exchanges the refresh token for a fresh access token.
func (p *HTTPProvider) Refresh(ctx context.Context) error {
	if p.refreshURL == "" || p.refreshToken == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"refreshToken": p.refreshToken})
	if err != nil {
		return fmt.Errorf("encode refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.refreshURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("refresh endpoint returned %d", resp.StatusCode)
	}

	var decoded refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if strings.TrimSpace(decoded.AccessToken) == "" {
		return fmt.Errorf("refresh response has no access token")
	}

	p.mu.Lock()
	p.accessToken = strings.TrimSpace(decoded.AccessToken)
	p.mu.Unlock()
	return nil
}

type identityResponse struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Identity resolves the current user from the identity endpoint.
func (p *HTTPProvider) Identity(ctx context.Context) (Identity, error) {
	if p.identityURL == "" {
		return Identity{}, fmt.Errorf("no identity endpoint configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.identityURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build identity request: %w", err)
	}
	if token := p.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Identity{}, fmt.Errorf("identity endpoint returned %d", resp.StatusCode)
	}

	var decoded identityResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return Identity{}, fmt.Errorf("decode identity response: %w", err)
	}
	return Identity{UserID: decoded.UserID, DisplayName: decoded.DisplayName}, nil
}

// Token returns the current access token.
func (p *HTTPProvider) Token(ctx context.Context) (string, error) {
	return p.currentToken(), nil
}

func (p *HTTPProvider) currentToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessToken
}
