// tokenstore/refresher.go
// -----------------------
// OAuthRefresher exchanges a refresh token for a new access token against an
// OAuth2 token endpoint (refresh_token grant). It satisfies the pipeline's
// Refresher capability and keeps the last acquired token around for expiry
// inspection.
package tokenstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/oauth2"
)

// OAuthConfig holds the token endpoint settings.
type OAuthConfig struct {
	// TokenURL is the OAuth2 token endpoint, e.g. "https://auth.example.com/oauth/token".
	TokenURL string
	// ClientID and ClientSecret identify this client to the endpoint, when
	// the endpoint requires them.
	ClientID     string
	ClientSecret string
	// Scopes are requested on refresh when non-empty.
	Scopes []string
	// HTTPClient overrides the client used to reach the endpoint.
	HTTPClient *http.Client
}

type tokenEndpointResponse struct {
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// OAuthRefresher performs refresh_token grants.
type OAuthRefresher struct {
	config OAuthConfig
	client *http.Client

	mu   sync.Mutex
	last *oauth2.Token
}

// NewOAuthRefresher returns a refresher for the given endpoint.
func NewOAuthRefresher(config OAuthConfig) (*OAuthRefresher, error) {
	if config.TokenURL == "" {
		return nil, fmt.Errorf("token URL is required")
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthRefresher{config: config, client: client}, nil
}

// RefreshAccessToken exchanges refreshToken for a new access token.
func (r *OAuthRefresher) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	if r.config.ClientID != "" {
		form.Set("client_id", r.config.ClientID)
	}
	if r.config.ClientSecret != "" {
		form.Set("client_secret", r.config.ClientSecret)
	}
	if len(r.config.Scopes) > 0 {
		form.Set("scope", strings.Join(r.config.Scopes, " "))
	}

	tok, err := r.doTokenRequest(ctx, form)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.last = tok
	r.mu.Unlock()
	return tok.AccessToken, nil
}

// LastToken returns the most recently acquired token, or nil before the first
// refresh.
func (r *OAuthRefresher) LastToken() *oauth2.Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	dup := *r.last
	return &dup
}

func (r *OAuthRefresher) doTokenRequest(ctx context.Context, form url.Values) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token endpoint response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenEndpointResponse
	if err := jsoniter.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing token endpoint response: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint response has no access token")
	}

	tok := &oauth2.Token{
		AccessToken:  parsed.AccessToken,
		TokenType:    parsed.TokenType,
		RefreshToken: parsed.RefreshToken,
	}
	if parsed.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	return tok, nil
}
