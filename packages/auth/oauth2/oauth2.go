// Package oauth2 fetches access tokens for test cases that authenticate
// against a token endpoint before calling the API under test.
package oauth2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
)

// Config describes one token request.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string // For password grant
	Password     string // For password grant
	GrantType    GrantType
}

// Validate checks that the fields the grant type needs are set.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("token url is required")
	}
	switch c.GrantType {
	case "", ClientCredentials:
	case Password:
		if c.Username == "" {
			return fmt.Errorf("password grant requires a username")
		}
	default:
		return fmt.Errorf("unsupported OAuth2 grant type: %s", c.GrantType)
	}
	return nil
}

func (c *Config) cacheKey() string {
	return strings.Join([]string{
		c.TokenURL, string(c.GrantType), c.ClientID, c.Username, strings.Join(c.Scopes, " "),
	}, "|")
}

func (c *Config) form() url.Values {
	data := url.Values{}
	switch c.GrantType {
	case Password:
		data.Set("grant_type", string(Password))
		data.Set("username", c.Username)
		data.Set("password", c.Password)
	default:
		data.Set("grant_type", string(ClientCredentials))
	}
	if len(c.Scopes) > 0 {
		data.Set("scope", strings.Join(c.Scopes, " "))
	}
	return data
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired reports whether the token expires within the next 30 seconds.
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(30 * time.Second).After(t.ExpiresAt)
}

// Provider requests tokens and reuses them until they expire, so parameterized
// runs share one token per client.
type Provider struct {
	httpClient *http.Client
	cache      *TokenCache
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: NewTokenCache(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a valid access token for cfg, fetching a new one when the
// cached one is missing or expired.
func (p *Provider) Token(ctx context.Context, cfg *Config) (*Token, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := cfg.cacheKey()
	if token := p.cache.Get(key); token != nil && !token.IsExpired() {
		return token, nil
	}

	token, err := p.request(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, token)
	return token, nil
}

func (p *Provider) request(ctx context.Context, cfg *Config) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(cfg.form().Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if cfg.ClientID != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(cfg.ClientID + ":" + cfg.ClientSecret))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return &token, nil
}
