// Package line implements provider.OAuthProvider for LINE Login v2.1.
//
// Web logins use the standard authorization-code flow against
// access.line.me; embedded (in-app SDK) logins hand the bridge an access
// token directly, which is verified against the token introspection
// endpoint before any profile is trusted.
package line

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/kairan-app/kairan/core"
	"github.com/kairan-app/kairan/provider"
)

const (
	providerName = "line"

	defaultAuthBaseURL = "https://access.line.me"
	defaultAPIBaseURL  = "https://api.line.me"

	// LINE signs Login id_tokens with the channel secret (HS256).
	idTokenIssuer = "https://access.line.me"
)

type Config struct {
	ChannelID     string
	ChannelSecret string

	// Scopes defaults to "profile openid".
	Scopes []string

	// AuthBaseURL and APIBaseURL exist for tests; leave empty in production.
	AuthBaseURL string
	APIBaseURL  string

	// HTTPTimeout bounds every provider call. Defaults to 10s.
	HTTPTimeout time.Duration
}

type Provider struct {
	config     Config
	httpClient *http.Client
}

var _ provider.OAuthProvider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.ChannelID == "" || cfg.ChannelSecret == "" {
		return nil, errors.New("line provider config missing channel id or secret")
	}
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = defaultAuthBaseURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"profile", "openid"}
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	return &Provider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ChannelID,
		ClientSecret: p.config.ChannelSecret,
		RedirectURL:  redirectURI,
		Scopes:       p.config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.config.AuthBaseURL + "/oauth2/v2.1/authorize",
			TokenURL: p.config.APIBaseURL + "/oauth2/v2.1/token",
		},
	}
}

// AuthorizeURL builds the LINE authorization URL with the caller's
// anti-forgery state.
func (p *Provider) AuthorizeURL(state, redirectURI string) string {
	return p.oauthConfig(redirectURI).AuthCodeURL(state)
}

// ExchangeCode performs the authorization-code-for-token exchange. When LINE
// returns an id_token it is verified (HS256, channel secret) and its subject
// reported; a token that fails verification aborts the exchange.
func (p *Provider) ExchangeCode(ctx context.Context, code, redirectURI string) (*provider.Credentials, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: token endpoint rejected code: %s",
				core.ErrMalformedProviderResponse, retrieveErr.ErrorDescription)
		}
		return nil, fmt.Errorf("%w: token exchange: %v", core.ErrProviderUnavailable, err)
	}

	creds := &provider.Credentials{AccessToken: token.AccessToken}

	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		subject, err := p.verifyIDToken(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: id_token verification: %v",
				core.ErrMalformedProviderResponse, err)
		}
		creds.IDTokenSubject = subject
	}

	return creds, nil
}

func (p *Provider) verifyIDToken(raw string) (string, error) {
	token, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) {
			return []byte(p.config.ChannelSecret), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(idTokenIssuer),
		jwt.WithAudience(p.config.ChannelID),
	)
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.New("id_token missing subject claim")
	}

	return subject, nil
}

type profileResponse struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl"`
	StatusMessage string `json:"statusMessage"`
}

// FetchProfile resolves an access token into the external profile via
// GET /v2/profile.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*core.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIBaseURL+"/v2/profile", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: profile fetch: %v", core.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: profile endpoint returned %d: %s",
			core.ErrMalformedProviderResponse, resp.StatusCode, string(body))
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: profile decode: %v", core.ErrMalformedProviderResponse, err)
	}
	if profile.UserID == "" {
		return nil, fmt.Errorf("%w: profile missing userId", core.ErrMalformedProviderResponse)
	}

	return &core.ExternalIdentity{
		ExternalUserID: profile.UserID,
		DisplayName:    profile.DisplayName,
		PictureURL:     profile.PictureURL,
	}, nil
}

type verifyResponse struct {
	ClientID  string `json:"client_id"`
	ExpiresIn int64  `json:"expires_in"`
	Scope     string `json:"scope"`
}

// VerifyEmbeddedToken introspects an SDK-issued access token via
// GET /oauth2/v2.1/verify and confirms it was issued for this channel and
// has not expired.
func (p *Provider) VerifyEmbeddedToken(ctx context.Context, accessToken string) error {
	endpoint := p.config.APIBaseURL + "/oauth2/v2.1/verify?access_token=" + url.QueryEscape(accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build verify request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: token verify: %v", core.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: verify endpoint returned %d",
			core.ErrMalformedProviderResponse, resp.StatusCode)
	}

	var verified verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verified); err != nil {
		return fmt.Errorf("%w: verify decode: %v", core.ErrMalformedProviderResponse, err)
	}

	if verified.ClientID != p.config.ChannelID {
		return fmt.Errorf("%w: token issued for channel %q",
			core.ErrMalformedProviderResponse, verified.ClientID)
	}
	if verified.ExpiresIn <= 0 {
		return fmt.Errorf("%w: token expired", core.ErrMalformedProviderResponse)
	}

	return nil
}
