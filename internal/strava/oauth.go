package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// ScopeActivityRead grants read access to the athlete's activities.
const ScopeActivityRead = "activity:read"

// ErrMissingCode is returned when the authorization callback carries no code.
var ErrMissingCode = errors.New("missing authorization code")

// AuthConfig holds the registered application's OAuth settings.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
}

// Athlete is the subset of the athlete profile returned alongside tokens.
type Athlete struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstname"`
}

// TokenGrant is the result of a successful code exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    uint64
	AthleteID    int64
	AthleteName  string
}

// Authenticator builds authorization URLs and exchanges authorization codes for tokens.
type Authenticator struct {
	config     oauth2.Config
	httpClient *http.Client
}

// NewAuthenticator constructs an Authenticator. Client credentials are posted as form parameters.
func NewAuthenticator(cfg AuthConfig, httpClient *http.Client) *Authenticator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Authenticator{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{ScopeActivityRead},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the provider's consent page URL carrying state.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// Exchange trades an authorization code for a token grant.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*TokenGrant, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrMissingCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	grant := &TokenGrant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		AthleteName:  "unnamed",
	}

	switch v := token.Extra("expires_at").(type) {
	case float64:
		grant.ExpiresAt = uint64(v)
	default:
		if !token.Expiry.IsZero() {
			grant.ExpiresAt = uint64(token.Expiry.Unix())
		}
	}

	if athlete, ok := token.Extra("athlete").(map[string]interface{}); ok {
		if id, ok := athlete["id"].(float64); ok {
			grant.AthleteID = int64(id)
		}
		if name, ok := athlete["firstname"].(string); ok && name != "" {
			grant.AthleteName = name
		}
	}

	return grant, nil
}
