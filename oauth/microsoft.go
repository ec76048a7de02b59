package oauth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// MicrosoftConfig defines a public type used by authcore APIs.
//
// MicrosoftConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MicrosoftConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Tenant selects the Entra ID tenant. Defaults to "common", which
	// accepts both organizational and personal accounts.
	Tenant string

	// Endpoint overrides the OAuth endpoints, for tests.
	Endpoint oauth2.Endpoint
}

type microsoftStrategy struct {
	oauth oauth2.Config
}

// NewMicrosoft builds the Microsoft Entra ID federation strategy. The
// profile comes from the id_token claims rather than a Graph call, so no
// extra API permission is needed.
func NewMicrosoft(cfg MicrosoftConfig) Strategy {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "common"
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = endpoints.AzureAD(tenant)
	}
	return &microsoftStrategy{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "profile", "email", "offline_access"},
			Endpoint:     endpoint,
		},
	}
}

func (s *microsoftStrategy) Provider() Provider { return ProviderMicrosoft }

func (s *microsoftStrategy) AuthorizationURL(state, verifier string) string {
	return s.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (s *microsoftStrategy) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
	tok, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if raw, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = raw
	}
	return out, nil
}

// FetchProfile reads identity claims out of the id_token. The token was
// received over the direct token-endpoint exchange, so its signature is not
// re-verified here.
func (s *microsoftStrategy) FetchProfile(_ context.Context, token *Token) (*Profile, error) {
	if token.IDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in response", ErrProfileFetchFailed)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token.IDToken, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}

	profile := &Profile{
		Provider: ProviderMicrosoft,
		Subject:  stringClaim(claims, "oid"),
	}
	if profile.Subject == "" {
		profile.Subject = stringClaim(claims, "sub")
	}
	if profile.Subject == "" {
		return nil, fmt.Errorf("%w: id_token missing subject", ErrProfileFetchFailed)
	}

	profile.Name = stringClaim(claims, "name")
	profile.Email = stringClaim(claims, "email")
	if profile.Email == "" {
		profile.Email = stringClaim(claims, "preferred_username")
	}
	profile.EmailVerified = profile.Email != ""

	return profile, nil
}

func (s *microsoftStrategy) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	source := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if raw, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = raw
	}
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
