package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GoogleConfig defines a public type used by authcore APIs.
//
// GoogleConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// UserInfoURL overrides the OIDC userinfo endpoint, for tests.
	UserInfoURL string

	// Endpoint overrides the OAuth endpoints. Zero value means Google's.
	Endpoint oauth2.Endpoint
}

type googleStrategy struct {
	oauth    oauth2.Config
	userInfo string
}

// NewGoogle builds the Google federation strategy. Offline access is
// requested so Google issues a refresh token on first consent.
func NewGoogle(cfg GoogleConfig) Strategy {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = endpoints.Google
	}
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = "https://www.googleapis.com/oauth2/v3/userinfo"
	}
	return &googleStrategy{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfo: userInfo,
	}
}

func (s *googleStrategy) Provider() Provider { return ProviderGoogle }

func (s *googleStrategy) AuthorizationURL(state, verifier string) string {
	return s.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)
}

func (s *googleStrategy) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
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

func (s *googleStrategy) FetchProfile(ctx context.Context, token *Token) (*Profile, error) {
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, s.userInfo, token.AccessToken, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}

	return &Profile{
		Provider:      ProviderGoogle,
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
		AvatarURL:     info.Picture,
	}, nil
}

func (s *googleStrategy) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
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
	// Google rotates refresh tokens only sometimes; keep the old one when
	// the response omits it.
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}
