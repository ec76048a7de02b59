package oauth

import (
	"context"
	"time"
)

// Token defines a public type used by authcore APIs.
//
// Token instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time

	// IDToken carries the raw OIDC identity token when the provider issued
	// one alongside the access token. Empty for plain OAuth providers.
	IDToken string
}

// Profile is the provider-neutral shape of a federated identity. Subject is
// the provider's stable account identifier; everything else is best-effort.
type Profile struct {
	Provider      Provider
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// Strategy describes one identity provider's federation flow.
//
// AuthorizationURL builds the redirect the browser is sent to; state and the
// PKCE verifier are caller-generated so they can be bound to the caller's
// session. Exchange redeems the returned code, presenting the same verifier.
// FetchProfile normalizes the provider's account payload. Refresh redeems a
// refresh token for a fresh access token, or returns ErrRefreshNotSupported.
type Strategy interface {
	Provider() Provider
	AuthorizationURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*Token, error)
	FetchProfile(ctx context.Context, token *Token) (*Profile, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}
