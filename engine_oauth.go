package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/credware/authcore/oauth"
	"github.com/credware/authcore/secrets"
)

// OAuthAuthorization defines a public type used by authcore APIs.
//
// OAuthAuthorization instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OAuthAuthorization struct {
	// URL is the authorization redirect the browser is sent to.
	URL string

	// State must be bound to the caller's session and compared against the
	// callback's state parameter before the code is exchanged.
	State string

	// Verifier is the PKCE secret; it stays server-side and is presented
	// again at exchange time.
	Verifier string
}

// OAuthIdentity bundles the outcome of a completed code exchange.
type OAuthIdentity struct {
	Token   *oauth.Token
	Profile *oauth.Profile
}

// RegisterOAuthProvider adds a federation strategy to the engine's registry.
func (e *Engine) RegisterOAuthProvider(strategy oauth.Strategy) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.providers.Register(strategy)
}

// BeginOAuthAuthorization generates fresh state and a PKCE verifier and
// builds the provider's authorization redirect. Both values are returned to
// the caller for session binding; nothing is stored engine-side.
func (e *Engine) BeginOAuthAuthorization(provider oauth.Provider) (*OAuthAuthorization, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	strategy, err := e.providers.Get(provider)
	if err != nil {
		return nil, err
	}

	state, err := secrets.RandomHex(16)
	if err != nil {
		return nil, err
	}
	verifier, err := secrets.NewPKCEVerifier()
	if err != nil {
		return nil, err
	}

	return &OAuthAuthorization{
		URL:      strategy.AuthorizationURL(state, verifier),
		State:    state,
		Verifier: verifier,
	}, nil
}

// CompleteOAuthExchange redeems the callback code and fetches the federated
// profile in one step. State validation against the caller's session happens
// before this is called.
func (e *Engine) CompleteOAuthExchange(ctx context.Context, provider oauth.Provider, code, verifier string) (*OAuthIdentity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	strategy, err := e.providers.Get(provider)
	if err != nil {
		return nil, err
	}

	token, err := strategy.Exchange(ctx, code, verifier)
	if err != nil {
		e.metricInc(MetricOAuthExchangeFailure)
		e.emitAudit(ctx, AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventOAuthExchangeFailed,
			Provider:  provider.String(),
			Error:     err.Error(),
		})
		return nil, err
	}

	profile, err := strategy.FetchProfile(ctx, token)
	if err != nil {
		e.metricInc(MetricOAuthExchangeFailure)
		e.emitAudit(ctx, AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventOAuthExchangeFailed,
			Provider:  provider.String(),
			Error:     err.Error(),
		})
		return nil, err
	}

	e.metricInc(MetricOAuthExchangeSuccess)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventOAuthExchanged,
		UserID:    fmt.Sprintf("%s:%s", provider, profile.Subject),
		Provider:  provider.String(),
		Success:   true,
	})

	return &OAuthIdentity{Token: token, Profile: profile}, nil
}

// RefreshOAuthToken redeems a stored refresh token with the provider.
func (e *Engine) RefreshOAuthToken(ctx context.Context, provider oauth.Provider, refreshToken string) (*oauth.Token, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	strategy, err := e.providers.Get(provider)
	if err != nil {
		return nil, err
	}
	return strategy.Refresh(ctx, refreshToken)
}
