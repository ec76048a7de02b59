package authcore

import (
	"context"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/credware/authcore/oauth"
	"github.com/credware/authcore/secrets"
)

// ceremonyVerifier is the trusted external routine that performs the
// cryptographic attestation/assertion checks. *webauthn.WebAuthn satisfies it
// natively; tests substitute a stub so the orchestration around it can be
// exercised without an authenticator.
type ceremonyVerifier interface {
	CreateCredential(user webauthn.User, session webauthn.SessionData, parsed *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	store      CredentialStore
	challenges *challengeStore
	box        *secrets.Box
	hasher     *secrets.Hasher
	totp       *totpManager
	webauthn   *webauthn.WebAuthn
	verifier   ceremonyVerifier
	providers  *oauth.Registry
	audit      *auditDispatcher
	metrics    *Metrics
}

// Close releases engine resources and drains the audit queue.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// OAuth exposes the provider registry for federation flows.
func (e *Engine) OAuth() *oauth.Registry {
	if e == nil {
		return nil
	}
	return e.providers
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counter state for exporters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return nil
}
