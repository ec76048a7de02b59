package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// webauthnUser adapts a stored identity to the shape the ceremony library
// expects. The WebAuthn user handle is the userID itself, which is how
// discoverable logins recover identity from the authenticator's response.
type webauthnUser struct {
	id          []byte
	name        string
	displayName string
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte                         { return u.id }
func (u *webauthnUser) WebAuthnName() string                       { return u.name }
func (u *webauthnUser) WebAuthnDisplayName() string                { return u.displayName }
func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }
func (u *webauthnUser) WebAuthnIcon() string                       { return "" }

// BeginWebAuthnRegistration issues a registration challenge for a new
// authenticator. The ceremony requests a discoverable credential with user
// verification, excludes the user's already-registered credential ids so one
// authenticator cannot be enrolled twice, and enforces the per-user device
// cap before anything is issued.
func (e *Engine) BeginWebAuthnRegistration(ctx context.Context, userID, displayName string) (*protocol.CredentialCreation, error) {
	if err := e.webauthnReady(); err != nil {
		return nil, err
	}

	count, err := e.store.CountWebAuthnCredentials(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count >= e.config.WebAuthn.DeviceLimit {
		e.metricInc(MetricDeviceLimitHit)
		return nil, ErrDeviceLimitExceeded
	}

	existing, err := e.store.ListWebAuthnCredentials(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(existing))
	for _, cred := range existing {
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.CredentialID,
		})
	}

	user := e.webauthnUserFor(userID, displayName, existing)
	options, session, err := e.webauthn.BeginRegistration(user,
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			ResidentKey:        protocol.ResidentKeyRequirementRequired,
			RequireResidentKey: protocol.ResidentKeyRequired(),
			UserVerification:   protocol.VerificationRequired,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebAuthnUnavailable, err)
	}

	if err := e.putSession(ctx, purposeRegistration, userID, session); err != nil {
		return nil, err
	}

	e.metricInc(MetricPasskeyRegistrationStarted)
	return options, nil
}

// FinishWebAuthnRegistration consumes the pending challenge (single use: a
// replayed response finds no challenge and fails), delegates attestation
// verification to the ceremony library, and persists the new credential with
// the authenticator's initial signature counter.
func (e *Engine) FinishWebAuthnRegistration(ctx context.Context, userID, deviceName string, response []byte) (*WebAuthnCredential, error) {
	if err := e.webauthnReady(); err != nil {
		return nil, err
	}

	session, err := e.consumeSession(ctx, purposeRegistration, userID)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	existing, err := e.store.ListWebAuthnCredentials(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	user := e.webauthnUserFor(userID, userID, existing)
	verified, err := e.verifier.CreateCredential(user, *session, parsed)
	if err != nil {
		e.emitAudit(ctx, AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventPasskeyRejected,
			UserID:    userID,
			Error:     err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	now := time.Now()
	cred := &WebAuthnCredential{
		ID:           uuid.NewString(),
		UserID:       userID,
		CredentialID: verified.ID,
		PublicKey:    verified.PublicKey,
		SignCount:    verified.Authenticator.SignCount,
		Transports:   transportStrings(verified.Transport),
		DeviceName:   deviceName,
		AAGUID:       verified.Authenticator.AAGUID,
		CreatedAt:    now,
	}
	if err := e.store.CreateWebAuthnCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasskeyRegistered)
	e.emitAudit(ctx, AuditEvent{
		Timestamp:  now,
		EventType:  auditEventPasskeyRegistered,
		UserID:     userID,
		Credential: cred.ID,
		Success:    true,
	})

	return cred, nil
}

// BeginWebAuthnLogin issues an authentication challenge. With a userID the
// allow-list is built from that user's credentials and the challenge is bound
// to the user. With an empty userID the ceremony is discoverable: the
// allow-list stays empty and the challenge is bound to its own value, since
// no identity is known yet.
func (e *Engine) BeginWebAuthnLogin(ctx context.Context, userID string) (*protocol.CredentialAssertion, error) {
	if err := e.webauthnReady(); err != nil {
		return nil, err
	}

	if userID == "" {
		options, session, err := e.webauthn.BeginDiscoverableLogin(
			webauthn.WithUserVerification(protocol.VerificationRequired),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWebAuthnUnavailable, err)
		}
		if err := e.putSession(ctx, purposeDiscoverable, session.Challenge, session); err != nil {
			return nil, err
		}
		e.metricInc(MetricPasskeyLoginStarted)
		return options, nil
	}

	existing, err := e.store.ListWebAuthnCredentials(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(existing) == 0 {
		return nil, ErrCredentialNotFound
	}

	user := e.webauthnUserFor(userID, userID, existing)
	options, session, err := e.webauthn.BeginLogin(user,
		webauthn.WithUserVerification(protocol.VerificationRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebAuthnUnavailable, err)
	}

	if err := e.putSession(ctx, purposeAuthentication, userID, session); err != nil {
		return nil, err
	}

	e.metricInc(MetricPasskeyLoginStarted)
	return options, nil
}

// FinishWebAuthnLogin validates an assertion. Identity resolution: a
// user-handle in the response wins (that is how passwordless logins discover
// who is signing in), else the caller-supplied userID, else ownership of the
// asserted credential. Challenge lookup tries the per-user key first, then
// falls back to the discoverable key derived from the challenge embedded in
// the response, since the per-user key cannot be known before identity is
// resolved.
//
// The stored signature counter must strictly advance or the assertion is
// rejected as ErrCounterMismatch with no state mutated. The one exception is
// both counters being exactly zero, the counter-less-authenticator case
// controlled by [WebAuthnConfig.AllowZeroCounter].
func (e *Engine) FinishWebAuthnLogin(ctx context.Context, userID string, response []byte) (*WebAuthnLoginResult, error) {
	if err := e.webauthnReady(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}
	}()

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	resolved := userID
	if len(parsed.Response.UserHandle) > 0 {
		resolved = string(parsed.Response.UserHandle)
	}

	session, err := e.lookupLoginSession(ctx, resolved, parsed)
	if err != nil {
		return nil, err
	}

	stored, err := e.store.GetWebAuthnCredential(ctx, parsed.RawID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if resolved == "" {
		resolved = stored.UserID
	} else if stored.UserID != resolved {
		e.metricInc(MetricPasskeyLoginFailure)
		return nil, ErrInvalidCredential
	}

	// Discoverable sessions carry no user id; bind the one we resolved so
	// the library's user/session consistency check holds.
	if len(session.UserID) == 0 {
		session.UserID = []byte(resolved)
	}

	user := &webauthnUser{
		id:          []byte(resolved),
		name:        resolved,
		displayName: resolved,
		credentials: []webauthn.Credential{toLibraryCredential(stored)},
	}

	validated, err := e.verifier.ValidateLogin(user, *session, parsed)
	if err != nil {
		e.metricInc(MetricPasskeyLoginFailure)
		e.emitAudit(ctx, AuditEvent{
			Timestamp:  time.Now(),
			EventType:  auditEventPasskeyRejected,
			UserID:     resolved,
			Credential: stored.ID,
			Error:      err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	newCount := validated.Authenticator.SignCount
	if validated.Authenticator.CloneWarning ||
		(newCount == 0 && stored.SignCount == 0 && !e.config.WebAuthn.AllowZeroCounter) {
		e.metricInc(MetricCounterMismatch)
		e.emitAudit(ctx, AuditEvent{
			Timestamp:  time.Now(),
			EventType:  auditEventCounterMismatch,
			UserID:     resolved,
			Credential: stored.ID,
			Error:      ErrCounterMismatch.Error(),
			Metadata: map[string]string{
				"stored_counter":   fmt.Sprintf("%d", stored.SignCount),
				"asserted_counter": fmt.Sprintf("%d", newCount),
			},
		})
		return nil, ErrCounterMismatch
	}

	now := time.Now()
	if err := e.store.UpdateWebAuthnCounter(ctx, stored.CredentialID, newCount, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	updated := *stored
	updated.SignCount = newCount
	updated.LastUsedAt = &now

	e.metricInc(MetricPasskeyLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		Timestamp:  now,
		EventType:  auditEventPasskeyLogin,
		UserID:     resolved,
		Credential: stored.ID,
		Success:    true,
	})

	return &WebAuthnLoginResult{UserID: resolved, Credential: &updated}, nil
}

// ListWebAuthnCredentials reports the user's registered devices.
func (e *Engine) ListWebAuthnCredentials(ctx context.Context, userID string) ([]WebAuthnCredential, error) {
	if err := e.webauthnReady(); err != nil {
		return nil, err
	}
	creds, err := e.store.ListWebAuthnCredentials(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return creds, nil
}

// RenameWebAuthnCredential updates a device label.
func (e *Engine) RenameWebAuthnCredential(ctx context.Context, userID, id, name string) error {
	if err := e.webauthnReady(); err != nil {
		return err
	}
	if err := e.store.RenameWebAuthnCredential(ctx, userID, id, name); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteWebAuthnCredential removes one device; other credentials of the same
// user are untouched.
func (e *Engine) DeleteWebAuthnCredential(ctx context.Context, userID, id string) error {
	if err := e.webauthnReady(); err != nil {
		return err
	}
	if err := e.store.DeleteWebAuthnCredential(ctx, userID, id); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.emitAudit(ctx, AuditEvent{
		Timestamp:  time.Now(),
		EventType:  auditEventPasskeyRemoved,
		UserID:     userID,
		Credential: id,
		Success:    true,
	})
	return nil
}

func (e *Engine) webauthnReady() error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.webauthn == nil || e.verifier == nil || e.challenges == nil {
		return ErrWebAuthnUnavailable
	}
	return nil
}

func (e *Engine) webauthnUserFor(userID, displayName string, creds []WebAuthnCredential) *webauthnUser {
	converted := make([]webauthn.Credential, 0, len(creds))
	for i := range creds {
		converted = append(converted, toLibraryCredential(&creds[i]))
	}
	if displayName == "" {
		displayName = userID
	}
	return &webauthnUser{
		id:          []byte(userID),
		name:        userID,
		displayName: displayName,
		credentials: converted,
	}
}

func (e *Engine) putSession(ctx context.Context, purpose challengePurpose, bindingKey string, session *webauthn.SessionData) error {
	encoded, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return e.challenges.Put(ctx, purpose, bindingKey, encoded, e.sessionTTL())
}

func (e *Engine) consumeSession(ctx context.Context, purpose challengePurpose, bindingKey string) (*webauthn.SessionData, error) {
	data, err := e.challenges.Consume(ctx, purpose, bindingKey)
	if err != nil {
		return nil, err
	}

	var session webauthn.SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return &session, nil
}

func (e *Engine) lookupLoginSession(ctx context.Context, resolved string, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.SessionData, error) {
	if resolved != "" {
		session, err := e.consumeSession(ctx, purposeAuthentication, resolved)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrChallengeNotFound) {
			return nil, err
		}
	}

	session, err := e.consumeSession(ctx, purposeDiscoverable, parsed.Response.CollectedClientData.Challenge)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			e.metricInc(MetricChallengeReplay)
			e.emitAudit(ctx, AuditEvent{
				Timestamp: time.Now(),
				EventType: auditEventChallengeReplay,
				UserID:    resolved,
				Error:     ErrChallengeNotFound.Error(),
			})
		}
		return nil, err
	}
	return session, nil
}

func transportStrings(transports []protocol.AuthenticatorTransport) []string {
	if len(transports) == 0 {
		return nil
	}
	out := make([]string, 0, len(transports))
	for _, t := range transports {
		out = append(out, string(t))
	}
	return out
}

func toLibraryCredential(cred *WebAuthnCredential) webauthn.Credential {
	transports := make([]protocol.AuthenticatorTransport, 0, len(cred.Transports))
	for _, t := range cred.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:        cred.CredentialID,
		PublicKey: cred.PublicKey,
		Transport: transports,
		Authenticator: webauthn.Authenticator{
			AAGUID:    cred.AAGUID,
			SignCount: cred.SignCount,
		},
	}
}
