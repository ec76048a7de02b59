package authcore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/credware/authcore/secrets"
)

var recoveryCodeShape = regexp.MustCompile(`^[A-Z0-9]+$`)

// StartTOTPEnrollment begins the enrollment ceremony for a user. The secret
// is returned provisional and is NOT persisted; persistence happens only when
// the caller proves possession through [Engine.CompleteTOTPEnrollment].
//
// Fails with ErrAlreadyEnrolled when a persisted credential exists.
func (e *Engine) StartTOTPEnrollment(ctx context.Context, userID, label string, wantQR bool) (*EnrollmentSetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	_, err := e.store.GetTOTPCredential(ctx, userID)
	switch {
	case err == nil:
		return nil, ErrAlreadyEnrolled
	case errors.Is(err, ErrCredentialNotFound):
		// Expected: nothing enrolled yet.
	default:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	setup := &EnrollmentSetup{
		Secret: secret,
		URI:    e.totp.ProvisionURI(secret, label),
	}
	if wantQR {
		png, err := e.totp.QRCode(setup.URI)
		if err != nil {
			return nil, err
		}
		setup.QRPNG = png
	}

	e.metricInc(MetricEnrollmentStarted)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventEnrollmentStarted,
		UserID:    userID,
		Success:   true,
	})

	return setup, nil
}

// CompleteTOTPEnrollment verifies proof of possession against the provisional
// secret and only then persists: the secret encrypted, the recovery codes as
// independently salted hashes. The plaintext codes are returned exactly once
// and are irretrievable afterwards.
func (e *Engine) CompleteTOTPEnrollment(ctx context.Context, userID, code, secret string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	_, err := e.store.GetTOTPCredential(ctx, userID)
	switch {
	case err == nil:
		return nil, ErrAlreadyEnrolled
	case errors.Is(err, ErrCredentialNotFound):
	default:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, _, err := e.totp.VerifyCode(code, secret, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricEnrollmentFailed)
		e.emitAudit(ctx, AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventEnrollmentFailed,
			UserID:    userID,
			Error:     ErrVerificationFailed.Error(),
		})
		return nil, ErrVerificationFailed
	}

	codes, err := secrets.NewRecoveryCodeSet(e.config.TwoFactor.RecoveryCodeCount, e.config.TwoFactor.RecoveryCodeLength)
	if err != nil {
		return nil, err
	}

	hashes := make([]string, 0, len(codes))
	for _, c := range codes {
		h, err := e.hasher.Hash(c)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}

	encrypted, err := e.box.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	cred := &TOTPCredential{
		UserID:             userID,
		EncryptedSecret:    encrypted,
		RecoveryCodeHashes: hashes,
		EnrolledAt:         time.Now(),
	}
	if err := e.store.CreateTOTPCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricEnrollmentCompleted)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventEnrollmentCompleted,
		UserID:    userID,
		Success:   true,
	})

	return codes, nil
}

// VerifyTOTP is the login-path verification with lockout. A locked account is
// rejected before the TOTP engine is consulted, so a locked caller learns
// nothing about code validity and cannot extend the lock by burning attempts.
func (e *Engine) VerifyTOTP(ctx context.Context, userID, code string) (*TOTPVerifyResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}
	}()

	cred, err := e.store.GetTOTPCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	if cred.LockedUntil != nil && cred.LockedUntil.After(now) {
		e.metricInc(MetricLockedRejection)
		return nil, ErrAccountLocked
	}

	secret, err := e.box.Decrypt(cred.EncryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, delta, err := e.totp.VerifyCode(code, secret, now)
	if err != nil {
		return nil, err
	}

	if !ok {
		threshold := e.config.TwoFactor.LockoutThreshold
		attempts, lockedUntil, err := e.store.RecordTOTPFailure(ctx, userID, threshold, e.config.TwoFactor.LockoutDuration)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		e.metricInc(MetricTOTPFailure)
		if lockedUntil != nil {
			e.metricInc(MetricAccountLocked)
			e.emitAudit(ctx, AuditEvent{
				Timestamp: now,
				EventType: auditEventAccountLocked,
				UserID:    userID,
				Error:     ErrAccountLocked.Error(),
				Metadata:  map[string]string{"locked_until": lockedUntil.UTC().Format(time.RFC3339)},
			})
			return nil, ErrAccountLocked
		}

		e.emitAudit(ctx, AuditEvent{
			Timestamp: now,
			EventType: auditEventTOTPRejected,
			UserID:    userID,
		})

		remaining := threshold - attempts
		if remaining < 0 {
			remaining = 0
		}
		return &TOTPVerifyResult{Valid: false, RemainingAttempts: remaining}, nil
	}

	if err := e.store.ResetTOTPFailures(ctx, userID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: now,
		EventType: auditEventTOTPVerified,
		UserID:    userID,
		Success:   true,
	})

	return &TOTPVerifyResult{Valid: true, Delta: delta}, nil
}

// VerifyRecoveryCode scans the stored hash set linearly: every hash carries
// an independent salt, so there is no index to look a code up by. On the
// first match exactly that hash is removed; a consumed code never verifies
// again, and of two concurrent submissions of the same code exactly one
// succeeds.
func (e *Engine) VerifyRecoveryCode(ctx context.Context, userID, code string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != e.config.TwoFactor.RecoveryCodeLength || !recoveryCodeShape.MatchString(normalized) {
		return false, nil
	}

	cred, err := e.store.GetTOTPCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return false, ErrNotEnrolled
		}
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for _, hash := range cred.RecoveryCodeHashes {
		ok, err := e.hasher.Verify(normalized, hash)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}

		consumed, err := e.store.ConsumeRecoveryCode(ctx, userID, hash)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !consumed {
			// A concurrent request won the race on this code.
			break
		}

		e.metricInc(MetricRecoveryCodeUsed)
		e.emitAudit(ctx, AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventRecoveryCodeUsed,
			UserID:    userID,
			Success:   true,
		})
		return true, nil
	}

	e.metricInc(MetricRecoveryCodeFailed)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventRecoveryCodeRejected,
		UserID:    userID,
	})
	return false, nil
}

// RegenerateRecoveryCodes atomically replaces the full hash set. Every prior
// code stops verifying, used or not.
func (e *Engine) RegenerateRecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if _, err := e.store.GetTOTPCredential(ctx, userID); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	codes, err := secrets.NewRecoveryCodeSet(e.config.TwoFactor.RecoveryCodeCount, e.config.TwoFactor.RecoveryCodeLength)
	if err != nil {
		return nil, err
	}

	hashes := make([]string, 0, len(codes))
	for _, c := range codes {
		h, err := e.hasher.Hash(c)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}

	if err := e.store.ReplaceRecoveryCodes(ctx, userID, hashes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricRecoveryCodeRegenerated)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventRecoveryCodesReset,
		UserID:    userID,
		Success:   true,
	})

	return codes, nil
}

// DisableTwoFactor clears all second-factor state for the user, including
// lockout counters and recovery codes.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.store.DeleteTOTPCredential(ctx, userID); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return ErrNotEnrolled
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventTwoFactorDisabled,
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// TwoFactorStatus reports enrollment state. It never exposes secret material.
func (e *Engine) TwoFactorStatus(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	cred, err := e.store.GetTOTPCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return &TwoFactorStatus{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &TwoFactorStatus{
		Enabled:           true,
		EnrolledAt:        cred.EnrolledAt,
		RecoveryCodesLeft: len(cred.RecoveryCodeHashes),
		LockedUntil:       cred.LockedUntil,
	}, nil
}
