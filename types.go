package authcore

import (
	"context"
	"time"
)

// TOTPCredential defines a public type used by authcore APIs.
//
// TOTPCredential instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPCredential struct {
	UserID             string
	EncryptedSecret    string
	RecoveryCodeHashes []string
	FailedAttempts     int
	LockedUntil        *time.Time
	EnrolledAt         time.Time
}

// WebAuthnCredential defines a public type used by authcore APIs.
//
// WebAuthnCredential instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type WebAuthnCredential struct {
	ID           string
	UserID       string
	CredentialID []byte // opaque authenticator-assigned id, globally unique
	PublicKey    []byte // COSE-encoded
	SignCount    uint32
	Transports   []string
	DeviceName   string
	AAGUID       []byte
	CreatedAt    time.Time
	LastUsedAt   *time.Time
}

// CredentialStore is the durable persistence collaborator. Implementations
// must make RecordTOTPFailure, ConsumeRecoveryCode, and UpdateWebAuthnCounter
// atomic: concurrent callers racing on the same row must observe exactly-once
// semantics, not lost updates.
//
// Absent rows are reported as [ErrCredentialNotFound]; any other failure is an
// infrastructure fault.
type CredentialStore interface {
	GetTOTPCredential(ctx context.Context, userID string) (*TOTPCredential, error)
	CreateTOTPCredential(ctx context.Context, cred *TOTPCredential) error
	DeleteTOTPCredential(ctx context.Context, userID string) error

	// ReplaceRecoveryCodes swaps the full hash set in one step, invalidating
	// every prior code.
	ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string) error

	// ConsumeRecoveryCode removes exactly the given hash if it is still
	// present. Exactly one of any set of concurrent callers gets true.
	ConsumeRecoveryCode(ctx context.Context, userID, hash string) (bool, error)

	// RecordTOTPFailure atomically increments the failure counter and, once
	// threshold is reached, stamps lockedUntil = now + lockFor. Returns the
	// post-increment count and the lock expiry when one was set.
	RecordTOTPFailure(ctx context.Context, userID string, threshold int, lockFor time.Duration) (int, *time.Time, error)

	// ResetTOTPFailures clears the failure counter and any lock expiry.
	ResetTOTPFailures(ctx context.Context, userID string) error

	GetWebAuthnCredential(ctx context.Context, credentialID []byte) (*WebAuthnCredential, error)
	ListWebAuthnCredentials(ctx context.Context, userID string) ([]WebAuthnCredential, error)
	CountWebAuthnCredentials(ctx context.Context, userID string) (int, error)
	CreateWebAuthnCredential(ctx context.Context, cred *WebAuthnCredential) error

	// UpdateWebAuthnCounter persists the advanced signature counter and
	// last-used time. The write must be conditional on the stored counter
	// not exceeding signCount, so a racing stale assertion cannot roll the
	// counter back.
	UpdateWebAuthnCounter(ctx context.Context, credentialID []byte, signCount uint32, usedAt time.Time) error

	RenameWebAuthnCredential(ctx context.Context, userID, id, name string) error
	DeleteWebAuthnCredential(ctx context.Context, userID, id string) error
}

// TOTPVerifyResult defines a public type used by authcore APIs.
//
// A non-match is an ordinary negative result, not an error; malformed input
// is reported as ErrInvalidToken / ErrInvalidSecret instead.
type TOTPVerifyResult struct {
	Valid bool
	// Delta is the matched step offset from the current period, within
	// [-Skew, +Skew]. Zero unless Valid.
	Delta int64
	// RemainingAttempts is how many failures are left before lockout. Only
	// meaningful when Valid is false.
	RemainingAttempts int
}

// EnrollmentSetup defines a public type used by authcore APIs.
//
// EnrollmentSetup carries the provisional secret for an enrollment ceremony.
// Nothing is persisted until the caller proves possession through
// [Engine.CompleteTOTPEnrollment].
type EnrollmentSetup struct {
	Secret string // base32, no padding
	URI    string // otpauth://totp/...
	QRPNG  []byte // rendered QR image, nil unless requested
}

// TwoFactorStatus defines a public type used by authcore APIs.
//
// TwoFactorStatus never carries secret material.
type TwoFactorStatus struct {
	Enabled           bool
	EnrolledAt        time.Time
	RecoveryCodesLeft int
	LockedUntil       *time.Time
}

// WebAuthnLoginResult defines a public type used by authcore APIs.
//
// UserID is the resolved identity; for discoverable (passwordless) logins it
// is recovered from the authenticator's user handle.
type WebAuthnLoginResult struct {
	UserID     string
	Credential *WebAuthnCredential
}
