package authcore

import "errors"

var (
	// ErrEngineNotReady is an exported constant or variable used by the verification engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidSecret is an exported constant or variable used by the verification engine.
	ErrInvalidSecret = errors.New("invalid totp secret")
	// ErrInvalidToken is an exported constant or variable used by the verification engine.
	ErrInvalidToken = errors.New("invalid totp token format")
	// ErrAlreadyEnrolled is an exported constant or variable used by the verification engine.
	ErrAlreadyEnrolled = errors.New("two-factor already enrolled")
	// ErrNotEnrolled is an exported constant or variable used by the verification engine.
	ErrNotEnrolled = errors.New("two-factor not enrolled")
	// ErrAccountLocked is an exported constant or variable used by the verification engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrVerificationFailed is an exported constant or variable used by the verification engine.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrChallengeNotFound is an exported constant or variable used by the verification engine.
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	// ErrDeviceLimitExceeded is an exported constant or variable used by the verification engine.
	ErrDeviceLimitExceeded = errors.New("device limit exceeded")
	// ErrCredentialNotFound is an exported constant or variable used by the verification engine.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrInvalidCredential is an exported constant or variable used by the verification engine.
	ErrInvalidCredential = errors.New("credential does not belong to user")
	// ErrCounterMismatch is an exported constant or variable used by the verification engine.
	ErrCounterMismatch = errors.New("signature counter did not advance")
	// ErrChallengeUnavailable is an exported constant or variable used by the verification engine.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrStoreUnavailable is an exported constant or variable used by the verification engine.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrWebAuthnUnavailable is an exported constant or variable used by the verification engine.
	ErrWebAuthnUnavailable = errors.New("webauthn backend unavailable")
)
