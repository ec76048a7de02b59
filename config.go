package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Crypto    CryptoConfig
	TOTP      TOTPConfig
	TwoFactor TwoFactorConfig
	WebAuthn  WebAuthnConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
CRYPTO CONFIG
====================================
*/

// CryptoConfig defines a public type used by authcore APIs.
//
// CryptoConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CryptoConfig struct {
	// MasterKey is the key material the 256-bit encryption key is derived
	// from. Required.
	MasterKey []byte

	// Argon2id parameters for recovery-code hashing.
	HashMemory      uint32 // in KB
	HashTime        uint32
	HashParallelism uint8
	HashSaltLength  uint32
	HashKeyLength   uint32
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by authcore APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int    // seconds
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"
	Skew      int    // accepted steps either side of now
	QRSize    int    // rendered QR edge length in pixels
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig defines a public type used by authcore APIs.
//
// TwoFactorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TwoFactorConfig struct {
	LockoutThreshold   int
	LockoutDuration    time.Duration
	RecoveryCodeCount  int
	RecoveryCodeLength int
}

/*
====================================
WEBAUTHN CONFIG
====================================
*/

// WebAuthnConfig defines a public type used by authcore APIs.
//
// WebAuthnConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type WebAuthnConfig struct {
	Enabled       bool
	RPDisplayName string
	RPID          string
	RPOrigins     []string
	DeviceLimit   int
	ChallengeTTL  time.Duration

	// AllowZeroCounter accepts assertions where both the stored and the
	// reported signature counter are exactly zero. Authenticators without
	// counter support always report zero; rejecting them would brick every
	// such device, accepting them forfeits clone detection for that
	// credential. Auditable policy, default on.
	AllowZeroCounter bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Crypto: CryptoConfig{
			HashMemory:      32 * 1024,
			HashTime:        3,
			HashParallelism: 2,
			HashSaltLength:  16,
			HashKeyLength:   32,
		},
		TOTP: TOTPConfig{
			Issuer:    "authcore",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
			QRSize:    256,
		},
		TwoFactor: TwoFactorConfig{
			LockoutThreshold:   3,
			LockoutDuration:    15 * time.Minute,
			RecoveryCodeCount:  8,
			RecoveryCodeLength: 10,
		},
		WebAuthn: WebAuthnConfig{
			Enabled:          true,
			DeviceLimit:      5,
			ChallengeTTL:     5 * time.Minute,
			AllowZeroCounter: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Crypto.MasterKey != nil {
		out.Crypto.MasterKey = append([]byte(nil), cfg.Crypto.MasterKey...)
	}
	if cfg.WebAuthn.RPOrigins != nil {
		out.WebAuthn.RPOrigins = append([]string(nil), cfg.WebAuthn.RPOrigins...)
	}
	return out
}

func validateConfig(cfg Config) error {
	if len(cfg.Crypto.MasterKey) == 0 {
		return errors.New("crypto master key is required")
	}
	if cfg.TOTP.Digits < 6 || cfg.TOTP.Digits > 10 {
		return errors.New("totp digits must be between 6 and 10")
	}
	if cfg.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if cfg.TOTP.Skew < 0 {
		return errors.New("totp skew must not be negative")
	}
	if cfg.TwoFactor.LockoutThreshold <= 0 {
		return errors.New("lockout threshold must be positive")
	}
	if cfg.TwoFactor.LockoutDuration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if cfg.TwoFactor.RecoveryCodeCount <= 0 || cfg.TwoFactor.RecoveryCodeLength <= 0 {
		return errors.New("recovery code count and length must be positive")
	}
	if cfg.WebAuthn.Enabled {
		if cfg.WebAuthn.RPID == "" || cfg.WebAuthn.RPDisplayName == "" {
			return errors.New("webauthn rp id and display name are required")
		}
		if len(cfg.WebAuthn.RPOrigins) == 0 {
			return errors.New("webauthn requires at least one origin")
		}
		if cfg.WebAuthn.DeviceLimit <= 0 {
			return errors.New("webauthn device limit must be positive")
		}
		if cfg.WebAuthn.ChallengeTTL <= 0 {
			return errors.New("webauthn challenge ttl must be positive")
		}
	}
	return nil
}
