package authcore

import (
	"errors"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"

	"github.com/credware/authcore/oauth"
	"github.com/credware/authcore/secrets"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client
	store  CredentialStore
	sink   AuditSink

	built bool
}

// New starts a builder loaded with default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithMasterKey sets the key material stored secrets are encrypted under.
func (b *Builder) WithMasterKey(key []byte) *Builder {
	b.config.Crypto.MasterKey = append([]byte(nil), key...)
	return b
}

// WithRedis sets the Redis client backing the ephemeral challenge store.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the durable persistence collaborator.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithRelyingParty configures the WebAuthn relying party identity.
func (b *Builder) WithRelyingParty(displayName, rpID string, origins []string) *Builder {
	b.config.WebAuthn.RPDisplayName = displayName
	b.config.WebAuthn.RPID = rpID
	b.config.WebAuthn.RPOrigins = append([]string(nil), origins...)
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and assembles the engine. A builder can
// only be consumed once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("credential store is required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	box, err := secrets.NewBox(b.config.Crypto.MasterKey)
	if err != nil {
		return nil, err
	}

	hasher, err := secrets.NewHasher(secrets.HashConfig{
		Memory:      b.config.Crypto.HashMemory,
		Time:        b.config.Crypto.HashTime,
		Parallelism: b.config.Crypto.HashParallelism,
		SaltLength:  b.config.Crypto.HashSaltLength,
		KeyLength:   b.config.Crypto.HashKeyLength,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     b.config,
		store:      b.store,
		challenges: newChallengeStore(b.redis),
		box:        box,
		hasher:     hasher,
		totp:       newTOTPManager(b.config.TOTP),
		providers:  oauth.NewRegistry(),
		audit:      newAuditDispatcher(b.config.Audit, b.sink),
		metrics:    NewMetrics(b.config.Metrics),
	}

	if b.config.WebAuthn.Enabled {
		wa, err := webauthn.New(&webauthn.Config{
			RPDisplayName: b.config.WebAuthn.RPDisplayName,
			RPID:          b.config.WebAuthn.RPID,
			RPOrigins:     b.config.WebAuthn.RPOrigins,
			Timeouts: webauthn.TimeoutsConfig{
				Login: webauthn.TimeoutConfig{
					Enforce: true,
					Timeout: b.config.WebAuthn.ChallengeTTL,
				},
				Registration: webauthn.TimeoutConfig{
					Enforce: true,
					Timeout: b.config.WebAuthn.ChallengeTTL,
				},
			},
		})
		if err != nil {
			return nil, err
		}
		engine.webauthn = wa
		engine.verifier = wa
	}

	b.built = true
	return engine, nil
}

// sessionTTL is the single source of truth for challenge lifetime.
func (e *Engine) sessionTTL() time.Duration {
	ttl := e.config.WebAuthn.ChallengeTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return ttl
}
