package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

const (
	testRPID    = "app.example.test"
	testRPName  = "Example App"
	testOrigin  = "https://app.example.test"
	testMasterK = "0123456789abcdef0123456789abcdef"
)

// fakeStore is an in-memory CredentialStore honoring the same atomicity
// contracts as the SQL implementation.
type fakeStore struct {
	mu       sync.Mutex
	totp     map[string]*TOTPCredential
	passkeys []*WebAuthnCredential
}

func newFakeStore() *fakeStore {
	return &fakeStore{totp: make(map[string]*TOTPCredential)}
}

func copyTOTP(c *TOTPCredential) *TOTPCredential {
	out := *c
	out.RecoveryCodeHashes = append([]string(nil), c.RecoveryCodeHashes...)
	if c.LockedUntil != nil {
		t := *c.LockedUntil
		out.LockedUntil = &t
	}
	return &out
}

func copyPasskey(c *WebAuthnCredential) *WebAuthnCredential {
	out := *c
	out.CredentialID = append([]byte(nil), c.CredentialID...)
	out.PublicKey = append([]byte(nil), c.PublicKey...)
	out.Transports = append([]string(nil), c.Transports...)
	out.AAGUID = append([]byte(nil), c.AAGUID...)
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		out.LastUsedAt = &t
	}
	return &out
}

func (s *fakeStore) GetTOTPCredential(_ context.Context, userID string) (*TOTPCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.totp[userID]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return copyTOTP(cred), nil
}

func (s *fakeStore) CreateTOTPCredential(_ context.Context, cred *TOTPCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totp[cred.UserID] = copyTOTP(cred)
	return nil
}

func (s *fakeStore) DeleteTOTPCredential(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.totp[userID]; !ok {
		return ErrCredentialNotFound
	}
	delete(s.totp, userID)
	return nil
}

func (s *fakeStore) ReplaceRecoveryCodes(_ context.Context, userID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.totp[userID]
	if !ok {
		return ErrCredentialNotFound
	}
	cred.RecoveryCodeHashes = append([]string(nil), hashes...)
	return nil
}

func (s *fakeStore) ConsumeRecoveryCode(_ context.Context, userID, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.totp[userID]
	if !ok {
		return false, nil
	}
	for i, h := range cred.RecoveryCodeHashes {
		if h == hash {
			cred.RecoveryCodeHashes = append(cred.RecoveryCodeHashes[:i], cred.RecoveryCodeHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) RecordTOTPFailure(_ context.Context, userID string, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.totp[userID]
	if !ok {
		return 0, nil, ErrCredentialNotFound
	}
	cred.FailedAttempts++
	if cred.FailedAttempts >= threshold {
		expiry := time.Now().Add(lockFor)
		cred.LockedUntil = &expiry
		e := expiry
		return cred.FailedAttempts, &e, nil
	}
	return cred.FailedAttempts, nil, nil
}

func (s *fakeStore) ResetTOTPFailures(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.totp[userID]
	if !ok {
		return ErrCredentialNotFound
	}
	cred.FailedAttempts = 0
	cred.LockedUntil = nil
	return nil
}

func (s *fakeStore) GetWebAuthnCredential(_ context.Context, credentialID []byte) (*WebAuthnCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.passkeys {
		if string(c.CredentialID) == string(credentialID) {
			return copyPasskey(c), nil
		}
	}
	return nil, ErrCredentialNotFound
}

func (s *fakeStore) ListWebAuthnCredentials(_ context.Context, userID string) ([]WebAuthnCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WebAuthnCredential
	for _, c := range s.passkeys {
		if c.UserID == userID {
			out = append(out, *copyPasskey(c))
		}
	}
	return out, nil
}

func (s *fakeStore) CountWebAuthnCredentials(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, c := range s.passkeys {
		if c.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) CreateWebAuthnCredential(_ context.Context, cred *WebAuthnCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passkeys = append(s.passkeys, copyPasskey(cred))
	return nil
}

func (s *fakeStore) UpdateWebAuthnCounter(_ context.Context, credentialID []byte, signCount uint32, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.passkeys {
		if string(c.CredentialID) == string(credentialID) {
			if c.SignCount > signCount {
				return ErrCredentialNotFound
			}
			c.SignCount = signCount
			t := usedAt
			c.LastUsedAt = &t
			return nil
		}
	}
	return ErrCredentialNotFound
}

func (s *fakeStore) RenameWebAuthnCredential(_ context.Context, userID, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.passkeys {
		if c.UserID == userID && c.ID == id {
			c.DeviceName = name
			return nil
		}
	}
	return ErrCredentialNotFound
}

func (s *fakeStore) DeleteWebAuthnCredential(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.passkeys {
		if c.UserID == userID && c.ID == id {
			s.passkeys = append(s.passkeys[:i], s.passkeys[i+1:]...)
			return nil
		}
	}
	return ErrCredentialNotFound
}

// fakeVerifier substitutes the cryptographic ceremony checks so the
// orchestration around them can be tested without an authenticator.
type fakeVerifier struct {
	createCred   *webauthn.Credential
	createErr    error
	validateCred *webauthn.Credential
	validateErr  error

	lastUser    webauthn.User
	lastSession webauthn.SessionData
}

func (f *fakeVerifier) CreateCredential(user webauthn.User, session webauthn.SessionData, _ *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	f.lastUser = user
	f.lastSession = session
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createCred, nil
}

func (f *fakeVerifier) ValidateLogin(user webauthn.User, session webauthn.SessionData, _ *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	f.lastUser = user
	f.lastSession = session
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return f.validateCred, nil
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Crypto.MasterKey = []byte(testMasterK)
	// Cheap hashing keeps recovery-code tests fast.
	cfg.Crypto.HashMemory = 8 * 1024
	cfg.Crypto.HashTime = 1
	cfg.Crypto.HashParallelism = 1
	cfg.WebAuthn.RPID = testRPID
	cfg.WebAuthn.RPDisplayName = testRPName
	cfg.WebAuthn.RPOrigins = []string{testOrigin}
	return cfg
}

func newTestEngine(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newFakeStore()
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithCredentialStore(store).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store
}
