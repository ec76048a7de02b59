package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/credware/authcore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "authcore.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seedTOTP(t *testing.T, s *Store, userID string, hashes []string) {
	t.Helper()
	err := s.CreateTOTPCredential(context.Background(), &authcore.TOTPCredential{
		UserID:             userID,
		EncryptedSecret:    "enc:" + userID,
		RecoveryCodeHashes: hashes,
		EnrolledAt:         time.Now(),
	})
	if err != nil {
		t.Fatalf("seed totp credential: %v", err)
	}
}

func TestTOTPCredentialRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTOTP(t, s, "alice", []string{"h1", "h2", "h3"})

	cred, err := s.GetTOTPCredential(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cred.EncryptedSecret != "enc:alice" {
		t.Fatalf("secret = %q", cred.EncryptedSecret)
	}
	if len(cred.RecoveryCodeHashes) != 3 {
		t.Fatalf("recovery hashes = %d", len(cred.RecoveryCodeHashes))
	}
	if cred.FailedAttempts != 0 || cred.LockedUntil != nil {
		t.Fatalf("fresh credential has failure state: %+v", cred)
	}
}

func TestGetTOTPCredentialMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetTOTPCredential(context.Background(), "ghost"); !errors.Is(err, authcore.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestDeleteTOTPCredentialRemovesRecoveryCodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTOTP(t, s, "alice", []string{"h1", "h2"})
	if err := s.DeleteTOTPCredential(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetTOTPCredential(ctx, "alice"); !errors.Is(err, authcore.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound after delete, got %v", err)
	}
	consumed, err := s.ConsumeRecoveryCode(ctx, "alice", "h1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed {
		t.Fatal("recovery code survived credential deletion")
	}

	if err := s.DeleteTOTPCredential(ctx, "alice"); !errors.Is(err, authcore.ErrCredentialNotFound) {
		t.Fatalf("second delete: expected ErrCredentialNotFound, got %v", err)
	}
}

func TestConsumeRecoveryCodeSingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTOTP(t, s, "alice", []string{"h1", "h2"})

	consumed, err := s.ConsumeRecoveryCode(ctx, "alice", "h1")
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if !consumed {
		t.Fatal("first consume should succeed")
	}

	consumed, err = s.ConsumeRecoveryCode(ctx, "alice", "h1")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if consumed {
		t.Fatal("second consume of the same hash should fail")
	}

	cred, err := s.GetTOTPCredential(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(cred.RecoveryCodeHashes) != 1 || cred.RecoveryCodeHashes[0] != "h2" {
		t.Fatalf("remaining hashes = %v", cred.RecoveryCodeHashes)
	}
}

func TestReplaceRecoveryCodesInvalidatesOldSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTOTP(t, s, "alice", []string{"old1", "old2"})
	if err := s.ReplaceRecoveryCodes(ctx, "alice", []string{"new1"}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if consumed, _ := s.ConsumeRecoveryCode(ctx, "alice", "old1"); consumed {
		t.Fatal("old code should be gone")
	}
	if consumed, _ := s.ConsumeRecoveryCode(ctx, "alice", "new1"); !consumed {
		t.Fatal("new code should consume")
	}

	if err := s.ReplaceRecoveryCodes(ctx, "ghost", []string{"x"}); !errors.Is(err, authcore.ErrCredentialNotFound) {
		t.Fatalf("replace for missing user: expected ErrCredentialNotFound, got %v", err)
	}
}

func TestRecordTOTPFailureLocksAtThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTOTP(t, s, "alice", nil)

	for i := 1; i <= 2; i++ {
		count, lockedUntil, err := s.RecordTOTPFailure(ctx, "alice", 3, 15*time.Minute)
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
		if count != i {
			t.Fatalf("failure %d: count = %d", i, count)
		}
		if lockedUntil != nil {
			t.Fatalf("failure %d: locked early", i)
		}
	}

	count, lockedUntil, err := s.RecordTOTPFailure(ctx, "alice", 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("third failure: %v", err)
	}
	if count != 3 {
		t.Fatalf("third failure: count = %d", count)
	}
	if lockedUntil == nil {
		t.Fatal("third failure should set a lock expiry")
	}
	if remaining := time.Until(*lockedUntil); remaining < 14*time.Minute || remaining > 15*time.Minute {
		t.Fatalf("lock expiry %v out of range", remaining)
	}

	cred, err := s.GetTOTPCredential(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cred.LockedUntil == nil {
		t.Fatal("lock expiry not persisted")
	}
}

func TestResetTOTPFailuresClearsLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTOTP(t, s, "alice", nil)
	for i := 0; i < 3; i++ {
		if _, _, err := s.RecordTOTPFailure(ctx, "alice", 3, time.Minute); err != nil {
			t.Fatalf("failure: %v", err)
		}
	}

	if err := s.ResetTOTPFailures(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	cred, err := s.GetTOTPCredential(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cred.FailedAttempts != 0 || cred.LockedUntil != nil {
		t.Fatalf("failure state survived reset: %+v", cred)
	}
}

func seedPasskey(t *testing.T, s *Store, id, userID string, credentialID []byte, signCount uint32) {
	t.Helper()
	err := s.CreateWebAuthnCredential(context.Background(), &authcore.WebAuthnCredential{
		ID:           id,
		UserID:       userID,
		CredentialID: credentialID,
		PublicKey:    []byte("cose-key"),
		SignCount:    signCount,
		Transports:   []string{"usb", "nfc"},
		DeviceName:   "key-" + id,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("seed passkey: %v", err)
	}
}

func TestWebAuthnCredentialRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedPasskey(t, s, "cred-1", "alice", []byte{0x01, 0x02}, 7)

	cred, err := s.GetWebAuthnCredential(ctx, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cred.UserID != "alice" || cred.SignCount != 7 {
		t.Fatalf("unexpected credential %+v", cred)
	}
	if len(cred.Transports) != 2 || cred.Transports[0] != "usb" {
		t.Fatalf("transports = %v", cred.Transports)
	}

	count, err := s.CountWebAuthnCredentials(ctx, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
}

func TestUpdateWebAuthnCounterGuardsRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	credID := []byte{0xAA}
	seedPasskey(t, s, "cred-1", "alice", credID, 10)

	if err := s.UpdateWebAuthnCounter(ctx, credID, 11, time.Now()); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// A stale write below the stored counter must not apply.
	if err := s.UpdateWebAuthnCounter(ctx, credID, 5, time.Now()); !errors.Is(err, authcore.ErrCredentialNotFound) {
		t.Fatalf("rollback write: expected ErrCredentialNotFound, got %v", err)
	}

	cred, err := s.GetWebAuthnCredential(ctx, credID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cred.SignCount != 11 {
		t.Fatalf("sign count = %d, want 11", cred.SignCount)
	}
	if cred.LastUsedAt == nil {
		t.Fatal("last used not stamped")
	}
}

func TestUpdateWebAuthnCounterZeroOnZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	credID := []byte{0xBB}
	seedPasskey(t, s, "cred-1", "alice", credID, 0)

	// Counter-less authenticators stay at zero; the last-used stamp must
	// still land.
	if err := s.UpdateWebAuthnCounter(ctx, credID, 0, time.Now()); err != nil {
		t.Fatalf("zero-on-zero update: %v", err)
	}

	cred, err := s.GetWebAuthnCredential(ctx, credID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cred.LastUsedAt == nil {
		t.Fatal("last used not stamped")
	}
}

func TestRenameAndDeleteWebAuthnCredential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedPasskey(t, s, "cred-1", "alice", []byte{0x01}, 0)
	seedPasskey(t, s, "cred-2", "alice", []byte{0x02}, 0)

	if err := s.RenameWebAuthnCredential(ctx, "alice", "cred-1", "work laptop"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	creds, err := s.ListWebAuthnCredentials(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if creds[0].DeviceName != "work laptop" {
		t.Fatalf("device name = %q", creds[0].DeviceName)
	}

	// Ownership is part of the key: bob cannot touch alice's device.
	if err := s.RenameWebAuthnCredential(ctx, "bob", "cred-1", "stolen"); !errors.Is(err, authcore.ErrCredentialNotFound) {
		t.Fatalf("cross-user rename: expected ErrCredentialNotFound, got %v", err)
	}
	if err := s.DeleteWebAuthnCredential(ctx, "bob", "cred-1"); !errors.Is(err, authcore.ErrCredentialNotFound) {
		t.Fatalf("cross-user delete: expected ErrCredentialNotFound, got %v", err)
	}

	if err := s.DeleteWebAuthnCredential(ctx, "alice", "cred-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	count, err := s.CountWebAuthnCredentials(ctx, "alice")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count after delete = %d", count)
	}
}
