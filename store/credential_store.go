package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/credware/authcore"
)

// Store defines a public type used by authcore APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	db *gorm.DB
}

var _ authcore.CredentialStore = (*Store)(nil)

// New wraps an existing gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&totpCredentialRow{},
		&recoveryCodeRow{},
		&webauthnCredentialRow{},
	)
}

// GetTOTPCredential describes the gettotpcredential operation and its observable behavior.
func (s *Store) GetTOTPCredential(ctx context.Context, userID string) (*authcore.TOTPCredential, error) {
	var row totpCredentialRow
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authcore.ErrCredentialNotFound
		}
		return nil, err
	}

	var hashes []string
	err = s.db.WithContext(ctx).
		Model(&recoveryCodeRow{}).
		Where("user_id = ?", userID).
		Order("id").
		Pluck("hash", &hashes).Error
	if err != nil {
		return nil, err
	}

	return &authcore.TOTPCredential{
		UserID:             row.UserID,
		EncryptedSecret:    row.EncryptedSecret,
		RecoveryCodeHashes: hashes,
		FailedAttempts:     row.FailedAttempts,
		LockedUntil:        row.LockedUntil,
		EnrolledAt:         row.EnrolledAt,
	}, nil
}

// CreateTOTPCredential describes the createtotpcredential operation and its observable behavior.
func (s *Store) CreateTOTPCredential(ctx context.Context, cred *authcore.TOTPCredential) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := totpCredentialRow{
			UserID:          cred.UserID,
			EncryptedSecret: cred.EncryptedSecret,
			FailedAttempts:  cred.FailedAttempts,
			LockedUntil:     cred.LockedUntil,
			EnrolledAt:      cred.EnrolledAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return insertRecoveryCodes(tx, cred.UserID, cred.RecoveryCodeHashes)
	})
}

// DeleteTOTPCredential describes the deletetotpcredential operation and its observable behavior.
func (s *Store) DeleteTOTPCredential(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&totpCredentialRow{}, "user_id = ?", userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return authcore.ErrCredentialNotFound
		}
		return tx.Delete(&recoveryCodeRow{}, "user_id = ?", userID).Error
	})
}

// ReplaceRecoveryCodes describes the replacerecoverycodes operation and its observable behavior.
func (s *Store) ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&totpCredentialRow{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return authcore.ErrCredentialNotFound
		}
		if err := tx.Delete(&recoveryCodeRow{}, "user_id = ?", userID).Error; err != nil {
			return err
		}
		return insertRecoveryCodes(tx, userID, hashes)
	})
}

// ConsumeRecoveryCode deletes the matching hash row. The delete's row count
// is the arbiter: exactly one of any set of racing callers sees 1.
func (s *Store) ConsumeRecoveryCode(ctx context.Context, userID, hash string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND hash = ?", userID, hash).
		Delete(&recoveryCodeRow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordTOTPFailure increments in a single UPDATE ... RETURNING statement so
// concurrent failures never read a stale count, then stamps the lock expiry
// once the threshold is crossed.
func (s *Store) RecordTOTPFailure(ctx context.Context, userID string, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	var row totpCredentialRow
	res := s.db.WithContext(ctx).
		Model(&row).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "failed_attempts"}}}).
		Where("user_id = ?", userID).
		Update("failed_attempts", gorm.Expr("failed_attempts + 1"))
	if res.Error != nil {
		return 0, nil, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, nil, authcore.ErrCredentialNotFound
	}

	count := row.FailedAttempts
	if count < threshold {
		return count, nil, nil
	}

	expiry := time.Now().Add(lockFor)
	err := s.db.WithContext(ctx).
		Model(&totpCredentialRow{}).
		Where("user_id = ?", userID).
		Update("locked_until", expiry).Error
	if err != nil {
		return count, nil, err
	}
	return count, &expiry, nil
}

// ResetTOTPFailures describes the resettotpfailures operation and its observable behavior.
func (s *Store) ResetTOTPFailures(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).
		Model(&totpCredentialRow{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"failed_attempts": 0,
			"locked_until":    nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authcore.ErrCredentialNotFound
	}
	return nil
}

// GetWebAuthnCredential describes the getwebauthncredential operation and its observable behavior.
func (s *Store) GetWebAuthnCredential(ctx context.Context, credentialID []byte) (*authcore.WebAuthnCredential, error) {
	var row webauthnCredentialRow
	err := s.db.WithContext(ctx).First(&row, "credential_id = ?", credentialID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authcore.ErrCredentialNotFound
		}
		return nil, err
	}
	cred := rowToCredential(&row)
	return &cred, nil
}

// ListWebAuthnCredentials describes the listwebauthncredentials operation and its observable behavior.
func (s *Store) ListWebAuthnCredentials(ctx context.Context, userID string) ([]authcore.WebAuthnCredential, error) {
	var rows []webauthnCredentialRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]authcore.WebAuthnCredential, 0, len(rows))
	for i := range rows {
		out = append(out, rowToCredential(&rows[i]))
	}
	return out, nil
}

// CountWebAuthnCredentials describes the countwebauthncredentials operation and its observable behavior.
func (s *Store) CountWebAuthnCredentials(ctx context.Context, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&webauthnCredentialRow{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateWebAuthnCredential describes the createwebauthncredential operation and its observable behavior.
func (s *Store) CreateWebAuthnCredential(ctx context.Context, cred *authcore.WebAuthnCredential) error {
	row := webauthnCredentialRow{
		ID:           cred.ID,
		UserID:       cred.UserID,
		CredentialID: cred.CredentialID,
		PublicKey:    cred.PublicKey,
		SignCount:    cred.SignCount,
		Transports:   encodeTransports(cred.Transports),
		DeviceName:   cred.DeviceName,
		AAGUID:       cred.AAGUID,
		CreatedAt:    cred.CreatedAt,
		LastUsedAt:   cred.LastUsedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// UpdateWebAuthnCounter writes the advanced counter. The sign_count guard in
// the WHERE clause makes a stale concurrent write a no-op instead of a
// rollback of the counter.
func (s *Store) UpdateWebAuthnCounter(ctx context.Context, credentialID []byte, signCount uint32, usedAt time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&webauthnCredentialRow{}).
		Where("credential_id = ? AND sign_count <= ?", credentialID, signCount).
		Updates(map[string]any{
			"sign_count":   signCount,
			"last_used_at": usedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authcore.ErrCredentialNotFound
	}
	return nil
}

// RenameWebAuthnCredential describes the renamewebauthncredential operation and its observable behavior.
func (s *Store) RenameWebAuthnCredential(ctx context.Context, userID, id, name string) error {
	res := s.db.WithContext(ctx).
		Model(&webauthnCredentialRow{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("device_name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authcore.ErrCredentialNotFound
	}
	return nil
}

// DeleteWebAuthnCredential describes the deletewebauthncredential operation and its observable behavior.
func (s *Store) DeleteWebAuthnCredential(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&webauthnCredentialRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authcore.ErrCredentialNotFound
	}
	return nil
}

func insertRecoveryCodes(tx *gorm.DB, userID string, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	rows := make([]recoveryCodeRow, 0, len(hashes))
	for _, h := range hashes {
		rows = append(rows, recoveryCodeRow{UserID: userID, Hash: h})
	}
	return tx.Create(&rows).Error
}

func rowToCredential(row *webauthnCredentialRow) authcore.WebAuthnCredential {
	return authcore.WebAuthnCredential{
		ID:           row.ID,
		UserID:       row.UserID,
		CredentialID: row.CredentialID,
		PublicKey:    row.PublicKey,
		SignCount:    row.SignCount,
		Transports:   decodeTransports(row.Transports),
		DeviceName:   row.DeviceName,
		AAGUID:       row.AAGUID,
		CreatedAt:    row.CreatedAt,
		LastUsedAt:   row.LastUsedAt,
	}
}
