package store

import (
	"encoding/json"
	"time"
)

type totpCredentialRow struct {
	UserID          string     `gorm:"column:user_id;primaryKey"`
	EncryptedSecret string     `gorm:"column:encrypted_secret;not null"`
	FailedAttempts  int        `gorm:"column:failed_attempts;not null;default:0"`
	LockedUntil     *time.Time `gorm:"column:locked_until"`
	EnrolledAt      time.Time  `gorm:"column:enrolled_at;not null"`
}

func (totpCredentialRow) TableName() string { return "totp_credentials" }

type recoveryCodeRow struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	UserID string `gorm:"column:user_id;index;not null"`
	Hash   string `gorm:"column:hash;not null"`
}

func (recoveryCodeRow) TableName() string { return "recovery_codes" }

type webauthnCredentialRow struct {
	ID           string     `gorm:"column:id;primaryKey"`
	UserID       string     `gorm:"column:user_id;index;not null"`
	CredentialID []byte     `gorm:"column:credential_id;uniqueIndex;not null"`
	PublicKey    []byte     `gorm:"column:public_key;not null"`
	SignCount    uint32     `gorm:"column:sign_count;not null;default:0"`
	Transports   string     `gorm:"column:transports"`
	DeviceName   string     `gorm:"column:device_name"`
	AAGUID       []byte     `gorm:"column:aaguid"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	LastUsedAt   *time.Time `gorm:"column:last_used_at"`
}

func (webauthnCredentialRow) TableName() string { return "webauthn_credentials" }

func encodeTransports(transports []string) string {
	if len(transports) == 0 {
		return ""
	}
	data, err := json.Marshal(transports)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeTransports(encoded string) []string {
	if encoded == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return nil
	}
	return out
}
