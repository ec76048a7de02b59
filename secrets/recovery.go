package secrets

import (
	"crypto/rand"
	"errors"
	"strings"
)

const recoveryAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRecoveryCode maps secure random bytes onto the 36-symbol recovery
// alphabet. Rejection sampling keeps the distribution uniform.
func NewRecoveryCode(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid recovery code length")
	}

	// Largest multiple of len(alphabet) below 256.
	limit := byte(256 - (256 % len(recoveryAlphabet)))

	var b strings.Builder
	b.Grow(length)

	buf := make([]byte, length*2)
	for b.Len() < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, c := range buf {
			if c >= limit {
				continue
			}
			b.WriteByte(recoveryAlphabet[int(c)%len(recoveryAlphabet)])
			if b.Len() == length {
				break
			}
		}
	}

	return b.String(), nil
}

// NewRecoveryCodeSet draws codes until count distinct values are collected,
// retrying on collision.
func NewRecoveryCodeSet(count, length int) ([]string, error) {
	if count <= 0 {
		return nil, errors.New("invalid recovery code count")
	}

	seen := make(map[string]struct{}, count)
	out := make([]string, 0, count)
	for len(out) < count {
		code, err := NewRecoveryCode(length)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}

	return out, nil
}
