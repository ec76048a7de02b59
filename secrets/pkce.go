package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// 64 source bytes encode to 86 chars, inside RFC 7636's 43-128 bound.
const pkceVerifierBytes = 64

// NewPKCEVerifier returns a fresh URL-safe, unpadded code verifier.
func NewPKCEVerifier() (string, error) {
	raw := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// PKCEChallenge derives the S256 code challenge for a verifier. Pure and
// deterministic: the same verifier always yields the same challenge.
func PKCEChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
