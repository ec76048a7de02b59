package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryptFailed is returned on malformed encoding, tag mismatch, or wrong
// key. Decryption never partially succeeds.
var ErrDecryptFailed = errors.New("secret decryption failed")

// Box defines a public type used by authcore APIs.
//
// Box instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Box struct {
	aead cipher.AEAD
}

// NewBox derives a 256-bit key by hashing the configured master key and
// prepares an XChaCha20-Poly1305 AEAD around it.
func NewBox(masterKey []byte) (*Box, error) {
	if len(masterKey) == 0 {
		return nil, errors.New("empty master key")
	}

	key := sha256.Sum256(masterKey)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}

	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. Two calls on identical
// input produce different ciphertexts that both decrypt to the input.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if b == nil || b.aead == nil {
		return "", errors.New("box not initialized")
	}

	nonce := make([]byte, b.aead.NonceSize(), b.aead.NonceSize()+len(plaintext)+b.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any tampering with nonce, payload, or tag yields
// ErrDecryptFailed.
func (b *Box) Decrypt(encoded string) (string, error) {
	if b == nil || b.aead == nil {
		return "", errors.New("box not initialized")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(raw) < b.aead.NonceSize()+b.aead.Overhead() {
		return "", ErrDecryptFailed
	}

	nonce, sealed := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}
