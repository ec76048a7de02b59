package secrets

import (
	"regexp"
	"testing"
)

func TestPKCEVerifierShape(t *testing.T) {
	verifier, err := NewPKCEVerifier()
	if err != nil {
		t.Fatalf("NewPKCEVerifier failed: %v", err)
	}
	if len(verifier) != 86 {
		t.Fatalf("expected 86-char verifier, got %d", len(verifier))
	}
	if !regexp.MustCompile(`^[A-Za-z0-9_-]+$`).MatchString(verifier) {
		t.Fatalf("verifier is not URL-safe unpadded base64: %s", verifier)
	}
}

func TestPKCEChallengeDeterministic(t *testing.T) {
	first := PKCEChallenge("test-verifier-12345")
	second := PKCEChallenge("test-verifier-12345")
	if first != second {
		t.Fatal("same verifier must yield identical challenges")
	}
	if PKCEChallenge("another-verifier") == first {
		t.Fatal("different verifiers must yield different challenges")
	}
	// SHA-256 in RawURLEncoding is always 43 chars.
	if len(first) != 43 {
		t.Fatalf("expected 43-char challenge, got %d", len(first))
	}
}

func TestRecoveryCodeSetDistinct(t *testing.T) {
	codes, err := NewRecoveryCodeSet(8, 10)
	if err != nil {
		t.Fatalf("NewRecoveryCodeSet failed: %v", err)
	}
	if len(codes) != 8 {
		t.Fatalf("expected 8 codes, got %d", len(codes))
	}

	shape := regexp.MustCompile(`^[A-Z0-9]{10}$`)
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if !shape.MatchString(code) {
			t.Fatalf("code %q does not match ^[A-Z0-9]{10}$", code)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code %q in set", code)
		}
		seen[code] = struct{}{}
	}
}

func TestRandomEncodings(t *testing.T) {
	hexStr, err := RandomHex(16)
	if err != nil {
		t.Fatalf("RandomHex failed: %v", err)
	}
	if len(hexStr) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(hexStr))
	}

	b64, err := RandomBase64(16)
	if err != nil {
		t.Fatalf("RandomBase64 failed: %v", err)
	}
	if len(b64) == 0 {
		t.Fatal("expected non-empty base64 output")
	}

	if _, err := RandomHex(0); err == nil {
		t.Fatal("expected rejection of non-positive byte count")
	}
}
