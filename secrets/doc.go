// Package secrets implements the cryptographic primitives the verification
// engine is built on: authenticated encryption for stored TOTP secrets,
// Argon2id hashing for recovery codes, secure random generation, recovery
// code derivation, and PKCE verifier/challenge derivation.
//
// # Output formats
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Encrypted secrets are base64(nonce || ciphertext || tag): nonce, payload,
// and authentication tag travel together in one opaque string.
//
// # Architecture boundaries
//
// This package owns primitives only. Enrollment state machines, lockout, and
// challenge lifecycles are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Perform I/O or talk to stores — callers supply plaintext and receive
//     ciphertext/hashes.
//   - Import any other authcore package.
//   - Reuse a nonce: every Encrypt call draws fresh randomness.
package secrets
