// Package authcore provides a credential verification engine for password-less
// and second-factor authentication: TOTP enrollment with single-use recovery
// codes and persistent lockout, WebAuthn/FIDO2 registration and authentication
// with replay-protected signature counters, and PKCE-bound OAuth2 federation.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore] collaborator contract, and value types. HTTP routing,
// request schema validation, and process bootstrap are the caller's concern.
// Typed sentinel errors (ErrAccountLocked, ErrCounterMismatch, ...) propagate
// to the boundary unchanged for direct translation into responses; only
// infrastructure faults are wrapped into the *Unavailable sentinels.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or secret material in its public
//     API. Status reports never carry secrets.
//   - Persist TOTP secrets before proof of possession, or return recovery
//     codes more than once.
//   - Validate the same challenge twice: the ephemeral store consumes
//     challenges with an atomic get-and-delete.
package authcore
