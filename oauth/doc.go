// Package oauth implements federated login strategies against external
// identity providers.
//
// Each provider is wrapped in a [Strategy]: it produces the authorization
// redirect (always carrying a PKCE S256 challenge), exchanges the returned
// code for tokens, normalizes the provider's profile payload, and refreshes
// tokens where the provider supports it. Strategies are registered in a
// [Registry] keyed by [Provider] so callers dispatch by identifier rather
// than by concrete type.
//
// Architecture boundaries:
//
//   - Strategies never persist anything. Linking a federated identity to a
//     local account is the caller's concern.
//   - State and PKCE verifier generation live with the caller; strategies
//     only consume them.
package oauth
