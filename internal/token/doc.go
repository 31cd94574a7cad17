// Package token issues opaque, unguessable, single-use invitation tokens.
// Tokens are cryptographically secure random strings over a URL-safe
// alphabet, with an expiry fixed at issuance. The token value is the sole
// credential for redeeming an invitation (bearer semantics).
package token
