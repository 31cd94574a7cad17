// Package auth provides authentication for the application.
//
// Two sources are supported:
//   - Local database authentication with Argon2id password hashing
//   - OpenID Connect (OIDC) authentication with external identity providers
//
// LocalProvider handles username/password login and account registration.
// OIDCProvider implements the OAuth2/OIDC code flow and finds or creates the
// matching local user record on callback.
//
// Authorization is deliberately out of scope here: group-level permissions
// are decided by the membership state machine, which receives the caller's
// identity from the session on every call.
package auth
