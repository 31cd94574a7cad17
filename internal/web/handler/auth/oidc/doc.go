// Package oidc provides the OpenID Connect login, callback and logout
// handlers. The provider is initialised from configuration at startup; when
// disabled or unreachable the routes are simply not registered and local
// login remains available.
package oidc
