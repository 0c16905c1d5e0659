// Package authapi is the reference HTTP implementation of
// [sessionkit.AuthBackend] against the first-party authentication endpoints:
// /auth/login, /auth/register, /auth/refresh, /auth/logout, and /user/me.
//
// # Error mapping
//
// The client translates transport and HTTP failures into the sessionkit
// sentinel vocabulary so [sessionkit.Classify] can route them: 401/403 become
// ErrInvalidCredentials (login, register) or ErrTokenInvalid (refresh,
// identity); 5xx becomes ErrServerUnavailable; connection and timeout
// failures become ErrNetworkUnavailable. Response bodies that decode but
// carry an unusable token grant become ErrMalformedTokenResponse.
//
// # What this package must NOT do
//
//   - Persist anything. Tokens pass through; storage is the core's job.
//   - Retry. Retry policy is user- and lifecycle-driven, upstream.
package authapi
