// Package sessionkit provides session and credential lifecycle management for
// clients of a token-issuing REST backend: sign-in, registration, silent
// resume on launch, single-flight token refresh, biometric-gated re-entry
// after backgrounding, and unconditional local sign-out.
//
// The package is designed for a single logical session per process:
// [Controller] methods are safe to call from multiple goroutines after
// initialization through [Builder.Build], and state transitions never
// interleave.
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Controller], [Builder],
// [Config], [BiometricGate], [ReauthCoordinator], and value types
// (TokenPair, SessionState, BiometricPreference, etc.). Audit dispatch and
// metric storage live under internal/ and are never exported directly.
// Credential persistence is pluggable through the credstore package; the
// network backend is pluggable through [AuthBackend], with a reference HTTP
// client in the authapi package.
//
// # What this package must NOT do
//
//   - Issue or verify tokens. The backend owns issuance; sessionkit only
//     stores, refreshes, attaches, and discards credentials.
//   - Clear stored credentials on a transient (network/server) failure. Only
//     a genuine credential rejection clears state; see [Classify].
//   - Allow components other than the token lifecycle and the biometric gate
//     to touch credential-store keys.
//
// # Failure policy
//
// Every failure is classified by [Classify] into credential-invalid,
// token-invalid, or transient. The first two clear stored tokens and demand a
// fresh sign-in; transient failures preserve tokens so the next user- or
// lifecycle-driven trigger can retry without re-entering credentials. The
// package never runs its own retry loop.
package sessionkit
