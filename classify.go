package sessionkit

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// ErrorClass partitions failures for the clear-vs-preserve token decision.
// It is recomputed from the raised error on every failure and carries no
// persistent identity.
type ErrorClass uint8

const (
	// ClassNone is the classification of a nil error.
	ClassNone ErrorClass = iota
	// ClassCredentialInvalid covers rejected email/password pairs and
	// rejected registrations.
	ClassCredentialInvalid
	// ClassTokenInvalid covers rejected, missing, or structurally invalid
	// refresh tokens and token responses.
	ClassTokenInvalid
	// ClassTransientNetwork covers unreachability and timeouts.
	ClassTransientNetwork
	// ClassTransientServer covers 5xx responses.
	ClassTransientServer
	// ClassBiometricUnavailable covers absent hardware or enrollment.
	ClassBiometricUnavailable
	// ClassBiometricDenied covers failed or cancelled challenges.
	ClassBiometricDenied
	// ClassUnknown is everything else. Unknown failures preserve tokens: a
	// wrongly preserved credential fails loudly on the next attempt, a
	// wrongly cleared one forces a needless re-login.
	ClassUnknown
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassCredentialInvalid:
		return "credential_invalid"
	case ClassTokenInvalid:
		return "token_invalid"
	case ClassTransientNetwork:
		return "transient_network"
	case ClassTransientServer:
		return "transient_server"
	case ClassBiometricUnavailable:
		return "biometric_unavailable"
	case ClassBiometricDenied:
		return "biometric_denied"
	default:
		return "unknown"
	}
}

// ClearsTokens reports whether a failure of this class must wipe stored
// credentials. Only genuine rejections clear; everything else preserves the
// pair for a later retry.
func (c ErrorClass) ClearsTokens() bool {
	return c == ClassCredentialInvalid || c == ClassTokenInvalid
}

// Transient reports whether the failure is attributable to network or server
// unavailability rather than credential rejection.
func (c ErrorClass) Transient() bool {
	return c == ClassTransientNetwork || c == ClassTransientServer
}

// Classify maps an error onto its [ErrorClass]. It is a pure function of the
// error chain: sentinel matches first, then transport error shapes.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return ClassCredentialInvalid
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrMalformedTokenResponse),
		errors.Is(err, ErrNoStoredSession):
		return ClassTokenInvalid
	case errors.Is(err, ErrServerUnavailable):
		return ClassTransientServer
	case errors.Is(err, ErrNetworkUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return ClassTransientNetwork
	case errors.Is(err, ErrBiometricUnavailable):
		return ClassBiometricUnavailable
	case errors.Is(err, ErrBiometricDenied):
		return ClassBiometricDenied
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransientNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassTransientNetwork
	}

	return ClassUnknown
}
