package sessionkit

import "errors"

var (
	// ErrInvalidCredentials is returned when the backend rejects an email and
	// password combination on sign-in, or rejects a registration request.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid is returned when the backend rejects a stored token
	// (401/403 on refresh or identity fetch).
	ErrTokenInvalid = errors.New("invalid token")
	// ErrMalformedTokenResponse is returned when a refresh or login response
	// decodes but carries a structurally invalid token grant.
	ErrMalformedTokenResponse = errors.New("malformed token response")
	// ErrNoStoredSession is returned when an operation requires a persisted
	// refresh token and none exists.
	ErrNoStoredSession = errors.New("no stored session")
	// ErrNetworkUnavailable is returned when the backend cannot be reached:
	// no connectivity, DNS failure, or request timeout.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrServerUnavailable is returned on a 5xx backend response.
	ErrServerUnavailable = errors.New("server unavailable")
	// ErrOperationInFlight is returned when a sign-in, register, resume, or
	// sign-out is requested while another is still pending. The second call is
	// rejected, never queued.
	ErrOperationInFlight = errors.New("operation already in flight")
	// ErrAlreadyAuthenticated is returned by SignIn and Register when a
	// session is already established.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrSessionSuperseded is returned when an in-flight refresh completes
	// after the session it belonged to was cleared by a sign-out.
	ErrSessionSuperseded = errors.New("session superseded")
	// ErrBiometricUnavailable is returned when no biometric hardware is
	// present, nothing is enrolled, or no authenticator was configured.
	ErrBiometricUnavailable = errors.New("biometric unavailable")
	// ErrBiometricDenied is returned when the user fails or cancels a
	// biometric challenge. Lockout by the platform counts as denied.
	ErrBiometricDenied = errors.New("biometric denied")
	// ErrControllerNotReady is returned when a Controller method is invoked on
	// a nil or unbuilt controller.
	ErrControllerNotReady = errors.New("controller not initialized")
)
