package sessionkit

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/vital-labs/sessionkit/internal/audit"
	internalmetrics "github.com/vital-labs/sessionkit/internal/metrics"
)

// TokenPair is the credential pair held for an active session. AccessToken is
// attached to authenticated requests; RefreshToken mints replacements. A pair
// is replaced wholesale on every refresh, never partially updated.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// UserIdentity is the authenticated user as reported by the backend.
type UserIdentity struct {
	ID    string
	Email string
	Name  string
}

// Phase enumerates the session state machine.
type Phase uint8

const (
	// PhaseUnauthenticated means no session exists.
	PhaseUnauthenticated Phase = iota
	// PhaseAuthenticating means a sign-in or registration is in flight.
	PhaseAuthenticating
	// PhaseAuthenticated means a session is established.
	PhaseAuthenticated
	// PhaseRefreshing means a launch-time silent refresh is in flight.
	PhaseRefreshing
	// PhaseLocked means the session exists but is gated behind biometric
	// re-verification. Entered only by the ReauthCoordinator.
	PhaseLocked
)

// String describes the phase for logs and audit events.
func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// SessionState is the process-wide session state published by [Controller].
// User is set in PhaseAuthenticated and PhaseLocked; LockReason only in
// PhaseLocked.
type SessionState struct {
	Phase      Phase
	User       *UserIdentity
	LockReason string
}

// BiometricPreference mirrors the persisted biometric opt-in. The credential
// store is the single source of truth; this value is a read-through copy.
type BiometricPreference struct {
	Enabled             bool
	FirstSetupCompleted bool
	LastEnabledAt       *time.Time
}

// EnrollmentType describes what kind of device verification is enrolled.
type EnrollmentType uint8

const (
	// EnrollmentNone means no usable verification method is enrolled.
	EnrollmentNone EnrollmentType = iota
	// EnrollmentPrimary maps to face recognition.
	EnrollmentPrimary
	// EnrollmentSecondary maps to fingerprint or a device-passcode fallback.
	EnrollmentSecondary
)

func (e EnrollmentType) String() string {
	switch e {
	case EnrollmentPrimary:
		return "primary"
	case EnrollmentSecondary:
		return "secondary"
	default:
		return "none"
	}
}

// VerifyOutcome is the result of a biometric challenge that completed without
// a hardware-level error. Cancellation and platform lockout are VerifyDenied.
type VerifyOutcome uint8

const (
	// VerifyDenied means the user failed or dismissed the challenge.
	VerifyDenied VerifyOutcome = iota
	// VerifyGranted means the challenge succeeded.
	VerifyGranted
)

// Authenticator is the platform biometric challenge. Implementations wrap the
// device's face/fingerprint/passcode APIs; sessionkit performs no retries.
type Authenticator interface {
	// Availability reports whether a challenge can be presented right now and
	// which enrollment backs it. An error means the capability check itself
	// failed and the device must be treated as unavailable.
	Availability(ctx context.Context) (bool, EnrollmentType, error)
	// Verify presents the challenge with a user-facing reason string. An
	// error covers hardware absence or missing enrollment, not denial.
	Verify(ctx context.Context, reason string) (VerifyOutcome, error)
}

// Credentials are the sign-in inputs.
type Credentials struct {
	Email    string
	Password string
}

// Registration is the account creation request.
type Registration struct {
	Email    string
	Password string
	Name     string
	Profile  map[string]string
}

// TokenGrant is a freshly issued token set as returned by the backend.
// ExpiresIn is the access token lifetime relative to issuance.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
}

// AuthBackend is the remote authentication API consumed by the controller.
// The authapi package provides the reference HTTP implementation; tests
// substitute fakes. Implementations must surface failures through the
// sessionkit sentinel vocabulary so [Classify] can route them.
type AuthBackend interface {
	Login(ctx context.Context, creds Credentials) (UserIdentity, TokenGrant, error)
	Register(ctx context.Context, reg Registration) (UserIdentity, TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (TokenGrant, error)
	Logout(ctx context.Context, accessToken string, allDevices bool) error
	CurrentUser(ctx context.Context, accessToken string) (UserIdentity, error)
}

// AuditEvent is a structured audit record emitted by the controller.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the controller's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricSignInSuccess counts successful sign-ins.
	MetricSignInSuccess = internalmetrics.MetricSignInSuccess
	// MetricSignInFailure counts failed sign-ins.
	MetricSignInFailure = internalmetrics.MetricSignInFailure
	// MetricRegisterSuccess counts successful registrations.
	MetricRegisterSuccess = internalmetrics.MetricRegisterSuccess
	// MetricRegisterFailure counts failed registrations.
	MetricRegisterFailure = internalmetrics.MetricRegisterFailure
	// MetricRefreshSuccess counts refreshes that produced a new pair.
	MetricRefreshSuccess = internalmetrics.MetricRefreshSuccess
	// MetricRefreshFailure counts refresh attempts that failed.
	MetricRefreshFailure = internalmetrics.MetricRefreshFailure
	// MetricRefreshCoalesced counts callers served by another caller's
	// in-flight refresh.
	MetricRefreshCoalesced = internalmetrics.MetricRefreshCoalesced
	// MetricRefreshSkippedFresh counts refresh requests satisfied by a still
	// fresh cached token.
	MetricRefreshSkippedFresh = internalmetrics.MetricRefreshSkippedFresh
	// MetricResumeSuccess counts launch resumes that restored a session.
	MetricResumeSuccess = internalmetrics.MetricResumeSuccess
	// MetricResumeTransient counts launch resumes deferred by a transient
	// failure with tokens preserved.
	MetricResumeTransient = internalmetrics.MetricResumeTransient
	// MetricResumeInvalid counts launch resumes that cleared a rejected
	// credential.
	MetricResumeInvalid = internalmetrics.MetricResumeInvalid
	// MetricSignOut counts single-device sign-outs.
	MetricSignOut = internalmetrics.MetricSignOut
	// MetricSignOutAll counts all-device sign-outs.
	MetricSignOutAll = internalmetrics.MetricSignOutAll
	// MetricSignOutRemoteFailure counts sign-outs whose remote invalidation
	// call failed; local cleanup still ran.
	MetricSignOutRemoteFailure = internalmetrics.MetricSignOutRemoteFailure
	// MetricTokensCleared counts credential-store wipes.
	MetricTokensCleared = internalmetrics.MetricTokensCleared
	// MetricBiometricGranted counts granted biometric challenges.
	MetricBiometricGranted = internalmetrics.MetricBiometricGranted
	// MetricBiometricDenied counts denied or cancelled challenges.
	MetricBiometricDenied = internalmetrics.MetricBiometricDenied
	// MetricBiometricUnavailable counts challenges skipped for lack of
	// hardware or enrollment.
	MetricBiometricUnavailable = internalmetrics.MetricBiometricUnavailable
	// MetricPreferenceEnabled counts biometric opt-ins.
	MetricPreferenceEnabled = internalmetrics.MetricPreferenceEnabled
	// MetricPreferenceDisabled counts biometric opt-outs.
	MetricPreferenceDisabled = internalmetrics.MetricPreferenceDisabled
	// MetricLockEngaged counts transitions into the locked phase.
	MetricLockEngaged = internalmetrics.MetricLockEngaged
	// MetricLockReleased counts unlocks.
	MetricLockReleased = internalmetrics.MetricLockReleased
	// MetricForcedSignOut counts sign-outs forced by repeated biometric
	// denial.
	MetricForcedSignOut = internalmetrics.MetricForcedSignOut
	// MetricRefreshLatency is the refresh round-trip latency histogram.
	MetricRefreshLatency = internalmetrics.MetricRefreshLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
