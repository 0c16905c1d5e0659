package internaldefs

import (
	sessionkit "github.com/vital-labs/sessionkit"
)

// CounterDef binds a core metric slot to its exported name and help text.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// HistogramDef binds a core histogram slot to its exported name and help text.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in stable render order.
var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricSignInSuccess, Name: "sessionkit_signin_success_total", Help: "Successful sign-in attempts."},
	{ID: sessionkit.MetricSignInFailure, Name: "sessionkit_signin_failure_total", Help: "Failed sign-in attempts."},
	{ID: sessionkit.MetricRegisterSuccess, Name: "sessionkit_register_success_total", Help: "Successful registrations."},
	{ID: sessionkit.MetricRegisterFailure, Name: "sessionkit_register_failure_total", Help: "Failed registrations."},
	{ID: sessionkit.MetricRefreshSuccess, Name: "sessionkit_refresh_success_total", Help: "Successful token refresh operations."},
	{ID: sessionkit.MetricRefreshFailure, Name: "sessionkit_refresh_failure_total", Help: "Failed token refresh operations."},
	{ID: sessionkit.MetricRefreshCoalesced, Name: "sessionkit_refresh_coalesced_total", Help: "Refresh calls coalesced onto an in-flight refresh."},
	{ID: sessionkit.MetricRefreshSkippedFresh, Name: "sessionkit_refresh_skipped_fresh_total", Help: "Refresh calls skipped because the access token was still fresh."},
	{ID: sessionkit.MetricResumeSuccess, Name: "sessionkit_resume_success_total", Help: "Successful session resumes."},
	{ID: sessionkit.MetricResumeTransient, Name: "sessionkit_resume_transient_total", Help: "Session resumes failed by transient errors, tokens preserved."},
	{ID: sessionkit.MetricResumeInvalid, Name: "sessionkit_resume_invalid_total", Help: "Session resumes failed by invalid tokens, tokens cleared."},
	{ID: sessionkit.MetricSignOut, Name: "sessionkit_signout_total", Help: "Single-device sign-out operations."},
	{ID: sessionkit.MetricSignOutAll, Name: "sessionkit_signout_all_total", Help: "All-device sign-out operations."},
	{ID: sessionkit.MetricSignOutRemoteFailure, Name: "sessionkit_signout_remote_failure_total", Help: "Sign-outs whose remote revocation call failed."},
	{ID: sessionkit.MetricTokensCleared, Name: "sessionkit_tokens_cleared_total", Help: "Local token clear operations."},
	{ID: sessionkit.MetricBiometricGranted, Name: "sessionkit_biometric_granted_total", Help: "Granted biometric verifications."},
	{ID: sessionkit.MetricBiometricDenied, Name: "sessionkit_biometric_denied_total", Help: "Denied biometric verifications."},
	{ID: sessionkit.MetricBiometricUnavailable, Name: "sessionkit_biometric_unavailable_total", Help: "Biometric verifications attempted without capability."},
	{ID: sessionkit.MetricPreferenceEnabled, Name: "sessionkit_preference_enabled_total", Help: "Biometric preference enable operations."},
	{ID: sessionkit.MetricPreferenceDisabled, Name: "sessionkit_preference_disabled_total", Help: "Biometric preference disable operations."},
	{ID: sessionkit.MetricLockEngaged, Name: "sessionkit_lock_engaged_total", Help: "Session locks engaged on backgrounding."},
	{ID: sessionkit.MetricLockReleased, Name: "sessionkit_lock_released_total", Help: "Session locks released."},
	{ID: sessionkit.MetricForcedSignOut, Name: "sessionkit_forced_signout_total", Help: "Forced sign-outs after exhausted reauth attempts."},
}

// HistogramDefs lists every exported histogram in stable render order.
var HistogramDefs = []HistogramDef{
	{ID: sessionkit.MetricRefreshLatency, Name: "sessionkit_refresh_latency_seconds", Help: "Token refresh latency histogram."},
}

// HistogramBounds holds the bucket upper bounds as Prometheus le label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"1",
	"+Inf",
}

// HistogramBoundSuffix holds the bucket bounds as OTel-safe name suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"1",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
