package sessionkit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vital-labs/sessionkit/credstore"
	internalmetrics "github.com/vital-labs/sessionkit/internal/metrics"
)

// BiometricGate wraps the platform biometric challenge and owns the persisted
// opt-in preference. No other component reads the biometric store keys.
//
// Preference reads always go through the store. The store is the single
// source of truth; any in-memory copy a caller keeps is a cache that must
// re-validate against storage, never the reverse.
type BiometricGate struct {
	auth    Authenticator
	store   credstore.Store
	keys    KeyConfig
	clock   func() time.Time
	log     zerolog.Logger
	metrics *internalmetrics.Metrics
	emit    func(event string, success bool, err error, meta map[string]string)

	mu       sync.Mutex
	onChange []func(BiometricPreference)
}

func newBiometricGate(auth Authenticator, store credstore.Store, cfg Config, clock func() time.Time, log zerolog.Logger, metrics *internalmetrics.Metrics) *BiometricGate {
	return &BiometricGate{
		auth:    auth,
		store:   store,
		keys:    cfg.Keys,
		clock:   clock,
		log:     log,
		metrics: metrics,
		emit:    func(string, bool, error, map[string]string) {},
	}
}

// IsAvailable reports whether a challenge can be presented right now.
func (g *BiometricGate) IsAvailable(ctx context.Context) bool {
	if g == nil || g.auth == nil {
		return false
	}
	ok, _, err := g.auth.Availability(ctx)
	return err == nil && ok
}

// Enrollment reports which verification method backs the challenge.
func (g *BiometricGate) Enrollment(ctx context.Context) EnrollmentType {
	if g == nil || g.auth == nil {
		return EnrollmentNone
	}
	ok, enrollment, err := g.auth.Availability(ctx)
	if err != nil || !ok {
		return EnrollmentNone
	}
	return enrollment
}

// Verify presents the platform challenge with a user-facing reason. It
// performs no retries; retry policy belongs to the caller (the reauth
// coordinator). Denial and cancellation are VerifyDenied; hardware absence
// and missing enrollment are ErrBiometricUnavailable.
func (g *BiometricGate) Verify(ctx context.Context, reason string) (VerifyOutcome, error) {
	if g == nil || g.auth == nil {
		g.metrics.Inc(MetricBiometricUnavailable)
		return VerifyDenied, ErrBiometricUnavailable
	}
	ok, _, err := g.auth.Availability(ctx)
	if err != nil || !ok {
		g.metrics.Inc(MetricBiometricUnavailable)
		return VerifyDenied, ErrBiometricUnavailable
	}

	outcome, err := g.auth.Verify(ctx, reason)
	if err != nil {
		g.metrics.Inc(MetricBiometricUnavailable)
		return VerifyDenied, err
	}
	if outcome == VerifyGranted {
		g.metrics.Inc(MetricBiometricGranted)
	} else {
		g.metrics.Inc(MetricBiometricDenied)
	}
	return outcome, nil
}

// Preference reads the persisted opt-in state. Every call answers from the
// store; there is no unchecked in-memory copy.
func (g *BiometricGate) Preference(ctx context.Context) (BiometricPreference, error) {
	var pref BiometricPreference

	enabled, ok, err := g.store.Load(ctx, g.keys.BiometricEnabled)
	if err != nil {
		return pref, err
	}
	if ok {
		pref.Enabled, _ = strconv.ParseBool(enabled)
	}

	setup, ok, err := g.store.Load(ctx, g.keys.BiometricFirstSetup)
	if err != nil {
		return pref, err
	}
	if ok {
		pref.FirstSetupCompleted, _ = strconv.ParseBool(setup)
	}

	last, ok, err := g.store.Load(ctx, g.keys.BiometricLastEnabled)
	if err != nil {
		return pref, err
	}
	if ok && last != "" {
		if ts, parseErr := time.Parse(time.RFC3339, last); parseErr == nil {
			pref.LastEnabledAt = &ts
		}
	}
	return pref, nil
}

// IsFirstTimeSetup reports whether the biometric opt-in flow has never run.
// The completed flag persists across sign-out.
func (g *BiometricGate) IsFirstTimeSetup(ctx context.Context) bool {
	pref, err := g.Preference(ctx)
	return err == nil && !pref.FirstSetupCompleted
}

// SetPreference updates the persisted opt-in. Enabling re-checks
// availability first and refuses when the capability is gone. The order is
// fixed: capability check, persist, re-read, notify. Observers never see a
// notification for a state that failed to persist.
func (g *BiometricGate) SetPreference(ctx context.Context, enabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if enabled && !g.IsAvailable(ctx) {
		g.metrics.Inc(MetricBiometricUnavailable)
		g.emit("biometric_preference_rejected", false, ErrBiometricUnavailable, nil)
		return ErrBiometricUnavailable
	}

	if err := g.store.Save(ctx, g.keys.BiometricEnabled, strconv.FormatBool(enabled)); err != nil {
		return err
	}
	if err := g.store.Save(ctx, g.keys.BiometricFirstSetup, "true"); err != nil {
		return err
	}
	if enabled {
		if err := g.store.Save(ctx, g.keys.BiometricLastEnabled, g.clock().UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}

	// Re-read so observers get exactly what the store now holds.
	pref, err := g.Preference(ctx)
	if err != nil {
		return err
	}

	if enabled {
		g.metrics.Inc(MetricPreferenceEnabled)
	} else {
		g.metrics.Inc(MetricPreferenceDisabled)
	}
	g.emit("biometric_preference_changed", true, nil, map[string]string{
		"enabled": strconv.FormatBool(enabled),
	})
	for _, fn := range g.onChange {
		fn(pref)
	}
	return nil
}

// OnPreferenceChange registers a callback invoked after a preference change
// has been persisted and re-read. Callbacks run on the caller's goroutine.
func (g *BiometricGate) OnPreferenceChange(fn func(BiometricPreference)) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = append(g.onChange, fn)
}
