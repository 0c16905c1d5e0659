package sessionkit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	internalmetrics "github.com/vital-labs/sessionkit/internal/metrics"
)

// LockState enumerates the reauth coordinator's machine.
type LockState uint8

const (
	// LockUnlocked means protected content may be shown.
	LockUnlocked LockState = iota
	// LockPendingReauth means the app went to the background with an active
	// session; content stays obscured until foregrounding is adjudicated.
	LockPendingReauth
	// LockAwaitingBiometric means foregrounding exceeded the threshold and a
	// challenge must be passed before content is shown.
	LockAwaitingBiometric
)

func (s LockState) String() string {
	switch s {
	case LockPendingReauth:
		return "pending_reauth"
	case LockAwaitingBiometric:
		return "awaiting_biometric"
	default:
		return "unlocked"
	}
}

// ReauthCoordinator reacts to foreground/background transitions. Returning
// to the foreground after more than the configured threshold requires a
// biometric verification before protected content is shown; repeated denial
// escalates to a forced sign-out. The obscured state while locked is the
// security boundary, not a cosmetic gate: callers must keep content hidden
// whenever State is not LockUnlocked.
type ReauthCoordinator struct {
	controller  *Controller
	gate        *BiometricGate
	threshold   time.Duration
	maxAttempts int
	clock       func() time.Time
	log         zerolog.Logger
	metrics     *internalmetrics.Metrics

	mu             sync.Mutex
	state          LockState
	backgroundedAt time.Time
	attempts       int
}

func newReauthCoordinator(controller *Controller, gate *BiometricGate, cfg Config, clock func() time.Time, log zerolog.Logger, metrics *internalmetrics.Metrics) *ReauthCoordinator {
	return &ReauthCoordinator{
		controller:  controller,
		gate:        gate,
		threshold:   cfg.Reauth.LockThreshold,
		maxAttempts: cfg.Reauth.MaxAttempts,
		clock:       clock,
		log:         log,
		metrics:     metrics,
	}
}

// State returns the current lock state.
func (r *ReauthCoordinator) State() LockState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HandleBackground records the transition out of the foreground. With an
// active session the coordinator engages the lock so content is already
// obscured in the app switcher.
func (r *ReauthCoordinator) HandleBackground() {
	if r.controller.State().Phase != PhaseAuthenticated {
		return
	}

	r.mu.Lock()
	if r.state != LockUnlocked {
		r.mu.Unlock()
		return
	}
	r.state = LockPendingReauth
	r.backgroundedAt = r.clock()
	r.mu.Unlock()

	r.metrics.Inc(MetricLockEngaged)
	r.controller.lockSession("backgrounded")
}

// HandleForeground adjudicates the return to the foreground. Below the
// threshold, or when biometric protection is disabled or unavailable, the
// session unlocks without a prompt; otherwise the state moves to
// LockAwaitingBiometric and the caller must drive RequestUnlock.
func (r *ReauthCoordinator) HandleForeground(ctx context.Context) LockState {
	r.mu.Lock()
	if r.state != LockPendingReauth {
		state := r.state
		r.mu.Unlock()
		return state
	}
	elapsed := r.clock().Sub(r.backgroundedAt)
	r.mu.Unlock()

	if elapsed < r.threshold {
		r.unlock()
		return LockUnlocked
	}

	pref, err := r.gate.Preference(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("sessionkit: reading biometric preference failed")
	}
	// Disabled or unavailable biometrics degrade to "no biometric
	// protection": the absence of the capability must not strand the user.
	if err != nil || !pref.Enabled || !r.gate.IsAvailable(ctx) {
		r.unlock()
		return LockUnlocked
	}

	r.mu.Lock()
	r.state = LockAwaitingBiometric
	r.mu.Unlock()
	return LockAwaitingBiometric
}

// RequestUnlock runs one biometric challenge while LockAwaitingBiometric.
// Granted verification unlocks; denial or cancellation counts an attempt,
// and reaching the attempt cap forces a sign-out (fail closed). An
// unavailable authenticator unlocks without a challenge, mirroring
// HandleForeground's degradation.
func (r *ReauthCoordinator) RequestUnlock(ctx context.Context, reason string) (bool, error) {
	r.mu.Lock()
	if r.state != LockAwaitingBiometric {
		unlocked := r.state == LockUnlocked
		r.mu.Unlock()
		return unlocked, nil
	}
	r.mu.Unlock()

	outcome, err := r.gate.Verify(ctx, reason)
	if err != nil {
		if Classify(err) == ClassBiometricUnavailable {
			r.unlock()
			return true, nil
		}
		return false, err
	}

	if outcome == VerifyGranted {
		r.unlock()
		return true, nil
	}

	r.mu.Lock()
	r.attempts++
	exhausted := r.attempts >= r.maxAttempts
	attempts := r.attempts
	r.mu.Unlock()

	if !exhausted {
		r.log.Warn().Int("attempts", attempts).Msg("sessionkit: biometric reauth denied")
		return false, ErrBiometricDenied
	}

	// Attempt cap reached: the gate exists to protect authenticated state,
	// so it fails closed.
	r.metrics.Inc(MetricForcedSignOut)
	if signOutErr := r.controller.forceSignOut(ctx); signOutErr != nil {
		r.log.Warn().Err(signOutErr).Msg("sessionkit: forced sign-out remote call failed")
	}
	r.reset()
	return false, ErrBiometricDenied
}

func (r *ReauthCoordinator) unlock() {
	r.mu.Lock()
	r.state = LockUnlocked
	r.attempts = 0
	r.mu.Unlock()

	r.metrics.Inc(MetricLockReleased)
	r.controller.unlockSession()
}

// reset drops the coordinator back to unlocked without touching the
// controller; used after a sign-out already reset session state.
func (r *ReauthCoordinator) reset() {
	r.mu.Lock()
	r.state = LockUnlocked
	r.attempts = 0
	r.mu.Unlock()
}
