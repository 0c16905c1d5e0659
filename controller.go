package sessionkit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/vital-labs/sessionkit/internal/audit"
	internalmetrics "github.com/vital-labs/sessionkit/internal/metrics"
)

// Controller is the top-level session orchestrator: sign-in, registration,
// sign-out, launch resume, and access-token supply for the API layer. One
// Controller exists per process, constructed through [Builder.Build] and
// passed explicitly to whatever builds the UI layer; there is no ambient
// singleton.
//
// Exactly one sign-in, register, resume, or sign-out may be in flight at a
// time; an overlapping call gets [ErrOperationInFlight] instead of being
// queued, so state transitions never interleave.
type Controller struct {
	cfg     Config
	backend AuthBackend
	tokens  *tokenLifecycle
	gate    *BiometricGate
	reauth  *ReauthCoordinator
	audit   *internalaudit.Dispatcher
	metrics *internalmetrics.Metrics
	log     zerolog.Logger
	clock   func() time.Time

	inFlight atomic.Bool

	mu      sync.Mutex
	state   SessionState
	subs    map[uint64]chan SessionState
	nextSub uint64
	closed  bool
}

// State returns the current session state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel receiving every state transition, and a cancel
// function that releases it. Delivery is non-blocking: a subscriber that
// falls more than the buffer behind misses intermediate states but always
// observes a later one. Typed subscription replaces broadcast-by-name so
// consumers get a payload, not a string to re-dispatch on.
func (c *Controller) Subscribe() (<-chan SessionState, func()) {
	ch := make(chan SessionState, 8)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// publish mutates the process-wide state and fans it out. All transitions
// route through here, under one lock, so no two interleave.
func (c *Controller) publish(state SessionState) {
	c.mu.Lock()
	c.state = state
	for _, sub := range c.subs {
		select {
		case sub <- state:
		default:
		}
	}
	c.mu.Unlock()
}

func (c *Controller) publishPhase(phase Phase, user *UserIdentity, lockReason string) {
	c.publish(SessionState{Phase: phase, User: user, LockReason: lockReason})
}

// SignIn authenticates with email and password. On success the issued pair
// is persisted and the state becomes authenticated; on failure the state
// returns to unauthenticated and the error carries its [ErrorClass] through
// the sentinel chain for the caller to translate into a message.
func (c *Controller) SignIn(ctx context.Context, creds Credentials) (UserIdentity, error) {
	return c.authenticate(ctx, auditEventSignInSuccess, auditEventSignInFailure,
		MetricSignInSuccess, MetricSignInFailure,
		func() (UserIdentity, TokenGrant, error) {
			return c.backend.Login(ctx, creds)
		})
}

// Register creates an account and signs it in.
func (c *Controller) Register(ctx context.Context, reg Registration) (UserIdentity, error) {
	return c.authenticate(ctx, auditEventRegisterSuccess, auditEventRegisterFailure,
		MetricRegisterSuccess, MetricRegisterFailure,
		func() (UserIdentity, TokenGrant, error) {
			return c.backend.Register(ctx, reg)
		})
}

func (c *Controller) authenticate(ctx context.Context, successEvent, failureEvent string, successMetric, failureMetric MetricID, call func() (UserIdentity, TokenGrant, error)) (UserIdentity, error) {
	if c == nil || c.backend == nil {
		return UserIdentity{}, ErrControllerNotReady
	}
	switch c.State().Phase {
	case PhaseAuthenticated, PhaseLocked:
		return UserIdentity{}, ErrAlreadyAuthenticated
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return UserIdentity{}, ErrOperationInFlight
	}
	defer c.inFlight.Store(false)

	c.publishPhase(PhaseAuthenticating, nil, "")

	user, grant, err := call()
	if err == nil {
		_, err = c.tokens.storePair(ctx, grant)
	}
	if err != nil {
		c.metrics.Inc(failureMetric)
		c.emitAudit(ctx, failureEvent, false, "", err, func() map[string]string {
			return map[string]string{"class": Classify(err).String()}
		})
		c.publishPhase(PhaseUnauthenticated, nil, "")
		return UserIdentity{}, err
	}

	c.metrics.Inc(successMetric)
	c.emitAudit(ctx, successEvent, true, user.ID, nil, nil)
	c.publishPhase(PhaseAuthenticated, &user, "")
	return user, nil
}

// Resume performs the launch-time silent sign-in: when a refresh token is
// stored, refresh it and fetch the current identity. A credential rejection
// clears the stored pair; a transient failure leaves it in place so the next
// foreground event can retry without the user re-entering credentials.
func (c *Controller) Resume(ctx context.Context) (UserIdentity, error) {
	if c == nil || c.backend == nil {
		return UserIdentity{}, ErrControllerNotReady
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return UserIdentity{}, ErrOperationInFlight
	}
	defer c.inFlight.Store(false)

	if !c.tokens.hasStoredSession(ctx) {
		c.publishPhase(PhaseUnauthenticated, nil, "")
		return UserIdentity{}, ErrNoStoredSession
	}

	c.publishPhase(PhaseRefreshing, nil, "")
	epoch := c.tokens.currentEpoch()

	pair, err := c.tokens.refreshIfNeeded(ctx)
	if err != nil {
		return UserIdentity{}, c.failResume(ctx, err)
	}

	user, err := c.backend.CurrentUser(ctx, pair.AccessToken)
	if err != nil {
		if Classify(err).ClearsTokens() {
			if clearErr := c.tokens.clear(ctx); clearErr != nil {
				c.log.Warn().Err(clearErr).Msg("sessionkit: clearing rejected credentials failed")
			}
		}
		return UserIdentity{}, c.failResume(ctx, err)
	}

	// Stale-response guard: a sign-out during the identity fetch wins.
	if c.tokens.currentEpoch() != epoch {
		c.publishPhase(PhaseUnauthenticated, nil, "")
		return UserIdentity{}, ErrSessionSuperseded
	}

	c.metrics.Inc(MetricResumeSuccess)
	c.emitAudit(ctx, auditEventResumeSuccess, true, user.ID, nil, nil)
	c.publishPhase(PhaseAuthenticated, &user, "")
	return user, nil
}

func (c *Controller) failResume(ctx context.Context, err error) error {
	class := Classify(err)
	if class.ClearsTokens() {
		c.metrics.Inc(MetricResumeInvalid)
	} else {
		c.metrics.Inc(MetricResumeTransient)
	}
	c.emitAudit(ctx, auditEventResumeFailure, false, "", err, func() map[string]string {
		return map[string]string{"class": class.String()}
	})
	c.publishPhase(PhaseUnauthenticated, nil, "")
	return err
}

// SignOut ends the session. The remote invalidation call is best-effort and
// time-bounded; local tokens and state are cleared regardless of its
// outcome, and a remote failure is reported only after cleanup completed.
// Local security never depends on remote availability.
func (c *Controller) SignOut(ctx context.Context, allDevices bool) error {
	return c.signOut(ctx, allDevices, false, auditEventSignOut)
}

// forceSignOut is the reauth coordinator's escalation path. It bypasses the
// in-flight guard: the forced path must win even against a pending refresh,
// whose result the epoch guard then discards.
func (c *Controller) forceSignOut(ctx context.Context) error {
	return c.signOut(ctx, false, true, auditEventForcedSignOut)
}

func (c *Controller) signOut(ctx context.Context, allDevices, force bool, event string) error {
	if c == nil || c.backend == nil {
		return ErrControllerNotReady
	}
	if !force {
		if !c.inFlight.CompareAndSwap(false, true) {
			return ErrOperationInFlight
		}
		defer c.inFlight.Store(false)
	}

	var userID string
	if u := c.State().User; u != nil {
		userID = u.ID
	}

	var remoteErr error
	if pair, ok := c.tokens.current(ctx); ok && pair.AccessToken != "" {
		rctx, cancel := context.WithTimeout(ctx, c.cfg.Token.RemoteSignOutTimeout)
		remoteErr = c.backend.Logout(rctx, pair.AccessToken, allDevices)
		cancel()
	}

	// Cleanup is unconditional, not contingent on the remote outcome.
	if err := c.tokens.clear(ctx); err != nil {
		c.log.Warn().Err(err).Msg("sessionkit: deleting stored tokens failed")
	}
	if c.reauth != nil {
		c.reauth.reset()
	}

	if allDevices {
		c.metrics.Inc(MetricSignOutAll)
	} else {
		c.metrics.Inc(MetricSignOut)
	}
	if remoteErr != nil {
		c.metrics.Inc(MetricSignOutRemoteFailure)
		c.log.Warn().Err(remoteErr).Msg("sessionkit: remote sign-out failed")
	}
	c.emitAudit(ctx, event, remoteErr == nil, userID, remoteErr, func() map[string]string {
		return map[string]string{"all_devices": strconv.FormatBool(allDevices)}
	})
	c.publishPhase(PhaseUnauthenticated, nil, "")

	if remoteErr != nil {
		return fmt.Errorf("remote sign-out failed (local session cleared): %w", remoteErr)
	}
	return nil
}

// GetValidAccessToken returns an access token with at least the safety
// margin of lifetime left, refreshing first when needed. This is the API
// layer's entry point for the Authorization header. Concurrent callers are
// coalesced onto a single refresh.
func (c *Controller) GetValidAccessToken(ctx context.Context) (string, error) {
	if c == nil || c.tokens == nil {
		return "", ErrControllerNotReady
	}
	pair, err := c.tokens.refreshIfNeeded(ctx)
	if err != nil {
		if Classify(err).ClearsTokens() {
			// The credential died mid-session; demote published state.
			switch c.State().Phase {
			case PhaseAuthenticated, PhaseLocked:
				c.publishPhase(PhaseUnauthenticated, nil, "")
			}
		}
		return "", err
	}
	return pair.AccessToken, nil
}

// HasStoredSession reports whether a resumable refresh token is persisted.
func (c *Controller) HasStoredSession(ctx context.Context) bool {
	return c.tokens.hasStoredSession(ctx)
}

// Biometrics returns the biometric gate.
func (c *Controller) Biometrics() *BiometricGate {
	return c.gate
}

// Reauth returns the foreground re-verification coordinator.
func (c *Controller) Reauth() *ReauthCoordinator {
	return c.reauth
}

// lockSession obscures an authenticated session behind the reauth gate.
// Entered only through the coordinator.
func (c *Controller) lockSession(reason string) {
	c.mu.Lock()
	if c.state.Phase != PhaseAuthenticated {
		c.mu.Unlock()
		return
	}
	user := c.state.User
	c.mu.Unlock()
	c.publishPhase(PhaseLocked, user, reason)
}

// unlockSession restores the authenticated phase after a granted challenge
// or a below-threshold foreground.
func (c *Controller) unlockSession() {
	c.mu.Lock()
	if c.state.Phase != PhaseLocked {
		c.mu.Unlock()
		return
	}
	user := c.state.User
	c.mu.Unlock()
	c.publishPhase(PhaseAuthenticated, user, "")
}

// MetricsSnapshot returns a point-in-time copy of all metrics.
func (c *Controller) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// AuditDropped reports how many audit events were dropped under
// backpressure.
func (c *Controller) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

// Close stops the audit dispatcher and closes all subscriptions. The
// controller must not be used afterwards.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.audit.Close()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		for id, sub := range c.subs {
			delete(c.subs, id)
			close(sub)
		}
	}
	c.mu.Unlock()
}
