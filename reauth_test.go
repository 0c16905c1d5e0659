package sessionkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func enableBiometrics(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.Biometrics().SetPreference(context.Background(), true); err != nil {
		t.Fatalf("enabling biometrics failed: %v", err)
	}
}

func TestQuickSwitchUnlocksWithoutChallenge(t *testing.T) {
	clk := newFakeClock()
	auth := newFakeAuthenticator()
	c, _ := newTestController(t, newFakeBackend(), auth, clk, nil)
	mustSignIn(t, c)
	enableBiometrics(t, c)

	reauth := c.Reauth()
	reauth.HandleBackground()
	if got := c.State().Phase; got != PhaseLocked {
		t.Fatalf("expected locked phase while backgrounded, got %s", got)
	}

	clk.Advance(time.Minute)

	if got := reauth.HandleForeground(context.Background()); got != LockUnlocked {
		t.Fatalf("expected unlocked after a quick switch, got %s", got)
	}
	if got := c.State().Phase; got != PhaseAuthenticated {
		t.Fatalf("expected authenticated phase restored, got %s", got)
	}
	if auth.verifyCalls != 0 {
		t.Fatalf("quick switch must not prompt, got %d challenges", auth.verifyCalls)
	}
}

func TestLongBackgroundRequiresChallenge(t *testing.T) {
	clk := newFakeClock()
	auth := newFakeAuthenticator()
	c, _ := newTestController(t, newFakeBackend(), auth, clk, nil)
	mustSignIn(t, c)
	enableBiometrics(t, c)

	reauth := c.Reauth()
	reauth.HandleBackground()
	clk.Advance(10 * time.Minute)

	if got := reauth.HandleForeground(context.Background()); got != LockAwaitingBiometric {
		t.Fatalf("expected awaiting biometric, got %s", got)
	}
	if got := c.State().Phase; got != PhaseLocked {
		t.Fatalf("session must stay locked until the challenge passes, got %s", got)
	}

	ok, err := reauth.RequestUnlock(context.Background(), "Unlock your session")
	if err != nil || !ok {
		t.Fatalf("expected granted unlock, got ok=%v err=%v", ok, err)
	}
	if got := c.State().Phase; got != PhaseAuthenticated {
		t.Fatalf("expected authenticated phase after unlock, got %s", got)
	}
	if auth.verifyCalls != 1 {
		t.Fatalf("expected exactly 1 challenge, got %d", auth.verifyCalls)
	}
}

func TestRepeatedDenialForcesSignOut(t *testing.T) {
	clk := newFakeClock()
	auth := newFakeAuthenticator()
	auth.setOutcome(VerifyDenied)
	c, _ := newTestController(t, newFakeBackend(), auth, clk, nil)
	mustSignIn(t, c)
	enableBiometrics(t, c)

	reauth := c.Reauth()
	reauth.HandleBackground()
	clk.Advance(10 * time.Minute)
	if got := reauth.HandleForeground(context.Background()); got != LockAwaitingBiometric {
		t.Fatalf("expected awaiting biometric, got %s", got)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		ok, err := reauth.RequestUnlock(context.Background(), "unlock")
		if ok || !errors.Is(err, ErrBiometricDenied) {
			t.Fatalf("attempt %d: expected denial, got ok=%v err=%v", attempt, ok, err)
		}
		if !c.HasStoredSession(context.Background()) {
			t.Fatalf("attempt %d must not clear the session yet", attempt)
		}
	}

	// Third denial reaches the cap and fails closed.
	ok, err := reauth.RequestUnlock(context.Background(), "unlock")
	if ok || !errors.Is(err, ErrBiometricDenied) {
		t.Fatalf("expected final denial, got ok=%v err=%v", ok, err)
	}
	if c.HasStoredSession(context.Background()) {
		t.Fatal("exhausted attempts must force a sign-out")
	}
	if got := c.State().Phase; got != PhaseUnauthenticated {
		t.Fatalf("expected unauthenticated phase, got %s", got)
	}
	if got := reauth.State(); got != LockUnlocked {
		t.Fatalf("expected coordinator reset after forced sign-out, got %s", got)
	}
}

func TestDisabledBiometricsUnlockWithoutPrompt(t *testing.T) {
	clk := newFakeClock()
	auth := newFakeAuthenticator()
	c, _ := newTestController(t, newFakeBackend(), auth, clk, nil)
	mustSignIn(t, c)
	// Preference never enabled.

	reauth := c.Reauth()
	reauth.HandleBackground()
	clk.Advance(10 * time.Minute)

	if got := reauth.HandleForeground(context.Background()); got != LockUnlocked {
		t.Fatalf("disabled biometrics must unlock without a prompt, got %s", got)
	}
	if auth.verifyCalls != 0 {
		t.Fatalf("expected no challenge, got %d", auth.verifyCalls)
	}
}

func TestUnavailableAuthenticatorFailsOpen(t *testing.T) {
	clk := newFakeClock()
	auth := newFakeAuthenticator()
	c, _ := newTestController(t, newFakeBackend(), auth, clk, nil)
	mustSignIn(t, c)
	enableBiometrics(t, c)

	reauth := c.Reauth()
	reauth.HandleBackground()
	clk.Advance(10 * time.Minute)
	if got := reauth.HandleForeground(context.Background()); got != LockAwaitingBiometric {
		t.Fatalf("expected awaiting biometric, got %s", got)
	}

	// Enrollment vanished between foregrounding and the challenge. Losing the
	// capability degrades to no biometric protection instead of a lockout.
	auth.setAvailable(false)

	ok, err := reauth.RequestUnlock(context.Background(), "unlock")
	if err != nil || !ok {
		t.Fatalf("expected fail-open unlock, got ok=%v err=%v", ok, err)
	}
	if got := c.State().Phase; got != PhaseAuthenticated {
		t.Fatalf("expected authenticated phase, got %s", got)
	}
}

func TestBackgroundWithoutSessionIgnored(t *testing.T) {
	clk := newFakeClock()
	c, _ := newTestController(t, newFakeBackend(), newFakeAuthenticator(), clk, nil)

	reauth := c.Reauth()
	reauth.HandleBackground()
	if got := reauth.State(); got != LockUnlocked {
		t.Fatalf("background without a session must not lock, got %s", got)
	}
	if got := c.State().Phase; got != PhaseUnauthenticated {
		t.Fatalf("expected unauthenticated phase, got %s", got)
	}
}

func TestRequestUnlockWhileUnlockedIsIdempotent(t *testing.T) {
	clk := newFakeClock()
	auth := newFakeAuthenticator()
	c, _ := newTestController(t, newFakeBackend(), auth, clk, nil)
	mustSignIn(t, c)

	ok, err := c.Reauth().RequestUnlock(context.Background(), "unlock")
	if err != nil || !ok {
		t.Fatalf("expected trivially granted unlock, got ok=%v err=%v", ok, err)
	}
	if auth.verifyCalls != 0 {
		t.Fatalf("no challenge expected while unlocked, got %d", auth.verifyCalls)
	}
}
