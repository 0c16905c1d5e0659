package sessionkit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vital-labs/sessionkit/credstore"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeBackend is an in-memory AuthBackend. Error fields force the matching
// call to fail; refreshGate, when set, runs inside Refresh after the call
// counter increments, letting tests hold a refresh in flight.
type fakeBackend struct {
	mu       sync.Mutex
	user     UserIdentity
	grantTTL time.Duration
	serial   int

	loginErr       error
	registerErr    error
	refreshErr     error
	logoutErr      error
	currentUserErr error

	refreshGate func()

	refreshCalls   atomic.Int32
	logoutCalls    atomic.Int32
	lastAllDevices atomic.Bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		user:     UserIdentity{ID: "user-1", Email: "alice@example.com", Name: "Alice"},
		grantTTL: 15 * time.Minute,
	}
}

func (b *fakeBackend) issue() TokenGrant {
	b.serial++
	return TokenGrant{
		AccessToken:  fmt.Sprintf("access-%d", b.serial),
		RefreshToken: fmt.Sprintf("refresh-%d", b.serial),
		TokenType:    "Bearer",
		ExpiresIn:    b.grantTTL,
	}
}

func (b *fakeBackend) Login(_ context.Context, _ Credentials) (UserIdentity, TokenGrant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loginErr != nil {
		return UserIdentity{}, TokenGrant{}, b.loginErr
	}
	return b.user, b.issue(), nil
}

func (b *fakeBackend) Register(_ context.Context, reg Registration) (UserIdentity, TokenGrant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.registerErr != nil {
		return UserIdentity{}, TokenGrant{}, b.registerErr
	}
	user := UserIdentity{ID: "user-new", Email: reg.Email, Name: reg.Name}
	return user, b.issue(), nil
}

func (b *fakeBackend) Refresh(_ context.Context, _ string) (TokenGrant, error) {
	b.refreshCalls.Add(1)
	b.mu.Lock()
	gate := b.refreshGate
	b.mu.Unlock()
	if gate != nil {
		gate()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refreshErr != nil {
		return TokenGrant{}, b.refreshErr
	}
	return b.issue(), nil
}

func (b *fakeBackend) Logout(_ context.Context, _ string, allDevices bool) error {
	b.logoutCalls.Add(1)
	b.lastAllDevices.Store(allDevices)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logoutErr
}

func (b *fakeBackend) CurrentUser(_ context.Context, _ string) (UserIdentity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentUserErr != nil {
		return UserIdentity{}, b.currentUserErr
	}
	return b.user, nil
}

type fakeAuthenticator struct {
	mu          sync.Mutex
	available   bool
	enrollment  EnrollmentType
	outcome     VerifyOutcome
	availErr    error
	verifyErr   error
	verifyCalls int
}

func newFakeAuthenticator() *fakeAuthenticator {
	return &fakeAuthenticator{
		available:  true,
		enrollment: EnrollmentPrimary,
		outcome:    VerifyGranted,
	}
}

func (a *fakeAuthenticator) setAvailable(available bool) {
	a.mu.Lock()
	a.available = available
	a.mu.Unlock()
}

func (a *fakeAuthenticator) setOutcome(outcome VerifyOutcome) {
	a.mu.Lock()
	a.outcome = outcome
	a.mu.Unlock()
}

func (a *fakeAuthenticator) Availability(context.Context) (bool, EnrollmentType, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.availErr != nil {
		return false, EnrollmentNone, a.availErr
	}
	if !a.available {
		return false, EnrollmentNone, nil
	}
	return true, a.enrollment, nil
}

func (a *fakeAuthenticator) Verify(context.Context, string) (VerifyOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verifyCalls++
	if a.verifyErr != nil {
		return VerifyDenied, a.verifyErr
	}
	return a.outcome, nil
}

func newTestController(t *testing.T, backend AuthBackend, auth Authenticator, clk *fakeClock, mutate func(*Config)) (*Controller, *credstore.Memory) {
	t.Helper()

	store := credstore.NewMemory()
	cfg := defaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	builder := New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithBackend(backend).
		WithClock(clk.Now)
	if auth != nil {
		builder.WithAuthenticator(auth)
	}

	controller, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(controller.Close)
	return controller, store
}

func mustSignIn(t *testing.T, c *Controller) UserIdentity {
	t.Helper()
	user, err := c.SignIn(context.Background(), Credentials{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	return user
}
