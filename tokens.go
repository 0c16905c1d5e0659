package sessionkit

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vital-labs/sessionkit/credstore"
	internalmetrics "github.com/vital-labs/sessionkit/internal/metrics"
)

// tokenLifecycle owns the in-memory token pair and its persistence. Memory is
// a cache valid for the process lifetime; the credential store is the durable
// source of truth. All token mutation in the package routes through here.
type tokenLifecycle struct {
	store   credstore.Store
	backend AuthBackend
	keys    KeyConfig
	margin  time.Duration
	clock   func() time.Time
	log     zerolog.Logger
	metrics *internalmetrics.Metrics

	group singleflight.Group

	mu     sync.Mutex
	pair   *TokenPair
	loaded bool
	// epoch advances on every clear. A refresh that started under an older
	// epoch must not apply its result: the session it belonged to is gone.
	epoch uint64
}

func newTokenLifecycle(store credstore.Store, backend AuthBackend, cfg Config, clock func() time.Time, log zerolog.Logger, metrics *internalmetrics.Metrics) *tokenLifecycle {
	return &tokenLifecycle{
		store:   store,
		backend: backend,
		keys:    cfg.Keys,
		margin:  cfg.Token.RefreshSafetyMargin,
		clock:   clock,
		log:     log,
		metrics: metrics,
	}
}

// hasStoredSession reports whether a refresh token is persisted. Pure read:
// the refresh token is the durable credential, so a missing access token
// never demotes a stored session to "signed out".
func (t *tokenLifecycle) hasStoredSession(ctx context.Context) bool {
	v, ok, err := t.store.Load(ctx, t.keys.RefreshToken)
	return err == nil && ok && v != ""
}

// ensureLoaded hydrates the cache from the store once per process. The
// persisted access token's expiry is recovered from its JWT exp claim; an
// unparsable token gets a zero expiry and is treated as needing refresh.
func (t *tokenLifecycle) ensureLoaded(ctx context.Context) {
	t.mu.Lock()
	if t.loaded {
		t.mu.Unlock()
		return
	}
	t.loaded = true
	t.mu.Unlock()

	refresh, ok, err := t.store.Load(ctx, t.keys.RefreshToken)
	if err != nil || !ok || refresh == "" {
		return
	}
	access, _, _ := t.store.Load(ctx, t.keys.AccessToken)
	pair := TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresAt:    accessTokenExpiry(access),
	}
	t.mu.Lock()
	if t.pair == nil {
		t.pair = &pair
	}
	t.mu.Unlock()
}

func (t *tokenLifecycle) current(ctx context.Context) (TokenPair, bool) {
	t.ensureLoaded(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pair == nil {
		return TokenPair{}, false
	}
	return *t.pair, true
}

func (t *tokenLifecycle) currentEpoch() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch
}

func (t *tokenLifecycle) isFresh(p TokenPair) bool {
	return p.AccessToken != "" && p.ExpiresAt.After(t.clock().Add(t.margin))
}

// refreshIfNeeded returns the cached pair while it is comfortably inside the
// safety margin; otherwise it performs exactly one network refresh no matter
// how many callers arrive concurrently. All coalesced callers receive the
// same result; a caller arriving after completion triggers a new attempt only
// if the pair is stale again.
func (t *tokenLifecycle) refreshIfNeeded(ctx context.Context) (TokenPair, error) {
	if pair, ok := t.current(ctx); ok && t.isFresh(pair) {
		t.metrics.Inc(MetricRefreshSkippedFresh)
		return pair, nil
	}

	v, err, shared := t.group.Do("refresh", func() (any, error) {
		return t.doRefresh(ctx)
	})
	if shared {
		t.metrics.Inc(MetricRefreshCoalesced)
	}
	if err != nil {
		return TokenPair{}, err
	}
	return v.(TokenPair), nil
}

func (t *tokenLifecycle) doRefresh(ctx context.Context) (TokenPair, error) {
	t.mu.Lock()
	if t.pair != nil && t.isFresh(*t.pair) {
		pair := *t.pair
		t.mu.Unlock()
		return pair, nil
	}
	startEpoch := t.epoch
	var refresh string
	if t.pair != nil {
		refresh = t.pair.RefreshToken
	}
	t.mu.Unlock()

	if refresh == "" {
		stored, ok, err := t.store.Load(ctx, t.keys.RefreshToken)
		if err != nil {
			t.metrics.Inc(MetricRefreshFailure)
			return TokenPair{}, err
		}
		if !ok || stored == "" {
			t.metrics.Inc(MetricRefreshFailure)
			return TokenPair{}, ErrNoStoredSession
		}
		refresh = stored
	}

	started := t.clock()
	grant, err := t.backend.Refresh(ctx, refresh)
	t.metrics.Observe(MetricRefreshLatency, t.clock().Sub(started))
	if err == nil {
		var pair TokenPair
		pair, err = t.pairFromGrant(grant)
		if err == nil {
			return t.applyRefreshed(ctx, pair, startEpoch)
		}
	}

	t.metrics.Inc(MetricRefreshFailure)
	if Classify(err).ClearsTokens() {
		if clearErr := t.clear(ctx); clearErr != nil {
			t.log.Warn().Err(clearErr).Msg("sessionkit: clearing rejected credentials failed")
		}
	}
	return TokenPair{}, err
}

// applyRefreshed persists and caches a freshly issued pair, unless a
// sign-out superseded the session while the network call was in flight.
func (t *tokenLifecycle) applyRefreshed(ctx context.Context, pair TokenPair, startEpoch uint64) (TokenPair, error) {
	t.mu.Lock()
	superseded := t.epoch != startEpoch
	t.mu.Unlock()
	if superseded {
		return TokenPair{}, ErrSessionSuperseded
	}

	if err := t.persistPair(ctx, pair); err != nil {
		t.metrics.Inc(MetricRefreshFailure)
		return TokenPair{}, err
	}

	t.mu.Lock()
	if t.epoch != startEpoch {
		t.mu.Unlock()
		// Sign-out raced the persist; remove what was just written.
		_ = t.deleteStoredTokens(ctx)
		return TokenPair{}, ErrSessionSuperseded
	}
	t.pair = &pair
	t.loaded = true
	t.mu.Unlock()

	t.metrics.Inc(MetricRefreshSuccess)
	return pair, nil
}

// storePair records a pair issued by login or registration. Persistence
// failure does not fail the sign-in: the session is valid in memory and the
// next refresh retries the write.
func (t *tokenLifecycle) storePair(ctx context.Context, grant TokenGrant) (TokenPair, error) {
	pair, err := t.pairFromGrant(grant)
	if err != nil {
		return TokenPair{}, err
	}
	if err := t.persistPair(ctx, pair); err != nil {
		t.log.Warn().Err(err).Msg("sessionkit: persisting token pair failed")
	}
	t.mu.Lock()
	t.pair = &pair
	t.loaded = true
	t.mu.Unlock()
	return pair, nil
}

func (t *tokenLifecycle) persistPair(ctx context.Context, pair TokenPair) error {
	// Refresh token first. hasStoredSession keys on it, so a crash between
	// the two writes still leaves a resumable session; the missing access
	// token just means "needs refresh".
	if err := t.store.Save(ctx, t.keys.RefreshToken, pair.RefreshToken); err != nil {
		return err
	}
	return t.store.Save(ctx, t.keys.AccessToken, pair.AccessToken)
}

// clear empties the cache and deletes both token keys. Safe when already
// empty. Advances the epoch so in-flight refreshes discard their results.
func (t *tokenLifecycle) clear(ctx context.Context) error {
	t.mu.Lock()
	t.pair = nil
	t.loaded = true
	t.epoch++
	t.mu.Unlock()

	err := t.deleteStoredTokens(ctx)
	t.metrics.Inc(MetricTokensCleared)
	return err
}

func (t *tokenLifecycle) deleteStoredTokens(ctx context.Context) error {
	if err := t.store.Delete(ctx, t.keys.AccessToken); err != nil {
		return err
	}
	return t.store.Delete(ctx, t.keys.RefreshToken)
}

func (t *tokenLifecycle) pairFromGrant(grant TokenGrant) (TokenPair, error) {
	if grant.AccessToken == "" || grant.RefreshToken == "" {
		return TokenPair{}, ErrMalformedTokenResponse
	}
	tokenType := grant.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	var expiresAt time.Time
	if grant.ExpiresIn > 0 {
		expiresAt = t.clock().Add(grant.ExpiresIn)
	} else {
		expiresAt = accessTokenExpiry(grant.AccessToken)
	}
	return TokenPair{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
	}, nil
}

// accessTokenExpiry extracts the exp claim from a JWT access token without
// verifying the signature; verification is the backend's job. Returns the
// zero time when the token is not a JWT or carries no exp, which downstream
// means "assume stale".
func accessTokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
