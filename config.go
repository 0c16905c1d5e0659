package sessionkit

import (
	"errors"
	"time"
)

// Config collects all tunables for a [Controller].
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Token   TokenConfig
	Reauth  ReauthConfig
	Keys    KeyConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls refresh timing and remote sign-out behavior.
type TokenConfig struct {
	// RefreshSafetyMargin is how far before expiry an access token is already
	// treated as stale. A token expiring inside the margin triggers a refresh.
	RefreshSafetyMargin time.Duration
	// RemoteSignOutTimeout bounds the best-effort remote invalidation call
	// during sign-out. Local cleanup never waits longer than this.
	RemoteSignOutTimeout time.Duration
}

/*
====================================
REAUTH CONFIG
====================================
*/

// ReauthConfig controls the foreground re-verification gate.
type ReauthConfig struct {
	// LockThreshold is the minimum backgrounded duration after which
	// foregrounding requires a biometric challenge. Shorter absences unlock
	// without a prompt.
	LockThreshold time.Duration
	// MaxAttempts is the number of denied or cancelled challenges tolerated
	// before the coordinator forces a sign-out.
	MaxAttempts int
}

/*
====================================
KEY CONFIG
====================================
*/

// KeyConfig names the credential-store keys. The defaults match the layout
// consumed by existing installations; override only when sharing a store with
// a different key scheme.
type KeyConfig struct {
	AccessToken          string
	RefreshToken         string
	BiometricEnabled     string
	BiometricFirstSetup  string
	BiometricLastEnabled string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events under backpressure instead of blocking the
	// lifecycle operation that emitted them.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process metrics collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			RefreshSafetyMargin:  5 * time.Minute,
			RemoteSignOutTimeout: 5 * time.Second,
		},
		Reauth: ReauthConfig{
			LockThreshold: 5 * time.Minute,
			MaxAttempts:   3,
		},
		Keys: KeyConfig{
			AccessToken:          "auth_access_token",
			RefreshToken:         "auth_refresh_token",
			BiometricEnabled:     "biometric_auth_enabled",
			BiometricFirstSetup:  "biometric_first_time_setup_completed",
			BiometricLastEnabled: "biometric_last_enabled_date",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}

// Validate rejects configurations that would produce an inert or unsafe
// controller.
func (c *Config) Validate() error {
	if c.Token.RefreshSafetyMargin < 0 {
		return errors.New("Token.RefreshSafetyMargin must not be negative")
	}
	if c.Token.RemoteSignOutTimeout <= 0 {
		return errors.New("Token.RemoteSignOutTimeout must be positive")
	}
	if c.Reauth.LockThreshold < 0 {
		return errors.New("Reauth.LockThreshold must not be negative")
	}
	if c.Reauth.MaxAttempts <= 0 {
		return errors.New("Reauth.MaxAttempts must be positive")
	}
	if c.Keys.AccessToken == "" || c.Keys.RefreshToken == "" {
		return errors.New("Keys.AccessToken and Keys.RefreshToken must be set")
	}
	if c.Keys.BiometricEnabled == "" || c.Keys.BiometricFirstSetup == "" || c.Keys.BiometricLastEnabled == "" {
		return errors.New("biometric key names must be set")
	}
	if c.Keys.AccessToken == c.Keys.RefreshToken {
		return errors.New("access and refresh token keys must differ")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}
	return nil
}
