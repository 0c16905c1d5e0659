package sessionkit

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
	if cfg.Token.RefreshSafetyMargin != 5*time.Minute {
		t.Fatalf("unexpected default safety margin: %v", cfg.Token.RefreshSafetyMargin)
	}
	if cfg.Reauth.LockThreshold != 5*time.Minute || cfg.Reauth.MaxAttempts != 3 {
		t.Fatalf("unexpected reauth defaults: %+v", cfg.Reauth)
	}
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			name:    "negative safety margin",
			mutate:  func(c *Config) { c.Token.RefreshSafetyMargin = -time.Second },
			message: "RefreshSafetyMargin",
		},
		{
			name:    "zero sign-out timeout",
			mutate:  func(c *Config) { c.Token.RemoteSignOutTimeout = 0 },
			message: "RemoteSignOutTimeout",
		},
		{
			name:    "negative lock threshold",
			mutate:  func(c *Config) { c.Reauth.LockThreshold = -time.Minute },
			message: "LockThreshold",
		},
		{
			name:    "zero reauth attempts",
			mutate:  func(c *Config) { c.Reauth.MaxAttempts = 0 },
			message: "MaxAttempts",
		},
		{
			name:    "missing token key",
			mutate:  func(c *Config) { c.Keys.RefreshToken = "" },
			message: "Keys",
		},
		{
			name:    "colliding token keys",
			mutate:  func(c *Config) { c.Keys.RefreshToken = c.Keys.AccessToken },
			message: "differ",
		},
		{
			name:    "missing biometric key",
			mutate:  func(c *Config) { c.Keys.BiometricLastEnabled = "" },
			message: "biometric",
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			message: "BufferSize",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected error mentioning %q, got %v", tc.message, err)
			}
		})
	}
}

func TestCloneConfigIsIndependent(t *testing.T) {
	original := defaultConfig()
	clone := cloneConfig(original)
	clone.Keys.AccessToken = "other"
	if original.Keys.AccessToken == "other" {
		t.Fatal("clone must not share state with the original")
	}
}
