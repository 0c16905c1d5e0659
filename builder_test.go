package sessionkit

import (
	"testing"

	"github.com/vital-labs/sessionkit/credstore"
)

func TestBuildRequiresStoreAndBackend(t *testing.T) {
	if _, err := New().WithBackend(newFakeBackend()).Build(); err == nil {
		t.Fatal("expected an error without a credential store")
	}
	if _, err := New().WithCredentialStore(credstore.NewMemory()).Build(); err == nil {
		t.Fatal("expected an error without a backend")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Reauth.MaxAttempts = 0

	_, err := New().
		WithConfig(cfg).
		WithCredentialStore(credstore.NewMemory()).
		WithBackend(newFakeBackend()).
		Build()
	if err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestBuilderBuildsOnce(t *testing.T) {
	builder := New().
		WithCredentialStore(credstore.NewMemory()).
		WithBackend(newFakeBackend())

	controller, err := builder.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer controller.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestWithAuditSinkEnablesDispatch(t *testing.T) {
	builder := New().
		WithCredentialStore(credstore.NewMemory()).
		WithBackend(newFakeBackend()).
		WithAuditSink(NewChannelSink(4))

	controller, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer controller.Close()

	if controller.audit == nil {
		t.Fatal("expected an audit dispatcher with a sink configured")
	}
}
