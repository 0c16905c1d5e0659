package sessionkit

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vital-labs/sessionkit/credstore"
	internalaudit "github.com/vital-labs/sessionkit/internal/audit"
	internalmetrics "github.com/vital-labs/sessionkit/internal/metrics"
)

// Builder assembles a [Controller]. Configure it during initialization and
// call Build exactly once.
type Builder struct {
	config        Config
	store         credstore.Store
	backend       AuthBackend
	authenticator Authenticator
	auditSink     AuditSink
	logger        zerolog.Logger
	clock         func() time.Time

	built bool
}

// New returns a Builder loaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the durable credential store. Required.
func (b *Builder) WithCredentialStore(store credstore.Store) *Builder {
	b.store = store
	return b
}

// WithBackend sets the authentication backend. Required. The authapi package
// provides the reference HTTP implementation.
func (b *Builder) WithBackend(backend AuthBackend) *Builder {
	b.backend = backend
	return b
}

// WithAuthenticator sets the platform biometric challenge. Optional: without
// one the device is treated as having no biometric capability, and the
// reauth gate degrades to pass-through.
func (b *Builder) WithAuthenticator(auth Authenticator) *Builder {
	b.authenticator = auth
	return b
}

// WithAuditSink sets the audit sink and enables audit dispatch.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithLogger sets the structured logger. Defaults to a disabled logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles in-process metrics collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles refresh latency histogram collection.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the subsystems, and returns the
// controller. A Builder can build only once.
func (b *Builder) Build() (*Controller, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.backend == nil {
		return nil, errors.New("auth backend required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	metrics := internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		EnableLatency: cfg.Metrics.EnableLatencyHistograms,
	})
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	controller := &Controller{
		cfg:     cfg,
		backend: b.backend,
		audit:   dispatcher,
		metrics: metrics,
		log:     b.logger,
		clock:   clock,
		state:   SessionState{Phase: PhaseUnauthenticated},
		subs:    make(map[uint64]chan SessionState),
	}
	controller.tokens = newTokenLifecycle(b.store, b.backend, cfg, clock, b.logger, metrics)
	controller.gate = newBiometricGate(b.authenticator, b.store, cfg, clock, b.logger, metrics)
	controller.gate.emit = func(event string, success bool, err error, meta map[string]string) {
		controller.emitAudit(nil, event, success, "", err, func() map[string]string { return meta })
	}
	controller.reauth = newReauthCoordinator(controller, controller.gate, cfg, clock, b.logger, metrics)

	b.built = true
	return controller, nil
}
