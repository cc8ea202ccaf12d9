package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/credential"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/password"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine]. It is configured once during startup and
// can build a single engine.
type Builder struct {
	config Config
	store  credential.Store
	mailer mail.Sender
	clock  Clock
	logger *zerolog.Logger

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the user record store. Required.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithMailSender sets the outbound mail collaborator used for email OTP,
// verification and reset messages. Without one those operations return
// ErrEngineNotReady.
func (b *Builder) WithMailSender(sender mail.Sender) *Builder {
	b.mailer = sender
	return b
}

// WithClock overrides the time source for tokens, TOTP and code expiry.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithAuditSink sets the audit destination and enables the dispatcher.
// When auditing is enabled without a sink, events go to the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the engine.
func (b *Builder) Build() (*Engine, error) {
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

	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	tokens, err := NewTokenManager(cfg.Token, clock.Now)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	// Compared against on logins for unknown accounts.
	dummyHash, err := hasher.Hash("authcore-unknown-account")
	if err != nil {
		return nil, err
	}

	var dispatcher *internalaudit.Dispatcher
	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NewZerologSink(logger)
		}
		dispatcher = internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink)
	}

	engine := &Engine{
		config:       cfg,
		store:        b.store,
		mailer:       b.mailer,
		tokens:       tokens,
		passwordHash: hasher,
		dummyHash:    dummyHash,
		policy: password.Policy{
			MinLength:  cfg.Password.MinLength,
			MaxLength:  cfg.Password.MaxLength,
			MinClasses: cfg.Password.MinClasses,
		},
		renderer: mail.NewRenderer(mail.RenderConfig{
			Product:    cfg.Mail.Product,
			BaseURL:    cfg.Mail.BaseURL,
			OTPSubject: cfg.EmailOTP.Subject,
		}),
		totp:    newTOTPManager(cfg.TOTP),
		audit:   dispatcher,
		metrics: NewMetrics(cfg.Metrics),
		clock:   clock,
		logger:  logger.With().Str("component", "authcore").Logger(),
	}

	b.built = true
	return engine, nil
}

// NewTokenManager builds the token signer/verifier an engine would use for
// cfg. Tooling that only handles tokens can use it without a credential store.
func NewTokenManager(cfg TokenConfig, now func() time.Time) (*jwt.Manager, error) {
	if now == nil {
		now = time.Now
	}
	return jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.SigningMethod)),
		PrivateKey:    cfg.PrivateKey,
		PublicKey:     cfg.PublicKey,
		KeyID:         cfg.KeyID,
		VerifyKeys:    cfg.VerifyKeys,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        cfg.Leeway,
		Now:           now,
	})
}
