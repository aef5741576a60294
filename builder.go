package postAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/postAuth/internal/audit"
	"github.com/MrEthical07/postAuth/internal/codes"
	"github.com/MrEthical07/postAuth/internal/lockout"
	"github.com/MrEthical07/postAuth/internal/rate"
	"github.com/MrEthical07/postAuth/jwt"
	"github.com/MrEthical07/postAuth/password"
	"github.com/MrEthical07/postAuth/sms"
	"github.com/MrEthical07/postAuth/store"
	"github.com/MrEthical07/postAuth/totp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config    Config
	store     store.Store
	gateway   sms.Gateway
	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time
	random    codes.RandomIndex
	throttle  redis.UniversalClient

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithSMSGateway sets the SMS delivery collaborator. Required.
func (b *Builder) WithSMSGateway(g sms.Gateway) *Builder {
	b.gateway = g
	return b
}

// WithLogger sets the structured logger. Defaults to zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit consumer. Defaults to NoOpSink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the wall clock used for code expiry, lockout, session
// and TOTP time steps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithRandomSource overrides the code generator's randomness.
func (b *Builder) WithRandomSource(random codes.RandomIndex) *Builder {
	b.random = random
	return b
}

// WithThrottleClient sets the Redis client holding per-IP throttle counters.
// Required when Config.Throttle.Enabled is set.
func (b *Builder) WithThrottleClient(client redis.UniversalClient) *Builder {
	b.throttle = client
	return b
}

// Build validates the configuration and constructs the Engine. It performs
// no I/O; run store.Migrate before serving traffic.
//
// Build may be called once per Builder.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrEngineNotReady)
	}
	if b.gateway == nil {
		return nil, fmt.Errorf("%w: sms gateway is required", ErrEngineNotReady)
	}
	if b.config.Throttle.Enabled && b.throttle == nil {
		return nil, fmt.Errorf("%w: throttle requires a redis client", ErrEngineNotReady)
	}

	cfg := b.config
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	}, cfg.Password.Pepper)
	if err != nil {
		return nil, err
	}

	sessions, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.TTL,
		SigningMethod: jwt.SigningMethod(cfg.Session.SigningMethod),
		PrivateKey:    cfg.Session.PrivateKey,
		PublicKey:     cfg.Session.PublicKey,
		Issuer:        cfg.Session.Issuer,
		Audience:      cfg.Session.Audience,
		Leeway:        cfg.Session.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	totpAdapter, err := totp.New(totp.Config{
		Issuer:     cfg.TOTP.Issuer,
		Digits:     cfg.TOTP.Digits,
		Period:     cfg.TOTP.Period,
		Skew:       cfg.TOTP.Skew,
		SecretSize: 20,
		QRSize:     cfg.TOTP.QRSize,
	}, now)
	if err != nil {
		return nil, err
	}

	policy, err := lockout.New(lockout.Config{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	})
	if err != nil {
		return nil, err
	}

	m := newMetrics(cfg.Metrics)

	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}

	e := &Engine{
		config:   cfg,
		store:    b.store,
		hasher:   hasher,
		sessions: sessions,
		totp:     totpAdapter,
		lockout:  policy,
		codes:    codes.NewGenerator(b.random),
		validate: newValidator(cfg.Password.MinLength),
		metrics:  m,
		logger:   logger,
		now:      now,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
	}
	m.countAuditDrops(e.audit.Dropped)
	if cfg.Throttle.Enabled {
		e.throttle = rate.New(b.throttle, rate.Config{
			MaxAttempts: cfg.Throttle.MaxAttempts,
			Window:      cfg.Throttle.Window,
			Prefix:      cfg.Throttle.KeyPrefix,
		})
	}
	e.sms = sms.NewDispatcher(sms.Config{
		Workers:     cfg.SMS.Workers,
		BufferSize:  cfg.SMS.BufferSize,
		SendTimeout: cfg.SMS.SendTimeout,
	}, b.gateway, logger.Named("sms"), m.smsResult)

	b.built = true
	return e, nil
}
