package postAuth

import (
	"errors"
	"strings"
	"time"
)

// Config holds every engine setting. Obtain one from DefaultConfig, set the
// secrets, and pass it to Builder.WithConfig.
type Config struct {
	Session  SessionConfig
	Password PasswordConfig
	OTP      OTPConfig
	Lockout  LockoutConfig
	Recovery RecoveryConfig
	TOTP     TOTPConfig
	SMS      SMSConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Throttle ThrottleConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the signed session token.
type SessionConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls hashing cost, the pepper, and the strength policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	Pepper      []byte
	MinLength   int
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

// OTPConfig controls the SMS one-time code.
type OTPConfig struct {
	TTL time.Duration
	// MessageTemplate must contain exactly one %s for the code.
	MessageTemplate string
}

// LockoutConfig controls the failure threshold and lock window.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// RecoveryConfig controls recovery code issuance at registration.
type RecoveryConfig struct {
	Count  int
	Length int
}

// TOTPConfig controls admin TOTP enrolment and verification.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period uint
	// Skew is the number of adjacent steps accepted. It must be 0 unless AllowSkew is set.
	Skew      uint
	AllowSkew bool
	QRSize    int
}

// SMSConfig controls the asynchronous delivery queue.
type SMSConfig struct {
	Workers     int
	BufferSize  int
	SendTimeout time.Duration
}

// ThrottleConfig controls the per-client-IP failure budget on login and
// verify. It requires a Redis client; see Builder.WithThrottleClient.
type ThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	KeyPrefix   string
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls Prometheus counters.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// DefaultConfig returns production defaults. Session.PrivateKey and
// Password.Pepper are left empty and must be set.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:           time.Hour,
			SigningMethod: "hs256",
			Issuer:        "postauth",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   12,
		},
		OTP: OTPConfig{
			TTL:             5 * time.Minute,
			MessageTemplate: "Your sms token is: %s.",
		},
		Lockout: LockoutConfig{
			Threshold: 3,
			Duration:  5 * time.Minute,
		},
		Recovery: RecoveryConfig{
			Count:  10,
			Length: 12,
		},
		TOTP: TOTPConfig{
			Issuer: "postAuth",
			Digits: 6,
			Period: 30,
			Skew:   0,
			QRSize: 256,
		},
		SMS: SMSConfig{
			Workers:     2,
			BufferSize:  256,
			SendTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "postauth",
		},
		Throttle: ThrottleConfig{
			MaxAttempts: 20,
			Window:      15 * time.Minute,
			KeyPrefix:   "postauth",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.PrivateKey = cloneBytes(cfg.Session.PrivateKey)
	out.Session.PublicKey = cloneBytes(cfg.Session.PublicKey)
	out.Password.Pepper = cloneBytes(cfg.Password.Pepper)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	switch c.Session.SigningMethod {
	case "hs256":
		if len(c.Session.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Session.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
		if len(c.Session.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return errors.New("unsupported session signing method")
	}

	// Password
	if len(c.Password.Pepper) < 16 {
		return errors.New("Password Pepper must be >= 16 bytes")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// OTP
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if strings.Count(c.OTP.MessageTemplate, "%s") != 1 {
		return errors.New("OTP MessageTemplate must contain exactly one %s")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Recovery
	if c.Recovery.Count < 1 {
		return errors.New("Recovery Count must be >= 1")
	}
	if c.Recovery.Length < 8 {
		return errors.New("Recovery Length must be >= 8")
	}

	// TOTP
	if c.TOTP.Skew != 0 && !c.TOTP.AllowSkew {
		return errors.New("TOTP Skew must be 0 unless AllowSkew is set")
	}
	if c.TOTP.Period == 0 {
		return errors.New("TOTP Period must be > 0")
	}

	// SMS
	if c.SMS.Workers < 1 {
		return errors.New("SMS Workers must be >= 1")
	}
	if c.SMS.BufferSize < 1 {
		return errors.New("SMS BufferSize must be >= 1")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts < 1 {
			return errors.New("Throttle MaxAttempts must be >= 1")
		}
		if c.Throttle.Window <= 0 {
			return errors.New("Throttle Window must be > 0")
		}
	}
	return nil
}
