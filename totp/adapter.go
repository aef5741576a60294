package totp

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Config controls secret generation and verification.
type Config struct {
	Issuer     string
	Digits     int
	Period     uint
	Skew       uint
	SecretSize uint
	QRSize     int
}

// DefaultConfig returns six-digit SHA1 codes over thirty-second steps with
// zero drift tolerance.
func DefaultConfig() Config {
	return Config{
		Issuer:     "postAuth",
		Digits:     6,
		Period:     30,
		Skew:       0,
		SecretSize: 20,
		QRSize:     256,
	}
}

// Enrollment is an unpersisted candidate secret with its provisioning payloads.
type Enrollment struct {
	Secret string
	// URL is the otpauth:// provisioning URI.
	URL string
	// QRPayload is the URI rendered as a PNG data URL.
	QRPayload string
}

// Adapter generates and verifies TOTP secrets.
type Adapter struct {
	config Config
	now    func() time.Time
}

// New returns an Adapter. now may be nil.
func New(cfg Config, now func() time.Time) (*Adapter, error) {
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, errors.New("totp digits must be 6 or 8")
	}
	if cfg.Period == 0 {
		return nil, errors.New("totp period must be > 0")
	}
	if cfg.SecretSize < 16 {
		return nil, errors.New("totp secret size must be >= 16 bytes")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("totp issuer is required")
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = 256
	}
	if now == nil {
		now = time.Now
	}
	return &Adapter{config: cfg, now: now}, nil
}

// Enroll generates a new secret for accountName. Nothing is persisted.
func (a *Adapter) Enroll(accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      a.config.Issuer,
		AccountName: accountName,
		Period:      a.config.Period,
		SecretSize:  a.config.SecretSize,
		Digits:      otp.Digits(a.config.Digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	payload, err := a.qrDataURL(key.URL())
	if err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret:    key.Secret(),
		URL:       key.URL(),
		QRPayload: payload,
	}, nil
}

// VerifyEnrollment checks token against a candidate secret the client was
// handed by Enroll.
func (a *Adapter) VerifyEnrollment(candidateSecret, token string) bool {
	return a.verify(candidateSecret, token)
}

// VerifyToken checks token against an enrolled secret.
func (a *Adapter) VerifyToken(storedSecret, token string) bool {
	return a.verify(storedSecret, token)
}

func (a *Adapter) verify(secret, token string) bool {
	secret = strings.TrimSpace(secret)
	token = strings.TrimSpace(token)
	if secret == "" || len(token) != a.config.Digits {
		return false
	}
	ok, err := totp.ValidateCustom(token, secret, a.now().UTC(), a.opts())
	return err == nil && ok
}

// CodeAt returns the token valid at t for secret.
func (a *Adapter) CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), a.opts())
}

func (a *Adapter) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    a.config.Period,
		Skew:      a.config.Skew,
		Digits:    otp.Digits(a.config.Digits),
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (a *Adapter) qrDataURL(uri string) (string, error) {
	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}
	code, err = barcode.Scale(code, a.config.QRSize, a.config.QRSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
