package password

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPepperBytes        = 16
	algorithmID           = "argon2id"
)

// ErrEmptyPassword is returned by Hash for an empty input.
var ErrEmptyPassword = errors.New("password must not be empty")

// Config holds the Argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the parameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes and verifies peppered passwords.
//
// Argon2 is safe for concurrent use.
type Argon2 struct {
	config Config
	pepper []byte
	dummy  string
}

// NewArgon2 validates cfg and pepper and precomputes the dummy hash used
// for unknown accounts.
func NewArgon2(cfg Config, pepper []byte) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if len(pepper) < minPepperBytes {
		return nil, fmt.Errorf("password pepper must be >= %d bytes", minPepperBytes)
	}

	a := &Argon2{
		config: cfg,
		pepper: append([]byte(nil), pepper...),
	}

	var seed [32]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return nil, err
	}
	dummy, err := a.Hash(base64.RawStdEncoding.EncodeToString(seed[:]))
	if err != nil {
		return nil, err
	}
	a.dummy = dummy

	return a, nil
}

// Hash returns the PHC encoding of the peppered password.
func (a *Argon2) Hash(password string) (string, error) {
	// Raw string bytes are used exactly as provided (no Unicode normalization).
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		a.peppered(password),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encodedHash.
// It returns an error only for a malformed encoding.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		a.peppered(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// Check is the lookup-agnostic form of Verify. An empty or malformed
// encodedHash is verified against the dummy hash and always reports false,
// so the cost of a miss matches the cost of a mismatch.
func (a *Argon2) Check(password string, encodedHash string) bool {
	if encodedHash != "" {
		ok, err := a.Verify(password, encodedHash)
		if err == nil {
			return ok
		}
	}
	_, _ = a.Verify(password, a.dummy)
	return false
}

func (a *Argon2) peppered(password string) []byte {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	return nil
}
