package lockout

import (
	"errors"
	"time"
)

// State is the lockout-relevant slice of an account record.
type State struct {
	FailedAttempts int       `json:"failedAttempts" bson:"failed_attempts"`
	LockedUntil    time.Time `json:"lockedUntil,omitzero" bson:"locked_until,omitempty"`
}

// Config holds the threshold and lock window.
type Config struct {
	Threshold int
	Duration  time.Duration
}

// DefaultConfig locks on the third consecutive failure for five minutes.
func DefaultConfig() Config {
	return Config{Threshold: 3, Duration: 5 * time.Minute}
}

// Outcome reports what RecordFailure did.
type Outcome struct {
	// Locked is true when this failure moved the account to Locked.
	Locked      bool
	Attempts    int
	LockedUntil time.Time
}

// Policy evaluates and transitions lockout state.
type Policy struct {
	config Config
}

// New validates cfg.
func New(cfg Config) (*Policy, error) {
	if cfg.Threshold < 1 {
		return nil, errors.New("lockout threshold must be >= 1")
	}
	if cfg.Duration <= 0 {
		return nil, errors.New("lockout duration must be > 0")
	}
	return &Policy{config: cfg}, nil
}

// IsLocked reports whether s is Locked at now. Expiry is evaluated lazily:
// once now reaches LockedUntil the account is Open again, with no write.
func (p *Policy) IsLocked(s State, now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// RecordFailure counts one failed credential check. Reaching the threshold
// sets LockedUntil to now plus the lock window and resets the counter to 0.
// Failures against an already Locked account are not counted.
func (p *Policy) RecordFailure(s *State, now time.Time) Outcome {
	if p.IsLocked(*s, now) {
		return Outcome{Attempts: s.FailedAttempts, LockedUntil: s.LockedUntil}
	}
	if !s.LockedUntil.IsZero() {
		s.LockedUntil = time.Time{}
	}

	s.FailedAttempts++
	if s.FailedAttempts >= p.config.Threshold {
		s.FailedAttempts = 0
		s.LockedUntil = now.Add(p.config.Duration)
		return Outcome{Locked: true, LockedUntil: s.LockedUntil}
	}
	return Outcome{Attempts: s.FailedAttempts}
}

// Reset forces Open with a zero counter.
func (p *Policy) Reset(s *State) {
	s.FailedAttempts = 0
	s.LockedUntil = time.Time{}
}
