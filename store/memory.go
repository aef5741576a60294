package store

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	mu      sync.Mutex
	account *Account
}

// MemoryStore keeps accounts in process memory. Updates to one account are
// serialised by that account's mutex; different accounts proceed in parallel.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memoryRecord
	emails   map[string]string
	roles    map[Role]struct{}
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*memoryRecord),
		emails:   make(map[string]string),
		now:      time.Now,
	}
}

func (s *MemoryStore) Migrate(_ context.Context, schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = schema.roleSet()
	return nil
}

func (s *MemoryStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateForCreate(account, s.roles); err != nil {
		return err
	}

	_, usernameTaken := s.accounts[account.Username]
	_, emailTaken := s.emails[account.Email]
	if usernameTaken || emailTaken {
		return &ConflictError{UsernameTaken: usernameTaken, EmailTaken: emailTaken}
	}

	stored := account.Clone()
	now := s.now().UTC()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.accounts[stored.Username] = &memoryRecord{account: stored}
	s.emails[stored.Email] = stored.Username
	return nil
}

func (s *MemoryStore) Get(_ context.Context, username string) (*Account, error) {
	rec := s.record(username)
	if rec == nil {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.account.Clone(), nil
}

func (s *MemoryStore) Exists(_ context.Context, username, email string) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, usernameTaken := s.accounts[username]
	_, emailTaken := s.emails[email]
	return usernameTaken, emailTaken, nil
}

func (s *MemoryStore) Update(_ context.Context, username string, fn UpdateFunc) (*Account, error) {
	rec := s.record(username)
	if rec == nil {
		return nil, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	working := rec.account.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	// Identity fields are immutable.
	working.ID = rec.account.ID
	working.Username = rec.account.Username
	working.Email = rec.account.Email
	working.CreatedAt = rec.account.CreatedAt
	working.Version = rec.account.Version + 1
	working.UpdatedAt = s.now().UTC()

	rec.account = working
	return working.Clone(), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }

func (s *MemoryStore) record(username string) *memoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[username]
}
