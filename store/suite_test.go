package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testAccount(username, email string) *Account {
	return &Account{
		ID:            "id-" + username,
		Username:      username,
		Email:         email,
		PasswordHash:  "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		PhoneNumber:   "+41791234567",
		Role:          RoleUser,
		RecoveryCodes: []string{"h1", "h2"},
	}
}

func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Create(ctx, testAccount("alice", "alice@example.com")); err != nil {
			t.Fatalf("Create error: %v", err)
		}
		got, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if got.Email != "alice@example.com" || got.Role != RoleUser || len(got.RecoveryCodes) != 2 {
			t.Fatalf("unexpected account: %+v", got)
		}
		if got.Version != 1 || got.CreatedAt.IsZero() {
			t.Fatalf("expected version 1 and creation time, got %+v", got)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.Update(context.Background(), "nobody", func(*Account) error { return nil }); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound from Update, got %v", err)
		}
	})

	t.Run("CreateConflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Create(ctx, testAccount("alice", "alice@example.com")); err != nil {
			t.Fatalf("Create error: %v", err)
		}

		err := s.Create(ctx, testAccount("alice", "alice@example.com"))
		var ce *ConflictError
		if !errors.As(err, &ce) || !ce.UsernameTaken || !ce.EmailTaken {
			t.Fatalf("expected both fields taken, got %v", err)
		}
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		other := testAccount("alice2", "alice@example.com")
		other.ID = "id-other"
		err = s.Create(ctx, other)
		if !errors.As(err, &ce) || ce.UsernameTaken || !ce.EmailTaken {
			t.Fatalf("expected only email taken, got %v", err)
		}

		u, e, err := s.Exists(ctx, "alice", "nobody@example.com")
		if err != nil || !u || e {
			t.Fatalf("unexpected Exists result u=%v e=%v err=%v", u, e, err)
		}
	})

	t.Run("CreateRejectsUnknownRole", func(t *testing.T) {
		s := newStore(t)
		a := testAccount("mallory", "m@example.com")
		a.Role = "superuser"
		if err := s.Create(context.Background(), a); !errors.Is(err, ErrUnknownRole) {
			t.Fatalf("expected ErrUnknownRole, got %v", err)
		}
	})

	t.Run("UpdateAppliesAndAborts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Create(ctx, testAccount("alice", "alice@example.com")); err != nil {
			t.Fatalf("Create error: %v", err)
		}

		issued := time.Unix(1_700_000_000, 0).UTC()
		updated, err := s.Update(ctx, "alice", func(a *Account) error {
			a.PendingOTP = &PendingOTP{Code: "123456", IssuedAt: issued}
			a.Username = "renamed"
			return nil
		})
		if err != nil {
			t.Fatalf("Update error: %v", err)
		}
		if updated.Username != "alice" || updated.Version != 2 {
			t.Fatalf("expected immutable username and version 2, got %+v", updated)
		}

		sentinel := errors.New("abort")
		if _, err := s.Update(ctx, "alice", func(a *Account) error {
			a.PendingOTP = nil
			return sentinel
		}); err != sentinel {
			t.Fatalf("expected abort error, got %v", err)
		}

		got, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if got.PendingOTP == nil || got.PendingOTP.Code != "123456" || !got.PendingOTP.IssuedAt.Equal(issued) {
			t.Fatalf("expected pending OTP to survive aborted update, got %+v", got.PendingOTP)
		}
	})

	t.Run("GetReturnsSnapshot", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Create(ctx, testAccount("alice", "alice@example.com")); err != nil {
			t.Fatalf("Create error: %v", err)
		}
		snap, _ := s.Get(ctx, "alice")
		snap.RecoveryCodes[0] = "tampered"
		again, _ := s.Get(ctx, "alice")
		if again.RecoveryCodes[0] != "h1" {
			t.Fatal("expected Get to return an independent copy")
		}
	})

	t.Run("ConcurrentUpdatesSerialise", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Create(ctx, testAccount("alice", "alice@example.com")); err != nil {
			t.Fatalf("Create error: %v", err)
		}

		const workers = 6
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Update(ctx, "alice", func(a *Account) error {
					a.FailedAttempts++
					return nil
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("Update error: %v", err)
			}
		}

		got, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if got.FailedAttempts != workers {
			t.Fatalf("expected %d increments, got %d", workers, got.FailedAttempts)
		}
	})
}
