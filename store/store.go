package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates no account exists for the username.
	ErrNotFound = errors.New("account not found")
	// ErrConflict indicates a unique field collided on Create.
	ErrConflict = errors.New("account already exists")
	// ErrUnavailable indicates the backend failed or contention could not be resolved.
	ErrUnavailable = errors.New("account store unavailable")
	// ErrUnknownRole indicates an account references a role the schema does not declare.
	ErrUnknownRole = errors.New("unknown role")
	// ErrInvalidAccount indicates a record is missing required fields.
	ErrInvalidAccount = errors.New("invalid account record")
)

// ConflictError names which unique fields are already taken.
type ConflictError struct {
	UsernameTaken bool
	EmailTaken    bool
}

func (e *ConflictError) Error() string {
	var fields []string
	if e.UsernameTaken {
		fields = append(fields, "username")
	}
	if e.EmailTaken {
		fields = append(fields, "email")
	}
	return fmt.Sprintf("%s: %s", ErrConflict, strings.Join(fields, ", "))
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// UpdateFunc mutates an account in place. Returning an error aborts the
// update without writing.
type UpdateFunc func(*Account) error

// Store is the credential store.
type Store interface {
	// Migrate registers schema once at startup.
	Migrate(ctx context.Context, schema Schema) error
	// Create inserts a new account. Collisions return a *ConflictError.
	Create(ctx context.Context, account *Account) error
	// Get returns a snapshot of the account or ErrNotFound.
	Get(ctx context.Context, username string) (*Account, error)
	// Exists reports which of username and email are taken.
	Exists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	// Update atomically applies fn to the current record and returns the result.
	Update(ctx context.Context, username string, fn UpdateFunc) (*Account, error)
	// Ping checks backend reachability.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close(ctx context.Context) error
}

func validateForCreate(a *Account, roles map[Role]struct{}) error {
	if a == nil || a.ID == "" || a.Username == "" || a.Email == "" || a.PasswordHash == "" || a.PhoneNumber == "" {
		return ErrInvalidAccount
	}
	if len(roles) > 0 {
		if _, ok := roles[a.Role]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRole, a.Role)
		}
	} else if !a.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, a.Role)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
