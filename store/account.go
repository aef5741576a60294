package store

import (
	"time"

	"github.com/MrEthical07/postAuth/internal/lockout"
)

// Role is the privilege level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// PendingOTP is the SMS code issued by a successful password check.
type PendingOTP struct {
	Code     string    `json:"code" bson:"code"`
	IssuedAt time.Time `json:"issuedAt" bson:"issued_at"`
}

// PendingPhone is an unconfirmed phone number change.
type PendingPhone struct {
	Number   string    `json:"number" bson:"number"`
	Code     string    `json:"code" bson:"code"`
	IssuedAt time.Time `json:"issuedAt" bson:"issued_at"`
	Attempts int       `json:"attempts" bson:"attempts"`
}

// Account is the authentication projection of a user.
type Account struct {
	ID           string `json:"id" bson:"_id"`
	Username     string `json:"username" bson:"username"`
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"passwordHash" bson:"password_hash"`
	PhoneNumber  string `json:"phoneNumber" bson:"phone_number"`
	Role         Role   `json:"role" bson:"role"`

	PendingOTP *PendingOTP `json:"pendingOtp,omitempty" bson:"pending_otp,omitempty"`
	// RecoveryCodes holds hashes of the unused recovery codes, in issue order.
	RecoveryCodes []string `json:"recoveryCodes" bson:"recovery_codes"`
	TOTPSecret    string   `json:"totpSecret,omitempty" bson:"totp_secret,omitempty"`

	lockout.State `bson:",inline"`

	PendingPhone *PendingPhone `json:"pendingPhone,omitempty" bson:"pending_phone,omitempty"`

	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.PendingOTP != nil {
		p := *a.PendingOTP
		out.PendingOTP = &p
	}
	if a.PendingPhone != nil {
		p := *a.PendingPhone
		out.PendingPhone = &p
	}
	if a.RecoveryCodes != nil {
		out.RecoveryCodes = append([]string(nil), a.RecoveryCodes...)
	}
	return &out
}
