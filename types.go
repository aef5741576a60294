package postAuth

import (
	"time"

	"github.com/MrEthical07/postAuth/store"
)

// Role is the privilege level stored on an account.
type Role = store.Role

const (
	RoleUser  = store.RoleUser
	RoleAdmin = store.RoleAdmin
)

// RegisterInput is the registration request.
type RegisterInput struct {
	Username    string `json:"username" validate:"required,username"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,strongpassword"`
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
}

// RegisterResult carries the plaintext recovery codes. They are returned
// exactly once and only their hashes are stored.
type RegisterResult struct {
	Username      string
	RecoveryCodes []string
}

// VerifyResult is the outcome of a completed second factor.
type VerifyResult struct {
	SessionToken string
	ExpiresAt    time.Time
	Role         Role
	// TOTPSecret is empty unless the account has enrolled TOTP.
	TOTPSecret             string
	UsedRecoveryCode       bool
	RecoveryCodesRemaining int
}

// Identity is the account named by a valid session token.
type Identity struct {
	Username  string
	ExpiresAt time.Time
}

// Profile is the public view of an account.
type Profile struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// TOTPSetup is a candidate TOTP secret awaiting verification.
type TOTPSetup struct {
	Secret     string `json:"secret"`
	QRPayload  string `json:"qrPayload"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// TOTPVerifyResult reports a TOTP check. Enrolled is true when the call
// persisted the candidate secret.
type TOTPVerifyResult struct {
	Verified bool `json:"verified"`
	Enrolled bool `json:"enrolled"`
}
