package postAuth

import "errors"

// ErrorKind classifies engine errors. Each kind maps to one HTTP status.
type ErrorKind uint8

const (
	// KindUnknown is returned by KindOf for errors the engine does not own.
	KindUnknown ErrorKind = iota
	// KindValidation marks malformed or missing input.
	KindValidation
	// KindConflict marks a duplicate username or email.
	KindConflict
	// KindAuthentication marks a bad credential or code, a locked account,
	// or a missing or stale session.
	KindAuthentication
	// KindAuthorization marks a non-admin touching admin-only operations.
	KindAuthorization
	// KindState marks a call out of protocol order.
	KindState
	// KindNotFound marks a request target outside the auth surface.
	KindNotFound
	// KindInternal marks a storage or gateway failure.
	KindInternal
	// KindRateLimited marks a client that exhausted its failure budget.
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

var (
	// ErrMissingParameters is returned when a required field is empty.
	ErrMissingParameters = errors.New("missing parameters")
	// ErrInvalidUsername is returned for usernames outside [A-Za-z0-9_.-]{3,64}.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidEmail is returned for a malformed email address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrWeakPassword is returned when a password fails the strength policy.
	ErrWeakPassword = errors.New("password not strong enough")
	// ErrInvalidPhoneNumber is returned for a phone number not in E.164 form.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	// ErrTOTPSecretRequired is returned when enrolment verification has no candidate secret.
	ErrTOTPSecretRequired = errors.New("totp secret required")

	// ErrEmailAndUsernameTaken is returned when both unique fields collide.
	ErrEmailAndUsernameTaken = errors.New("email and username already used")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already used")
	// ErrUsernameTaken is returned when the username is already registered.
	ErrUsernameTaken = errors.New("username already used")

	// ErrInvalidCredentials is the single phase-one failure. Unknown user,
	// wrong password, and locked account are indistinguishable.
	ErrInvalidCredentials = errors.New("username or password incorrect")
	// ErrInvalidSecondFactor is the single phase-two failure. Wrong code,
	// expired code, wrong recovery code, and locked account are indistinguishable.
	ErrInvalidSecondFactor = errors.New("sms token or recovery code incorrect")
	// ErrAccountLocked is recorded in audit and metrics only. Callers see the
	// phase's uniform error instead.
	ErrAccountLocked = errors.New("account locked")
	// ErrUnauthenticated is returned for a missing, invalid, or expired session.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrInvalidTOTP is returned when a TOTP token does not verify.
	ErrInvalidTOTP = errors.New("totp token incorrect")
	// ErrInvalidPhoneCode is returned when a phone change confirmation code does not verify.
	ErrInvalidPhoneCode = errors.New("sms code does not match pending phone number")

	// ErrAdminRequired is returned when a non-admin calls an admin-only operation.
	ErrAdminRequired = errors.New("admin role required")

	// ErrAlreadyAuthenticated is returned by register, login, and verify for
	// callers holding a valid session.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrNoPendingCode is returned by verify when login was not called first.
	ErrNoPendingCode = errors.New("no pending sms code")
	// ErrTOTPAlreadyEnrolled is returned when enrolment is attempted with a secret already set.
	ErrTOTPAlreadyEnrolled = errors.New("totp already enrolled")
	// ErrNoPendingPhoneChange is returned when confirming a change that was never requested.
	ErrNoPendingPhoneChange = errors.New("no pending phone number change")

	// ErrNotFound is written by the HTTP surface for an unknown route. A
	// session naming a deleted account is ErrUnauthenticated instead.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimited is returned by login and verify once the caller's IP has
	// used its failure budget for the current window.
	ErrRateLimited = errors.New("too many attempts")

	// ErrInternal hides storage and gateway failures from callers.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned by Build when a required dependency is missing.
	ErrEngineNotReady = errors.New("engine not initialized")
)

var errorKinds = map[error]ErrorKind{
	ErrMissingParameters:     KindValidation,
	ErrInvalidUsername:       KindValidation,
	ErrInvalidEmail:          KindValidation,
	ErrWeakPassword:          KindValidation,
	ErrInvalidPhoneNumber:    KindValidation,
	ErrTOTPSecretRequired:    KindValidation,
	ErrEmailAndUsernameTaken: KindConflict,
	ErrEmailTaken:            KindConflict,
	ErrUsernameTaken:         KindConflict,
	ErrInvalidCredentials:    KindAuthentication,
	ErrInvalidSecondFactor:   KindAuthentication,
	ErrAccountLocked:         KindAuthentication,
	ErrUnauthenticated:       KindAuthentication,
	ErrInvalidTOTP:           KindAuthentication,
	ErrInvalidPhoneCode:      KindAuthentication,
	ErrAdminRequired:         KindAuthorization,
	ErrAlreadyAuthenticated:  KindState,
	ErrNoPendingCode:         KindState,
	ErrTOTPAlreadyEnrolled:   KindState,
	ErrNoPendingPhoneChange:  KindState,
	ErrNotFound:              KindNotFound,
	ErrRateLimited:           KindRateLimited,
	ErrInternal:              KindInternal,
	ErrEngineNotReady:        KindInternal,
}

// KindOf returns the taxonomy kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if kind, ok := errorKinds[err]; ok {
		return kind
	}
	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}
