package domain

import "time"

// AuthMethod identifies which credential source satisfied (or rejected) an
// authentication attempt.
type AuthMethod string

const (
	AuthMethodLocal     AuthMethod = "local"
	AuthMethodDirectory AuthMethod = "directory"
	// AuthMethodUnknown is recorded when an attempt is rejected before any
	// credential source is consulted, e.g. against a locked account.
	AuthMethodUnknown AuthMethod = "unknown"
)

// AuthStatus is the outcome of a full authentication pass.
type AuthStatus string

const (
	AuthSuccess            AuthStatus = "success"
	AuthInvalidCredentials AuthStatus = "invalid_credentials"
	AuthUserNotFound       AuthStatus = "user_not_found"
	AuthAccountLocked      AuthStatus = "account_locked"
)

// VerifyResult is the outcome of a single local credential check. Verification
// never mutates account state; the coordinator owns counter updates.
type VerifyResult int

const (
	VerifyNotFound VerifyResult = iota
	VerifyInactive
	VerifyLocked
	VerifyInvalid
	VerifyValid
)

// Account is a locally managed principal. Username is the unique key; the
// hash and salt are hex-encoded PBKDF2 material.
type Account struct {
	Username       string
	PasswordHash   string
	PasswordSalt   string
	Role           Role
	FailedAttempts int
	LockedUntil    *time.Time
	LastLogin      *time.Time
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Locked reports whether the account is inside an unexpired lockout window.
func (a Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// AuthAttempt records one authentication outcome for audit. Rows are
// append-only; the core never updates or deletes them.
type AuthAttempt struct {
	ID        int64
	Username  string
	Method    AuthMethod
	Success   bool
	AttemptAt time.Time
	IPAddress string
	UserAgent string
	Detail    string
}
