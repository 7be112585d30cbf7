package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrUserNotFound covers missing and inactive local accounts alike; callers
	// surface it as plain invalid credentials.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials hides whether the username or the password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked signals temporary lockout after repeated failed attempts.
	ErrAccountLocked = errors.New("account locked")
	// ErrWeakPassword is returned at account creation when the password fails policy.
	ErrWeakPassword = errors.New("weak password")
	// ErrDuplicateUser is returned at account creation when the username is taken.
	ErrDuplicateUser   = errors.New("duplicate user")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
	// ErrDirectoryUnavailable marks directory transport failures. It never crosses
	// the coordinator boundary; the coordinator falls back to local verification.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	// ErrStoreUnavailable is the one failure class that propagates to callers
	// unmodified. Store mutations are retried once before it is raised.
	ErrStoreUnavailable = errors.New("metadata store unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
)
