package domain

import "time"

// Session is a time-bounded proof of a successful authentication. SessionID
// is an opaque unguessable token; expiry is absolute from creation and
// LastActivity never extends it.
type Session struct {
	SessionID    string
	Username     string
	Role         Role
	Method       AuthMethod
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
	IPAddress    string
	UserAgent    string
}

// Expired reports whether the session's absolute expiry has passed.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
