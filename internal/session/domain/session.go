package domain

import "time"

// Status is the refresh session state machine. Active is the only non-terminal
// state: Active→Rotated (successor created), Active→Revoked (logout/explicit),
// Active→Expired (lazy, at lookup). Rotated, Revoked, Expired are terminal.
type Status string

const (
	StatusActive  Status = "active"
	StatusRotated Status = "rotated"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRotated || s == StatusRevoked || s == StatusExpired
}

// Session is one link in a refresh-token lineage. The raw refresh token is
// never stored; TokenHash holds its SHA-256. RootID is the id of the session
// created at login/register, shared by every successor, so a whole lineage
// can be revoked with one predicate. SuccessorID is set exactly once, when
// the session is rotated.
type Session struct {
	ID          string
	UserID      string
	RootID      string
	TokenHash   string
	Status      Status
	SuccessorID *string // nil until rotated
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// ExpiredBy reports whether the session's lifetime has elapsed at now.
func (s *Session) ExpiredBy(now time.Time) bool {
	return now.After(s.ExpiresAt) || now.Equal(s.ExpiresAt)
}
