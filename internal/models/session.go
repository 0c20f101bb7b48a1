package models

import "time"

// Session binds an opaque token to a user. Only the SHA-256 of the token is stored.
type Session struct {
	ID           int64
	TokenHash    string
	UserID       int64
	UserPublicID string
	IPAddress    string
	UserAgent    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionUser is the identity attached to an authenticated request.
type SessionUser struct {
	UserID    int64
	PublicID  string
	SessionID int64
}
