package models

import (
	"time"
)

// AccountState is the lifecycle position of a user record.
type AccountState string

const (
	AccountUnverified         AccountState = "unverified"
	AccountVerified           AccountState = "verified"
	AccountEmailChangePending AccountState = "email_change_pending"
)

type User struct {
	ID                   int64 // internal key, never serialized
	PublicID             string
	Name                 string
	Email                string
	PasswordHash         string
	EmailVerified        bool
	ProfileImageURL      *string
	ProfileImageObjectID *string
	PendingEmail         *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// State derives the account state from the stored flags. EmailChangePending
// is only reported for verified accounts.
func (u *User) State() AccountState {
	if !u.EmailVerified {
		return AccountUnverified
	}
	if u.PendingEmail != nil {
		return AccountEmailChangePending
	}
	return AccountVerified
}

// PublicProfile is the only user shape ever returned to other users.
type PublicProfile struct {
	PublicID        string  `json:"uuid"`
	Name            string  `json:"name"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

// Profile is the owner's view of their own account.
type Profile struct {
	PublicID        string    `json:"uuid"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	EmailVerified   bool      `json:"emailVerified"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	PendingEmail    *string   `json:"pendingEmail,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (u *User) ToPublicProfile() PublicProfile {
	return PublicProfile{
		PublicID:        u.PublicID,
		Name:            u.Name,
		ProfileImageURL: u.ProfileImageURL,
	}
}

func (u *User) ToProfile() Profile {
	return Profile{
		PublicID:        u.PublicID,
		Name:            u.Name,
		Email:           u.Email,
		EmailVerified:   u.EmailVerified,
		ProfileImageURL: u.ProfileImageURL,
		PendingEmail:    u.PendingEmail,
		CreatedAt:       u.CreatedAt,
	}
}
