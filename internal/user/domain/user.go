package domain

import (
	"errors"
	"time"
)

// ProviderGoogle is the only external identity provider owners sign in with.
const ProviderGoogle = "google"

// User is an account owner. Apps hang off it.
type User struct {
	ID         string
	ExternalID string
	Provider   string
	Email      string
	Name       string
	AvatarURL  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.ExternalID == "" {
		return errors.New("external id is required")
	}
	if u.Provider == "" {
		u.Provider = ProviderGoogle
	}
	return nil
}
