package domain

import (
	"errors"
	"time"
)

// App is a tenant application registered by an owner. It owns API keys and analytics events.
type App struct {
	ID          string
	UserID      string
	Name        string
	Domain      string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate validates the app for persistence. Returns an error describing the first validation failure.
func (a *App) Validate() error {
	if a.UserID == "" {
		return errors.New("owner is required")
	}
	if a.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// OwnedBy reports whether userID owns the app.
func (a *App) OwnedBy(userID string) bool {
	return a != nil && userID != "" && a.UserID == userID
}
