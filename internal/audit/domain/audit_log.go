package domain

import "time"

// Actions recorded for API key lifecycle changes.
const (
	ActionAppRegistered  = "app_registered"
	ActionKeyRevoked     = "api_key_revoked"
	ActionKeyRegenerated = "api_key_regenerated"
	ResourceApp          = "app"
	ResourceAPIKey       = "api_key"
)

// AuditLog represents an audit event.
type AuditLog struct {
	ID         string
	UserID     string
	AppID      string
	Action     string
	Resource   string
	ResourceID string
	IP         string
	Metadata   string
	CreatedAt  time.Time
}
