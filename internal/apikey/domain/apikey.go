package domain

import (
	"time"
)

// Status is the derived lifecycle state of a key. Only StatusActive keys authenticate.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// APIKey is an ingestion credential bound to one app. Only the hash of the plaintext is stored.
type APIKey struct {
	ID         string
	AppID      string
	KeyPrefix  string
	KeyHash    string
	IsActive   bool
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the key has an expiry at or before now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// Status derives the lifecycle state at now. Revocation wins over expiry; neither is reversible.
func (k *APIKey) Status(now time.Time) Status {
	switch {
	case !k.IsActive || k.RevokedAt != nil:
		return StatusRevoked
	case k.Expired(now):
		return StatusExpired
	default:
		return StatusActive
	}
}

// Credential is what the authenticator needs after a hash lookup: the key and its active owning app.
type Credential struct {
	Key     *APIKey
	AppID   string
	OwnerID string
}
