package repository

import (
	"context"
	"time"

	appdomain "web-analytics/backend/internal/app/domain"
	"web-analytics/backend/internal/apikey/domain"
)

// Repository defines persistence for API keys.
type Repository interface {
	// Register creates app and its first key in one transaction.
	Register(ctx context.Context, app *appdomain.App, key *domain.APIKey) error
	// Rotate revokes every active key of appID and inserts key, in one transaction. Returns the revoked count.
	Rotate(ctx context.Context, appID string, key *domain.APIKey, at time.Time) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	ListByApps(ctx context.Context, appIDs []string) ([]*domain.APIKey, error)
	// FindActiveByHash returns the active key with hash whose app is also active, or nil.
	FindActiveByHash(ctx context.Context, hash string) (*domain.Credential, error)
	// Revoke clears the active flag. The first revocation timestamp is kept.
	Revoke(ctx context.Context, id string, at time.Time) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}
