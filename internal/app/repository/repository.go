package repository

import (
	"context"

	"web-analytics/backend/internal/app/domain"
)

// Repository defines persistence for apps. Creation happens together with the first API key,
// see the apikey repository.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.App, error)
	ListByOwner(ctx context.Context, userID string) ([]*domain.App, error)
	ListIDsByOwner(ctx context.Context, userID string) ([]string, error)
}
