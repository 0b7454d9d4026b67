package repository

import (
	"context"

	"web-analytics/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Upsert creates the user on first login and refreshes profile fields (email, name, avatar) afterwards.
	Upsert(ctx context.Context, u *domain.User) (*domain.User, error)
}
