package repository

import (
	"context"

	"web-analytics/backend/internal/analytics/domain"
)

// Repository defines persistence and aggregation for analytics events.
type Repository interface {
	Create(ctx context.Context, e *domain.Event) error
	// Summary counts events, distinct users and events per non-null device for f.
	Summary(ctx context.Context, f domain.SummaryFilter) (*domain.Summary, error)
	// UserStats counts userID's events across appIDs and reports the latest event's metadata and IP.
	UserStats(ctx context.Context, appIDs []string, userID string) (*domain.UserStats, error)
}
