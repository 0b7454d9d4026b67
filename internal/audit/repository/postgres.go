package repository

import (
	"context"
	"database/sql"

	"web-analytics/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	var meta any
	if a.Metadata != "" {
		meta = a.Metadata
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, app_id, action, resource, resource_id, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`,
		a.ID, nullString(a.UserID), nullString(a.AppID), a.Action, a.Resource, nullString(a.ResourceID),
		nullString(a.IP), meta, a.CreatedAt)
	return err
}

// ListByUser returns the user's audit trail, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, app_id, action, resource, resource_id, ip, metadata, created_at
		FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a                               domain.AuditLog
			uid, appID, resID, ip, metadata sql.NullString
		)
		if err := rows.Scan(&a.ID, &uid, &appID, &a.Action, &a.Resource, &resID, &ip, &metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID, a.AppID, a.ResourceID, a.IP, a.Metadata = uid.String, appID.String, resID.String, ip.String, metadata.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
