package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"web-analytics/backend/internal/app/domain"
	"web-analytics/backend/internal/db"
)

const appColumns = `id, user_id, name, domain, description, is_active, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an app repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the app for id, or nil if not found. Ids that are not UUIDs are treated as not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.App, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+appColumns+` FROM apps WHERE id = $1`, id)
	a, err := scanApp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ListByOwner returns the owner's apps, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]*domain.App, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+appColumns+` FROM apps WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListIDsByOwner returns the ids of every app the owner holds, active or not.
func (r *PostgresRepository) ListIDsByOwner(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM apps WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert writes a on q, which may be a transaction. The app must have ID set.
func Insert(ctx context.Context, q db.DBTX, a *domain.App) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO apps (id, user_id, name, domain, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		a.ID, a.UserID, a.Name, nullString(a.Domain), nullString(a.Description), a.IsActive, a.CreatedAt)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApp(s scanner) (*domain.App, error) {
	var (
		a           domain.App
		domainName  sql.NullString
		description sql.NullString
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.Name, &domainName, &description, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Domain = domainName.String
	a.Description = description.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
