package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	appdomain "web-analytics/backend/internal/app/domain"
	apprepo "web-analytics/backend/internal/app/repository"
	"web-analytics/backend/internal/apikey/domain"
	"web-analytics/backend/internal/db"
)

const keyColumns = `k.id, k.app_id, k.key_prefix, k.key_hash, k.is_active, k.expires_at, k.last_used_at, k.revoked_at, k.created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an API key repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Register inserts app and key atomically. Both must have ID set.
func (r *PostgresRepository) Register(ctx context.Context, app *appdomain.App, key *domain.APIKey) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := apprepo.Insert(ctx, tx, app); err != nil {
			return err
		}
		return insertKey(ctx, tx, key)
	})
}

// Rotate revokes all active keys of appID and inserts key in the same transaction.
func (r *PostgresRepository) Rotate(ctx context.Context, appID string, key *domain.APIKey, at time.Time) (int64, error) {
	var revoked int64
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE api_keys SET is_active = FALSE, revoked_at = COALESCE(revoked_at, $2) WHERE app_id = $1 AND is_active`,
			appID, at)
		if err != nil {
			return err
		}
		if revoked, err = res.RowsAffected(); err != nil {
			return err
		}
		return insertKey(ctx, tx, key)
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// GetByID returns the key for id, or nil if not found. Ids that are not UUIDs are treated as not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+keyColumns+` FROM api_keys k WHERE k.id = $1`, id)
	k, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return k, err
}

// ListByApps returns the keys of every app in appIDs, newest first.
func (r *PostgresRepository) ListByApps(ctx context.Context, appIDs []string) ([]*domain.APIKey, error) {
	if len(appIDs) == 0 {
		return nil, nil
	}
	in, args := db.InList(appIDs, 1)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys k WHERE k.app_id IN (`+in+`) ORDER BY k.created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// FindActiveByHash looks a key up by hash, requiring both the key and its app to be active.
// Expiry is left to the caller. Returns nil when nothing matches.
func (r *PostgresRepository) FindActiveByHash(ctx context.Context, hash string) (*domain.Credential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+keyColumns+`, a.user_id
		FROM api_keys k
		JOIN apps a ON a.id = k.app_id
		WHERE k.key_hash = $1 AND k.is_active AND a.is_active`, hash)
	var ownerID string
	k, err := scanKey(row, &ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Credential{Key: k, AppID: k.AppID, OwnerID: ownerID}, nil
}

// Revoke marks the key inactive. revoked_at keeps its first value.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = FALSE, revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`, id, at)
	return err
}

// TouchLastUsed records a successful authentication. Concurrent writers race; last writer wins.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

func insertKey(ctx context.Context, q db.DBTX, k *domain.APIKey) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO api_keys (id, app_id, key_prefix, key_hash, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		k.ID, k.AppID, k.KeyPrefix, k.KeyHash, k.IsActive, nullTime(k.ExpiresAt), k.CreatedAt)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(s scanner, extra ...any) (*domain.APIKey, error) {
	var (
		k                              domain.APIKey
		expiresAt, lastUsed, revokedAt sql.NullTime
	)
	dest := append([]any{&k.ID, &k.AppID, &k.KeyPrefix, &k.KeyHash, &k.IsActive, &expiresAt, &lastUsed, &revokedAt, &k.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	k.ExpiresAt = timePtr(expiresAt)
	k.LastUsedAt = timePtr(lastUsed)
	k.RevokedAt = timePtr(revokedAt)
	return &k, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
