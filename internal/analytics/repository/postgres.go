package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/goccy/go-json"

	"web-analytics/backend/internal/analytics/domain"
	"web-analytics/backend/internal/db"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an analytics repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists e. The event must have ID and Timestamp set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analytics_events
			(id, app_id, event, url, referrer, device, ip_address, user_id, session_id, timestamp, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12)`,
		e.ID, e.AppID, e.Event, nullString(e.URL), nullString(e.Referrer), nullString(e.Device),
		nullString(e.IPAddress), nullString(e.UserID), nullString(e.SessionID), e.Timestamp, string(metaJSON), e.CreatedAt)
	return err
}

// Summary runs the count and device breakdown on one snapshot so they agree with each other.
func (r *PostgresRepository) Summary(ctx context.Context, f domain.SummaryFilter) (*domain.Summary, error) {
	out := domain.EmptySummary(f.Event)
	if len(f.AppIDs) == 0 {
		return out, nil
	}
	where, args := summaryWhere(f)
	err := db.WithTxOptions(ctx, r.db, db.ReadSnapshot, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COUNT(DISTINCT user_id) FROM analytics_events WHERE `+where, args...,
		).Scan(&out.Count, &out.UniqueUsers); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT device, COUNT(*) FROM analytics_events WHERE `+where+` AND device IS NOT NULL GROUP BY device`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				device string
				n      int64
			)
			if err := rows.Scan(&device, &n); err != nil {
				return err
			}
			out.DeviceData[device] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UserStats reads the count and the latest event on one snapshot.
func (r *PostgresRepository) UserStats(ctx context.Context, appIDs []string, userID string) (*domain.UserStats, error) {
	out := domain.EmptyUserStats(userID)
	if len(appIDs) == 0 {
		return out, nil
	}
	in, args := db.InList(appIDs, 2)
	args = append([]any{userID}, args...)
	where := `user_id = $1 AND app_id IN (` + in + `)`
	err := db.WithTxOptions(ctx, r.db, db.ReadSnapshot, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM analytics_events WHERE `+where, args...).Scan(&out.TotalEvents); err != nil {
			return err
		}
		var (
			meta []byte
			ip   sql.NullString
		)
		err := tx.QueryRowContext(ctx,
			`SELECT metadata, ip_address FROM analytics_events WHERE `+where+` ORDER BY timestamp DESC, created_at DESC LIMIT 1`, args...,
		).Scan(&meta, &ip)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &out.DeviceDetails); err != nil {
				return err
			}
		}
		if ip.Valid {
			v := ip.String
			out.IPAddress = &v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func summaryWhere(f domain.SummaryFilter) (string, []any) {
	in, args := db.InList(f.AppIDs, 1)
	where := `app_id IN (` + in + `)`
	args = append(args, f.Event)
	where += ` AND event = $` + strconv.Itoa(len(args))
	if f.Start != nil {
		args = append(args, *f.Start)
		where += ` AND timestamp >= $` + strconv.Itoa(len(args))
	}
	if f.End != nil {
		args = append(args, *f.End)
		where += ` AND timestamp <= $` + strconv.Itoa(len(args))
	}
	return where, args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
