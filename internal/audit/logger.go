package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"web-analytics/backend/internal/audit/domain"
	auditrepo "web-analytics/backend/internal/audit/repository"
	"web-analytics/backend/internal/logging"
)

// writeTimeout bounds one audit insert.
const writeTimeout = 3 * time.Second

// Entry is one auditable action.
type Entry struct {
	UserID     string
	AppID      string
	Action     string
	Resource   string
	ResourceID string
	IP         string
	Metadata   map[string]any
}

// AuditLogger writes a single audit event. LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, e Entry)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	now  func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo. A nil repo makes LogEvent a no-op.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo, now: time.Now}
}

// LogEvent writes one audit log entry synchronously. It survives cancellation of ctx so that an
// audit row is not lost when the client disconnects right after the action committed.
func (l *Logger) LogEvent(ctx context.Context, e Entry) {
	if l == nil || l.repo == nil {
		return
	}
	ip := e.IP
	if ip == "" {
		ip = "unknown"
	}
	var meta string
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = string(b)
		}
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		UserID:     e.UserID,
		AppID:      e.AppID,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		IP:         ip,
		Metadata:   meta,
		CreatedAt:  l.now().UTC(),
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := l.repo.Create(writeCtx, entry); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("action", e.Action).
			Str("resource", e.Resource).
			Str("resource_id", e.ResourceID).
			Msg("audit: failed to log event")
	}
}
