package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"web-analytics/backend/internal/audit/domain"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
	ctxErr    error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo)

	logger.LogEvent(context.Background(), Entry{
		UserID:     "user-1",
		AppID:      "app-1",
		Action:     domain.ActionKeyRevoked,
		Resource:   domain.ResourceAPIKey,
		ResourceID: "key-1",
		IP:         "192.168.1.1",
		Metadata:   map[string]any{"keyPrefix": "ak_0123456789..."},
	})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.ID == "" {
		t.Error("entry id should be assigned")
	}
	if entry.UserID != "user-1" || entry.AppID != "app-1" {
		t.Errorf("user/app = %q/%q", entry.UserID, entry.AppID)
	}
	if entry.Action != domain.ActionKeyRevoked || entry.Resource != domain.ResourceAPIKey || entry.ResourceID != "key-1" {
		t.Errorf("action/resource = %q/%q/%q", entry.Action, entry.Resource, entry.ResourceID)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q", entry.IP)
	}
	if !strings.Contains(entry.Metadata, "keyPrefix") {
		t.Errorf("metadata = %q", entry.Metadata)
	}
}

func TestLogger_LogEvent_UnknownIP(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo).LogEvent(context.Background(), Entry{Action: "a", Resource: "r"})
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want unknown", repo.entries[0].IP)
	}
	if repo.entries[0].Metadata != "" {
		t.Errorf("metadata = %q, want empty", repo.entries[0].Metadata)
	}
}

func TestLogger_LogEvent_RepoErrorIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(repo).LogEvent(context.Background(), Entry{Action: "a", Resource: "r"})
	if len(repo.entries) != 0 {
		t.Error("no entry should be stored")
	}
}

func TestLogger_LogEvent_SurvivesCanceledContext(t *testing.T) {
	repo := &mockAuditRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewLogger(repo).LogEvent(ctx, Entry{Action: "a", Resource: "r"})

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	if repo.ctxErr != nil {
		t.Errorf("repo saw canceled context: %v", repo.ctxErr)
	}
}

func TestLogger_NilRepo(t *testing.T) {
	NewLogger(nil).LogEvent(context.Background(), Entry{Action: "a"})
	var l *Logger
	l.LogEvent(context.Background(), Entry{Action: "a"})
}
