// Package analyticstest provides an in-memory event repository for tests.
package analyticstest

import (
	"context"
	"sort"
	"sync"

	"web-analytics/backend/internal/analytics/domain"
)

// MemEvents implements the analytics event repository in memory.
type MemEvents struct {
	mu      sync.Mutex
	events  []*domain.Event
	queries int

	// CreateErr, when set, is returned by Create.
	CreateErr error
}

func (m *MemEvents) Create(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemEvents) Summary(ctx context.Context, f domain.SummaryFilter) (*domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	apps := toSet(f.AppIDs)
	out := domain.EmptySummary(f.Event)
	users := map[string]bool{}
	for _, e := range m.events {
		if !apps[e.AppID] || e.Event != f.Event {
			continue
		}
		if f.Start != nil && e.Timestamp.Before(*f.Start) {
			continue
		}
		if f.End != nil && e.Timestamp.After(*f.End) {
			continue
		}
		out.Count++
		if e.UserID != "" {
			users[e.UserID] = true
		}
		if e.Device != "" {
			out.DeviceData[e.Device]++
		}
	}
	out.UniqueUsers = int64(len(users))
	return out, nil
}

func (m *MemEvents) UserStats(ctx context.Context, appIDs []string, userID string) (*domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	apps := toSet(appIDs)
	out := domain.EmptyUserStats(userID)
	var matched []*domain.Event
	for _, e := range m.events {
		if apps[e.AppID] && e.UserID == userID {
			matched = append(matched, e)
		}
	}
	out.TotalEvents = int64(len(matched))
	if len(matched) > 0 {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
		out.DeviceDetails = matched[0].Metadata
		if ip := matched[0].IPAddress; ip != "" {
			out.IPAddress = &ip
		}
	}
	return out, nil
}

// Events returns a copy of the stored events in insertion order.
func (m *MemEvents) Events() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Event(nil), m.events...)
}

// Queries is the number of aggregate queries answered so far.
func (m *MemEvents) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
