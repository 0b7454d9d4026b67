// Package apikeytest provides an in-memory app and API key store for tests of packages that
// authenticate or manage keys.
package apikeytest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	appdomain "web-analytics/backend/internal/app/domain"
	"web-analytics/backend/internal/apikey/domain"
)

// MemStore implements the app and API key repository interfaces in memory. Register and Rotate
// apply all-or-nothing, like the Postgres transactions.
type MemStore struct {
	mu   sync.Mutex
	apps map[string]*appdomain.App
	keys map[string]*domain.APIKey

	// Err, when set, is returned by every call.
	Err error
	// TouchErr, when set, is returned by TouchLastUsed only.
	TouchErr error
	// FailInsert makes Register and Rotate fail with nothing applied, as a rolled-back transaction would.
	FailInsert bool
	Touched    int
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{apps: map[string]*appdomain.App{}, keys: map[string]*domain.APIKey{}}
}

// PutApp stores a copy of a.
func (m *MemStore) PutApp(a *appdomain.App) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.apps[a.ID] = &cp
}

// PutKey stores a copy of k.
func (m *MemStore) PutKey(k *domain.APIKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *k
	m.keys[k.ID] = &cp
}

// Keys returns copies of the keys of appID.
func (m *MemStore) Keys(appID string) []*domain.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.APIKey
	for _, k := range m.keys {
		if k.AppID == appID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out
}

// AppCount returns the number of stored apps.
func (m *MemStore) AppCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.apps)
}

var errInsert = errors.New("insert failed")

func (m *MemStore) Register(ctx context.Context, app *appdomain.App, key *domain.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.FailInsert {
		return errInsert
	}
	a, k := *app, *key
	m.apps[a.ID] = &a
	m.keys[k.ID] = &k
	return nil
}

func (m *MemStore) Rotate(ctx context.Context, appID string, key *domain.APIKey, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if m.FailInsert {
		return 0, errInsert
	}
	var n int64
	for _, k := range m.keys {
		if k.AppID == appID && k.IsActive {
			k.IsActive = false
			if k.RevokedAt == nil {
				t := at
				k.RevokedAt = &t
			}
			n++
		}
	}
	cp := *key
	m.keys[cp.ID] = &cp
	return n, nil
}

func (m *MemStore) GetByID(ctx context.Context, id string) (*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	k, ok := m.keys[id]
	if !ok {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

func (m *MemStore) ListByApps(ctx context.Context, appIDs []string) ([]*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	want := make(map[string]bool, len(appIDs))
	for _, id := range appIDs {
		want[id] = true
	}
	var out []*domain.APIKey
	for _, k := range m.keys {
		if want[k.AppID] {
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) FindActiveByHash(ctx context.Context, hash string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, k := range m.keys {
		if k.KeyHash != hash || !k.IsActive {
			continue
		}
		app, ok := m.apps[k.AppID]
		if !ok || !app.IsActive {
			return nil, nil
		}
		cp := *k
		return &domain.Credential{Key: &cp, AppID: app.ID, OwnerID: app.UserID}, nil
	}
	return nil, nil
}

func (m *MemStore) Revoke(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if k, ok := m.keys[id]; ok {
		k.IsActive = false
		if k.RevokedAt == nil {
			t := at
			k.RevokedAt = &t
		}
	}
	return nil
}

func (m *MemStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TouchErr != nil {
		return m.TouchErr
	}
	if m.Err != nil {
		return m.Err
	}
	if k, ok := m.keys[id]; ok {
		t := at
		k.LastUsedAt = &t
		m.Touched++
	}
	return nil
}

// Apps is the app-repository view of the store.
func (m *MemStore) Apps() *MemApps { return &MemApps{m: m} }

// MemApps implements the app repository over a MemStore.
type MemApps struct{ m *MemStore }

func (a *MemApps) GetByID(ctx context.Context, id string) (*appdomain.App, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.Err != nil {
		return nil, a.m.Err
	}
	app, ok := a.m.apps[id]
	if !ok {
		return nil, nil
	}
	cp := *app
	return &cp, nil
}

func (a *MemApps) ListByOwner(ctx context.Context, userID string) ([]*appdomain.App, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if a.m.Err != nil {
		return nil, a.m.Err
	}
	var out []*appdomain.App
	for _, app := range a.m.apps {
		if app.UserID == userID {
			cp := *app
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (a *MemApps) ListIDsByOwner(ctx context.Context, userID string) ([]string, error) {
	apps, err := a.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(apps))
	for i, app := range apps {
		ids[i] = app.ID
	}
	return ids, nil
}
