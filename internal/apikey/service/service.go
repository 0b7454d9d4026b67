package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	appdomain "web-analytics/backend/internal/app/domain"
	"web-analytics/backend/internal/apikey/domain"
	"web-analytics/backend/internal/audit"
	auditdomain "web-analytics/backend/internal/audit/domain"
	"web-analytics/backend/internal/metrics"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/policy/engine"
	"web-analytics/backend/internal/security"
	"web-analytics/backend/internal/validation"
)

// Sentinel errors; the HTTP handler maps them to status codes.
var (
	ErrAppNotFound    = errors.New("app not found")
	ErrAPIKeyNotFound = errors.New("api key not found")
)

// AppRepo is the minimal app repository needed by the service.
type AppRepo interface {
	GetByID(ctx context.Context, id string) (*appdomain.App, error)
	ListByOwner(ctx context.Context, userID string) ([]*appdomain.App, error)
}

// KeyRepo is the minimal API key repository needed by the service.
type KeyRepo interface {
	Register(ctx context.Context, app *appdomain.App, key *domain.APIKey) error
	Rotate(ctx context.Context, appID string, key *domain.APIKey, at time.Time) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	ListByApps(ctx context.Context, appIDs []string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}

// RegisterInput is the body of POST /api-keys/register.
type RegisterInput struct {
	Name        string `json:"name" validate:"required,min=3,max=255"`
	Domain      string `json:"domain" validate:"omitempty,uri"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

// IssuedKey is a freshly generated key. Plaintext is never stored and never returned again.
type IssuedKey struct {
	Key       *domain.APIKey
	Plaintext string
}

// Registration is the outcome of Register.
type Registration struct {
	App    *appdomain.App
	Issued IssuedKey
}

// AppKeys is an app with all of its keys, newest key first.
type AppKeys struct {
	App  *appdomain.App
	Keys []*domain.APIKey
}

// Service manages apps and the lifecycle of their API keys.
type Service struct {
	apps     AppRepo
	keys     KeyRepo
	authz    engine.Authorizer
	audit    audit.AuditLogger
	keyTTL   time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewService returns a Service. auditLogger may be nil.
func NewService(apps AppRepo, keys KeyRepo, authz engine.Authorizer, auditLogger audit.AuditLogger, keyTTL time.Duration) *Service {
	return &Service{
		apps:     apps,
		keys:     keys,
		authz:    authz,
		audit:    auditLogger,
		keyTTL:   keyTTL,
		now:      time.Now,
		generate: security.GenerateAPIKey,
	}
}

// Register validates in, then creates the app and its first key atomically.
func (s *Service) Register(ctx context.Context, owner principal.Owner, in RegisterInput, clientIP string) (*Registration, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Domain = strings.TrimSpace(in.Domain)
	if verr := validation.Struct(in); verr != nil {
		return nil, verr
	}
	now := s.now().UTC()
	app := &appdomain.App{
		ID:          uuid.New().String(),
		UserID:      owner.UserID,
		Name:        in.Name,
		Domain:      in.Domain,
		Description: in.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	issued, err := s.newKey(app.ID, now)
	if err != nil {
		return nil, err
	}
	if err := s.keys.Register(ctx, app, issued.Key); err != nil {
		return nil, fmt.Errorf("register app: %w", err)
	}
	metrics.APIKeyLifecycle.WithLabelValues("register").Inc()
	s.logAudit(ctx, audit.Entry{
		UserID: owner.UserID, AppID: app.ID, Action: auditdomain.ActionAppRegistered,
		Resource: auditdomain.ResourceApp, ResourceID: app.ID, IP: clientIP,
		Metadata: map[string]any{"name": app.Name, "keyPrefix": issued.Key.KeyPrefix},
	})
	return &Registration{App: app, Issued: issued}, nil
}

// ListApps returns every app of the owner with its keys.
func (s *Service) ListApps(ctx context.Context, owner principal.Owner) ([]AppKeys, error) {
	apps, err := s.apps.ListByOwner(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return []AppKeys{}, nil
	}
	ids := make([]string, len(apps))
	for i, a := range apps {
		ids[i] = a.ID
	}
	keys, err := s.keys.ListByApps(ctx, ids)
	if err != nil {
		return nil, err
	}
	byApp := make(map[string][]*domain.APIKey, len(apps))
	for _, k := range keys {
		byApp[k.AppID] = append(byApp[k.AppID], k)
	}
	out := make([]AppKeys, len(apps))
	for i, a := range apps {
		out[i] = AppKeys{App: a, Keys: byApp[a.ID]}
	}
	return out, nil
}

// GetApp returns one owned app with its keys. Apps of other owners are ErrAppNotFound.
func (s *Service) GetApp(ctx context.Context, owner principal.Owner, appID string) (*AppKeys, error) {
	app, err := s.ownedApp(ctx, owner, appID, engine.ActionReadApp)
	if err != nil {
		return nil, err
	}
	keys, err := s.keys.ListByApps(ctx, []string{app.ID})
	if err != nil {
		return nil, err
	}
	return &AppKeys{App: app, Keys: keys}, nil
}

// Revoke deactivates one key of an owned app. Revoking an already revoked key succeeds and keeps the
// original revocation time.
func (s *Service) Revoke(ctx context.Context, owner principal.Owner, keyID, clientIP string) error {
	key, err := s.keys.GetByID(ctx, keyID)
	if err != nil {
		return err
	}
	if key == nil {
		return ErrAPIKeyNotFound
	}
	if _, err := s.ownedApp(ctx, owner, key.AppID, engine.ActionRevokeKey); err != nil {
		if errors.Is(err, ErrAppNotFound) {
			return ErrAPIKeyNotFound
		}
		return err
	}
	if err := s.keys.Revoke(ctx, key.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	metrics.APIKeyLifecycle.WithLabelValues("revoke").Inc()
	s.logAudit(ctx, audit.Entry{
		UserID: owner.UserID, AppID: key.AppID, Action: auditdomain.ActionKeyRevoked,
		Resource: auditdomain.ResourceAPIKey, ResourceID: key.ID, IP: clientIP,
		Metadata: map[string]any{"keyPrefix": key.KeyPrefix},
	})
	return nil
}

// Regenerate revokes every active key of an owned app and issues a new one in a single transaction.
func (s *Service) Regenerate(ctx context.Context, owner principal.Owner, appID, clientIP string) (*IssuedKey, error) {
	app, err := s.ownedApp(ctx, owner, appID, engine.ActionRegenerateKey)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	issued, err := s.newKey(app.ID, now)
	if err != nil {
		return nil, err
	}
	revoked, err := s.keys.Rotate(ctx, app.ID, issued.Key, now)
	if err != nil {
		return nil, fmt.Errorf("rotate api keys: %w", err)
	}
	metrics.APIKeyLifecycle.WithLabelValues("regenerate").Inc()
	s.logAudit(ctx, audit.Entry{
		UserID: owner.UserID, AppID: app.ID, Action: auditdomain.ActionKeyRegenerated,
		Resource: auditdomain.ResourceAPIKey, ResourceID: issued.Key.ID, IP: clientIP,
		Metadata: map[string]any{"revoked": revoked, "keyPrefix": issued.Key.KeyPrefix},
	})
	return &issued, nil
}

// ownedApp loads appID and asks the authorizer whether owner may perform action on it.
// Missing and foreign apps are both ErrAppNotFound.
func (s *Service) ownedApp(ctx context.Context, owner principal.Owner, appID string, action engine.Action) (*appdomain.App, error) {
	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrAppNotFound
	}
	ok, err := s.authz.Allow(ctx, engine.Request{
		PrincipalUserID: owner.UserID,
		Action:          action,
		ResourceType:    "app",
		ResourceID:      app.ID,
		ResourceOwnerID: app.UserID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAppNotFound
	}
	return app, nil
}

func (s *Service) newKey(appID string, now time.Time) (IssuedKey, error) {
	plaintext, err := s.generate()
	if err != nil {
		return IssuedKey{}, fmt.Errorf("generate api key: %w", err)
	}
	expiresAt := now.Add(s.keyTTL)
	return IssuedKey{
		Plaintext: plaintext,
		Key: &domain.APIKey{
			ID:        uuid.New().String(),
			AppID:     appID,
			KeyPrefix: security.APIKeyPrefix(plaintext),
			KeyHash:   security.HashAPIKey(plaintext),
			IsActive:  true,
			ExpiresAt: &expiresAt,
			CreatedAt: now,
		},
	}, nil
}

func (s *Service) logAudit(ctx context.Context, e audit.Entry) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, e)
	}
}
