package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"web-analytics/backend/internal/apikey/domain"
	"web-analytics/backend/internal/logging"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/security"
)

// touchTimeout bounds the last-used update done after a successful authentication.
const touchTimeout = 2 * time.Second

// ErrUnauthenticated is the single externally visible API key failure.
var ErrUnauthenticated = errors.New("unauthenticated")

// Reasons an API key is rejected. They are recorded in metrics and logs only.
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
	ReasonUnknown   = "unknown"
	ReasonExpired   = "expired"
)

// AuthError carries the internal reason for a rejection. It matches ErrUnauthenticated.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "unauthenticated: " + e.Reason }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthenticated }

// CredentialRepo is the lookup side of the key repository.
type CredentialRepo interface {
	FindActiveByHash(ctx context.Context, hash string) (*domain.Credential, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// Authenticator resolves a raw x-api-key value to the app it belongs to.
type Authenticator struct {
	repo CredentialRepo
	now  func() time.Time
}

// NewAuthenticator returns an Authenticator backed by repo.
func NewAuthenticator(repo CredentialRepo) *Authenticator {
	return &Authenticator{repo: repo, now: time.Now}
}

// Authenticate checks presence, format, an active key on an active app, then expiry. On success the key's
// last_used_at is updated best-effort: a failed update is logged and does not fail authentication.
// Database failures are returned as-is so callers can answer 500.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (principal.App, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return principal.App{}, &AuthError{Reason: ReasonMissing}
	}
	if !security.LooksLikeAPIKey(rawKey) {
		return principal.App{}, &AuthError{Reason: ReasonMalformed}
	}
	cred, err := a.repo.FindActiveByHash(ctx, security.HashAPIKey(rawKey))
	if err != nil {
		return principal.App{}, err
	}
	if cred == nil || !security.APIKeyHashEqual(rawKey, cred.Key.KeyHash) {
		return principal.App{}, &AuthError{Reason: ReasonUnknown}
	}
	now := a.now().UTC()
	if cred.Key.Expired(now) {
		return principal.App{}, &AuthError{Reason: ReasonExpired}
	}
	a.touch(ctx, cred.Key.ID, now)
	return principal.App{AppID: cred.AppID, OwnerID: cred.OwnerID, KeyID: cred.Key.ID}, nil
}

func (a *Authenticator) touch(ctx context.Context, keyID string, at time.Time) {
	touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
	defer cancel()
	if err := a.repo.TouchLastUsed(touchCtx, keyID, at); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("api_key_id", keyID).Msg("apikey: failed to update last_used_at")
	}
}
