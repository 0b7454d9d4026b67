// Package middleware holds the HTTP middleware that turns credentials into explicit principals
// and guards the API with metrics and rate limits.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"web-analytics/backend/internal/apikey/service"
	"web-analytics/backend/internal/logging"
	"web-analytics/backend/internal/metrics"
	"web-analytics/backend/internal/platform/httpx"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/security"
)

const (
	bearerPrefix = "bearer "
	// APIKeyHeader carries the ingestion key.
	APIKeyHeader = "X-API-Key"
)

// Auth schemes used as metric labels.
const (
	SchemeAPIKey  = "api_key"
	SchemeSession = "session"
)

// KeyAuthenticator resolves an x-api-key value to an app principal.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (principal.App, error)
}

// SessionValidator validates an owner bearer token.
type SessionValidator interface {
	Validate(token string) (*security.SessionClaims, error)
}

// APIKey adapts an app-scoped handler. Every rejection is the same generic 401; the reason is only
// counted and logged. Lookup failures answer 500.
func APIKey(auth KeyAuthenticator, fn principal.AppHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := auth.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			var aerr *service.AuthError
			if errors.As(err, &aerr) {
				metrics.RecordAuthFailure(SchemeAPIKey, aerr.Reason)
				logging.Ctx(r.Context()).Debug().Str("reason", aerr.Reason).Msg("auth: api key rejected")
				httpx.Unauthorized(w)
				return
			}
			httpx.Internal(w, r, err, "auth: api key lookup failed")
			return
		}
		fn(w, r, app)
	}
}

// Session adapts an owner-scoped handler, validating the Authorization: Bearer token. A token whose
// subject is not a user UUID is rejected like an invalid one.
func Session(tokens SessionValidator, fn principal.OwnerHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r.Header.Get("Authorization"))
		if token == "" {
			metrics.RecordAuthFailure(SchemeSession, "missing")
			httpx.Unauthorized(w)
			return
		}
		claims, err := tokens.Validate(token)
		if err != nil {
			metrics.RecordAuthFailure(SchemeSession, "invalid")
			httpx.Unauthorized(w)
			return
		}
		if uuid.Validate(claims.UserID()) != nil {
			metrics.RecordAuthFailure(SchemeSession, "invalid_subject")
			httpx.Unauthorized(w)
			return
		}
		fn(w, r, principal.Owner{UserID: claims.UserID(), Email: claims.Email})
	}
}

// extractBearer returns the token of a "Bearer <token>" header value, or "" if missing or malformed.
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
