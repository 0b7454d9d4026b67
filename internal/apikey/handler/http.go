package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	appdomain "web-analytics/backend/internal/app/domain"
	"web-analytics/backend/internal/apikey/domain"
	"web-analytics/backend/internal/apikey/service"
	"web-analytics/backend/internal/platform/httpx"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/validation"
)

// SaveKeyWarning accompanies every response that reveals a plaintext key.
const SaveKeyWarning = "Please save this API key. You will not be able to see it again."

// Handler serves the /api-keys endpoints.
type Handler struct {
	svc *service.Service
	now func() time.Time
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

type appView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Domain      string     `json:"domain,omitempty"`
	Description string     `json:"description,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

type keyView struct {
	ID         string     `json:"id"`
	KeyPrefix  string     `json:"keyPrefix"`
	IsActive   bool       `json:"isActive"`
	Status     string     `json:"status"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	RevokedAt  *time.Time `json:"revokedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type issuedView struct {
	Key       string     `json:"key"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type appWithKeysView struct {
	appView
	APIKeys []keyView `json:"apiKeys"`
}

// Register handles POST /api-keys/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request, owner principal.Owner) {
	var in service.RegisterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err, "apikey: register")
		return
	}
	reg, err := h.svc.Register(r.Context(), owner, in, httpx.ClientIP(r))
	if err != nil {
		h.writeError(w, r, err, "apikey: register")
		return
	}
	httpx.Created(w, "App registered successfully", map[string]any{
		"app": appView{
			ID:          reg.App.ID,
			Name:        reg.App.Name,
			Domain:      reg.App.Domain,
			Description: reg.App.Description,
		},
		"apiKey": issuedView{Key: reg.Issued.Plaintext, ExpiresAt: reg.Issued.Key.ExpiresAt},
	}, SaveKeyWarning)
}

// ListApps handles GET /api-keys/apps.
func (h *Handler) ListApps(w http.ResponseWriter, r *http.Request, owner principal.Owner) {
	apps, err := h.svc.ListApps(r.Context(), owner)
	if err != nil {
		h.writeError(w, r, err, "apikey: list apps")
		return
	}
	now := h.now().UTC()
	out := make([]appWithKeysView, len(apps))
	for i, a := range apps {
		out[i] = appWithKeysView{appView: fullAppView(a.App), APIKeys: keyViews(a.Keys, now)}
	}
	httpx.OK(w, out)
}

// GetApp handles GET /api-keys/{appId}.
func (h *Handler) GetApp(w http.ResponseWriter, r *http.Request, owner principal.Owner) {
	ak, err := h.svc.GetApp(r.Context(), owner, chi.URLParam(r, "appId"))
	if err != nil {
		h.writeError(w, r, err, "apikey: get app")
		return
	}
	httpx.OK(w, map[string]any{
		"app":     appView{ID: ak.App.ID, Name: ak.App.Name, Domain: ak.App.Domain},
		"apiKeys": keyViews(ak.Keys, h.now().UTC()),
	})
}

// Revoke handles POST /api-keys/{apiKeyId}/revoke.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request, owner principal.Owner) {
	if err := h.svc.Revoke(r.Context(), owner, chi.URLParam(r, "apiKeyId"), httpx.ClientIP(r)); err != nil {
		h.writeError(w, r, err, "apikey: revoke")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "API key revoked successfully"})
}

// Regenerate handles POST /api-keys/{appId}/regenerate.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request, owner principal.Owner) {
	issued, err := h.svc.Regenerate(r.Context(), owner, chi.URLParam(r, "appId"), httpx.ClientIP(r))
	if err != nil {
		h.writeError(w, r, err, "apikey: regenerate")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.Envelope{
		Success: true,
		Message: "API key regenerated successfully",
		Data:    map[string]any{"apiKey": issuedView{Key: issued.Plaintext, ExpiresAt: issued.Key.ExpiresAt}},
		Warning: SaveKeyWarning,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		httpx.ValidationFailed(w, verr)
	case errors.Is(err, service.ErrAppNotFound):
		httpx.NotFound(w, "App not found")
	case errors.Is(err, service.ErrAPIKeyNotFound):
		httpx.NotFound(w, "API key not found")
	default:
		httpx.Internal(w, r, err, msg)
	}
}

func fullAppView(a *appdomain.App) appView {
	active, created := a.IsActive, a.CreatedAt
	return appView{
		ID:          a.ID,
		Name:        a.Name,
		Domain:      a.Domain,
		Description: a.Description,
		IsActive:    &active,
		CreatedAt:   &created,
	}
}

func keyViews(keys []*domain.APIKey, now time.Time) []keyView {
	out := make([]keyView, len(keys))
	for i, k := range keys {
		out[i] = keyView{
			ID:         k.ID,
			KeyPrefix:  k.KeyPrefix,
			IsActive:   k.IsActive,
			Status:     string(k.Status(now)),
			ExpiresAt:  k.ExpiresAt,
			LastUsedAt: k.LastUsedAt,
			RevokedAt:  k.RevokedAt,
			CreatedAt:  k.CreatedAt,
		}
	}
	return out
}
