package handler

import (
	"context"
	"net/http"
	"time"

	"web-analytics/backend/internal/platform/httpx"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/user/domain"
)

// UserGetter is the lookup the profile endpoint needs.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Handler serves the owner profile endpoints.
type Handler struct {
	repo UserGetter
}

// NewHandler returns a profile handler backed by repo.
func NewHandler(repo UserGetter) *Handler {
	return &Handler{repo: repo}
}

type profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Me returns the authenticated owner's profile. A token whose user no longer exists is a 404.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, owner principal.Owner) {
	u, err := h.repo.GetByID(r.Context(), owner.UserID)
	if err != nil {
		httpx.Internal(w, r, err, "user: get profile")
		return
	}
	if u == nil {
		httpx.NotFound(w, "User not found")
		return
	}
	httpx.OK(w, map[string]any{"user": profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}})
}

// Logout acknowledges a sign-out. Sessions are stateless bearer tokens, so the client discards its
// token and nothing is revoked server side.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, owner principal.Owner) {
	httpx.WriteJSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "Logged out successfully"})
}
