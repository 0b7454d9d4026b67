package handler

import (
	"errors"
	"net/http"

	"web-analytics/backend/internal/analytics/service"
	"web-analytics/backend/internal/platform/httpx"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/validation"
)

// Handler serves the /analytics endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Collect handles POST /analytics/collect for an API-key authenticated app.
func (h *Handler) Collect(w http.ResponseWriter, r *http.Request, app principal.App) {
	var in service.CollectInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err, "analytics: collect")
		return
	}
	id, err := h.svc.Collect(r.Context(), app, in, service.ClientInfo{
		UserAgent: r.UserAgent(),
		IP:        httpx.ClientIP(r),
	})
	if err != nil {
		h.writeError(w, r, err, "analytics: collect")
		return
	}
	httpx.Created(w, "Event collected successfully", map[string]string{"eventId": id}, "")
}

// EventSummary handles GET /analytics/event-summary.
func (h *Handler) EventSummary(w http.ResponseWriter, r *http.Request, owner principal.Owner) {
	q := r.URL.Query()
	sum, cached, err := h.svc.EventSummary(r.Context(), owner, service.SummaryQuery{
		Event:     q.Get("event"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		AppID:     q.Get("app_id"),
	})
	if err != nil {
		h.writeError(w, r, err, "analytics: event summary")
		return
	}
	httpx.Cached(w, sum, cached)
}

// UserStats handles GET /analytics/user-stats.
func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request, owner principal.Owner) {
	stats, cached, err := h.svc.UserStats(r.Context(), owner, service.UserStatsQuery{UserID: r.URL.Query().Get("userId")})
	if err != nil {
		h.writeError(w, r, err, "analytics: user stats")
		return
	}
	httpx.Cached(w, stats, cached)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		httpx.ValidationFailed(w, verr)
	case errors.Is(err, service.ErrAppNotFound):
		httpx.NotFound(w, "App not found")
	default:
		httpx.Internal(w, r, err, msg)
	}
}
