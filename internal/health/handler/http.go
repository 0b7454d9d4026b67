package handler

import (
	"context"
	"net/http"
	"time"

	"web-analytics/backend/internal/logging"
	"web-analytics/backend/internal/platform/httpx"
)

// readyTimeout bounds each readiness probe.
const readyTimeout = 2 * time.Second

// Pinger is used for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is used for readiness (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger reports cache reachability. A failing cache degrades readiness to "degraded" but does not fail it.
type CachePinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// Handler serves liveness and readiness.
type Handler struct {
	db     Pinger
	policy PolicyChecker
	cache  CachePinger
	now    func() time.Time
}

// NewHandler returns a Handler. Nil dependencies are skipped by Ready.
func NewHandler(db Pinger, policy PolicyChecker, cache CachePinger) *Handler {
	return &Handler{db: db, policy: policy, cache: cache, now: time.Now}
}

type liveResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Live handles GET /health. It touches no dependency.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, liveResponse{
		Success:   true,
		Message:   "API is running",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

type readyResponse struct {
	Success bool              `json:"success"`
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
}

// Ready handles GET /health/ready: 200 when the database and policy engine answer, 503 otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := readyResponse{Success: true, Status: "ok", Checks: map[string]string{}}
	fail := func(name string, err error) {
		logging.Ctx(ctx).Warn().Err(err).Str("check", name).Msg("health: readiness check failed")
		resp.Checks[name] = "error"
		resp.Success = false
		resp.Status = "unavailable"
	}
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			fail("database", err)
		} else {
			resp.Checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			fail("policy", err)
		} else {
			resp.Checks["policy"] = "ok"
		}
	}
	if h.cache != nil && h.cache.Enabled() {
		if err := h.cache.Ping(ctx); err != nil {
			resp.Checks["cache"] = "degraded"
			if resp.Success {
				resp.Status = "degraded"
			}
		} else {
			resp.Checks["cache"] = "ok"
		}
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, resp)
}
