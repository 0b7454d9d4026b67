package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"web-analytics/backend/internal/platform/httpx"
)

// LimitByIP limits requests per client address. max <= 0 disables the limiter.
func LimitByIP(max int, window time.Duration) func(http.Handler) http.Handler {
	return limit(max, window, httprate.KeyByIP)
}

// LimitCollect limits ingestion per API key, falling back to the client address when the header is absent.
func LimitCollect(max int, window time.Duration) func(http.Handler) http.Handler {
	return limit(max, window, collectKey)
}

func collectKey(r *http.Request) (string, error) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return "key:" + key, nil
	}
	return "ip:" + httpx.ClientIP(r), nil
}

func limit(max int, window time.Duration, key httprate.KeyFunc) func(http.Handler) http.Handler {
	if max <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(max, window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	httpx.Error(w, http.StatusTooManyRequests, httpx.MsgRateLimited)
}
