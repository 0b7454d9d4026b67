package middleware

import "net/http"

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets the response headers every API answer carries. HSTS is only sent when the
// request arrived over TLS, directly or through a proxy reporting X-Forwarded-Proto: https.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		next.ServeHTTP(w, r)
	})
}
