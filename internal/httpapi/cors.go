package httpapi

import (
	"net/http"
	"strings"
)

const (
	corsFallbackOrigin = "http://localhost"
	corsMethods        = "GET, POST, OPTIONS"
	corsHeaders        = "Content-Type, Authorization, X-Sample-Rate, X-Channel-Count"
	corsMaxAge         = "86400"
)

// corsMiddleware attaches CORS headers to every response and answers
// preflight requests. Only localhost origins are echoed back; anything
// else gets the fixed fallback, which a browser on a foreign origin
// will refuse to match.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := corsFallbackOrigin
		if strings.HasPrefix(origin, "http://localhost") {
			allowed = origin
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Max-Age", corsMaxAge)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
