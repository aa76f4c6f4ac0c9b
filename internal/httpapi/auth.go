package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"sttbridge/internal/models"
)

// requireAuth enforces the static bearer token on the speech endpoints.
// A no-op when no token is configured.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !tokenMatches(bearerToken(r), s.cfg.Server.AuthToken) {
			writeError(w, models.Unauthorized("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer" header,
// or returns empty.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return auth[len(prefix):]
}

func tokenMatches(presented, expected string) bool {
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}
