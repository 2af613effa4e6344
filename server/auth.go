package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/skitzo2000/MD-easy/observability"
)

// requireKey gates mutating endpoints behind the configured pre-shared key.
// When no key is configured the server is loopback-bound (Config.Validate
// enforces that) and calls pass through. The key is accepted in either
// header form:
//
//	X-Api-Key: <key>
//	Authorization: Bearer <key>
func (s *Service) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !keyMatches(r, s.cfg.APIKey) {
			s.recorder.Record(observability.EventAuthDenied, r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func keyMatches(r *http.Request, key string) bool {
	presented := r.Header.Get("X-Api-Key")
	if presented == "" {
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			presented = bearer
		}
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1
}
