package server

import (
	"crypto/subtle"
	"net/http"
)

// requireAdmin guards a handler with basic auth against the configured
// admin users.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !s.adminAllowed(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="authproxy admin mode"`)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminAllowed checks the pair against every configured user with
// constant-time comparisons. An empty user list admits nobody.
func (s *Server) adminAllowed(user, pass string) bool {
	allowed := false
	for _, u := range s.users {
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(u.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(u.Password)) == 1
		if userOK && passOK {
			allowed = true
		}
	}
	return allowed
}
