package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mwantia/folio/internal/auth"
)

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Debug("%s %s %d %dB %s [%s]", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
			time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}

// authenticate attaches the principal of a valid session to the request.
// Requests without a valid session pass through anonymously.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.sessionToken(r)
		if token == "" || s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := s.auth.Verify(token)
		if err != nil {
			s.log.Debug("Ignoring session: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFrom(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "login required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionToken reads the session cookie, falling back to a bearer token.
func (s *Server) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(s.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
