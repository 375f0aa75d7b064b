package api

import (
	"net/http"
	"time"

	"github.com/mwantia/folio/internal/auth"
	"github.com/mwantia/folio/internal/library"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  auth.Principal `json:"user"`
	Token string         `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, &library.ValidationError{Field: "body", Message: "invalid json"})
		return
	}

	token, user, err := s.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		s.log.Info("Failed login for '%s'", in.Username)
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, token, time.Now().Add(s.auth.TTL()))
	s.log.Info("User '%s' logged in", user.Username)

	writeJSON(w, http.StatusOK, loginResponse{
		User:  auth.Principal{UserID: user.ID, Username: user.Username},
		Token: token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.setSessionCookie(w, "", time.Time{})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, principal)
}

// setSessionCookie sets the session cookie; a zero expiry removes it.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	c := &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.CookieSecure,
	}
	if expires.IsZero() {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	http.SetCookie(w, c)
}
