package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"journey/internal/log"
)

const sessionCookie = "journey_session"

type subjectKey struct{}

// Subject returns the authenticated user stored by requireSession, if any.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// requireSession accepts a session cookie or a bearer token. With auth
// disabled every request passes.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := ""
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		} else if c, err := r.Cookie(sessionCookie); err == nil {
			token = c.Value
		}

		claims, err := s.auth.Validate(token)
		if err != nil {
			s.rejectUnauthenticated(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rejectUnauthenticated(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case isHTMX(r):
		newHXResponse().Header("HX-Redirect", "/login").Status(http.StatusUnauthorized).Write(w)
	default:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

type loginPage struct {
	Username string
	Error    string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", loginPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login", loginPage{Error: "Requisição inválida"})
		return
	}

	username := sanitizeInput(r.PostForm.Get("username"))
	token, expires, err := s.auth.Login(username, r.PostForm.Get("password"))
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentAuth).WarnContext(r.Context(), "Login failed",
			log.FieldClientIP, s.detector.ExtractClientIP(r))
		s.render(w, r, http.StatusUnauthorized, "login", loginPage{Username: username, Error: "Usuário ou senha inválidos"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusNotFound, "login is disabled")
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	token, expires, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}
