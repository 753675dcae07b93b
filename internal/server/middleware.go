package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"helpdesk/internal/model"
	"helpdesk/internal/session"
)

// apiPrefixes are answered with JSON when a session is rejected.
var apiPrefixes = []string{
	"/auth/", "/clientes", "/chamados", "/agendamentos", "/usuarios",
	"/system/", "/admin/", "/estatisticas",
}

type rejectionResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

func isAPIRequest(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	for _, p := range apiPrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}

// instrument records request counts and durations per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(endpoint, status, elapsed)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status,
			"duration", elapsed, "request_id", middleware.GetReqID(r.Context()))
	})
}

// integrity runs the integrity guard for every request that carries a
// session. Rejected sessions are cleared; accepted ones are renewed and the
// principal is put on the request context.
func (s *Server) integrity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := s.sessions.Load(r)
		if p == nil {
			next.ServeHTTP(w, r)
			return
		}

		d := s.guard.Check(r.Context(), p)
		if !d.Accept {
			s.metrics.ObserveRejection(d.Reason.String())
			s.sessions.Clear(w)
			if isAPIRequest(r) {
				s.writeJSON(w, http.StatusUnauthorized, rejectionResponse{
					Error:    "session invalidated due to database changes, please log in again",
					Redirect: loginPage,
				})
				return
			}
			http.Redirect(w, r, loginPage, http.StatusFound)
			return
		}

		if err := s.sessions.Touch(w, p); err != nil {
			s.logger.Error("renewing session", "user", p.Name, "error", err)
		}
		next.ServeHTTP(w, r.WithContext(session.WithPrincipal(r.Context(), p)))
	})
}

func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session.PrincipalFrom(r.Context()) == nil {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := session.PrincipalFrom(r.Context()); p == nil || p.Role != model.RoleAdmin {
			s.writeError(w, http.StatusForbidden, "access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}
