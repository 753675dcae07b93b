package server

import (
	"errors"
	"net/http"

	"helpdesk/internal/helpdesk"
	"helpdesk/internal/model"
	"helpdesk/internal/session"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userInfo struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Success bool                  `json:"success"`
	User    userInfo              `json:"user"`
	Backup  *helpdesk.LoginBackup `json:"backup"`
}

type initialPasswordResponse struct {
	Success                 bool `json:"success"`
	InitialPasswordRequired bool `json:"initial_password_required"`
}

func principalOf(u *model.User) *model.Principal {
	return &model.Principal{ID: u.ID, Name: u.Username, Role: u.Role}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		s.logger.Warn("login without username or password", "ip", r.RemoteAddr)
		s.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, helpdesk.ErrInitialPasswordRequired):
		if err := s.sessions.Issue(w, principalOf(user)); err != nil {
			s.logger.Error("issuing session", "error", err)
			s.writeError(w, http.StatusInternalServerError, "could not create session")
			return
		}
		s.writeJSON(w, http.StatusOK, initialPasswordResponse{InitialPasswordRequired: true})
		return
	case errors.Is(err, helpdesk.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		s.logger.Error("login failed", "username", req.Username, "ip", r.RemoteAddr, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.sessions.Issue(w, principalOf(user)); err != nil {
		s.logger.Error("issuing session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	s.logger.Info("login succeeded", "username", user.Username, "ip", r.RemoteAddr)

	backup := s.rotator.EnsureDailyBackup(r.Context())
	s.writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		User:    userInfo{Username: user.Username, Role: user.Role},
		Backup:  &backup,
	})
}

func (s *Server) handleSetInitialPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.auth.SetInitialPassword(r.Context(), session.PrincipalFrom(r.Context()), req.Password)
	switch {
	case errors.Is(err, helpdesk.ErrNotAuthorized):
		s.writeError(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, helpdesk.ErrPasswordTooShort):
		s.writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
	case errors.Is(err, helpdesk.ErrInitialPasswordAlreadySet):
		s.writeError(w, http.StatusForbidden, "initial password already set")
	case err != nil:
		s.logger.Error("setting initial password", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "password set"})
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	name := "unknown"
	if p := session.PrincipalFrom(r.Context()); p != nil {
		name = p.Name
	}
	s.logger.Info("logout", "user", name)
	s.sessions.Clear(w)
	http.Redirect(w, r, loginPage, http.StatusFound)
}

func (s *Server) handleCheckRole(w http.ResponseWriter, r *http.Request) {
	p := session.PrincipalFrom(r.Context())
	if p == nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"role": nil, "username": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"role": p.Role, "username": p.Name})
}

func (s *Server) handleRenewSession(w http.ResponseWriter, r *http.Request) {
	if session.PrincipalFrom(r.Context()) == nil {
		s.logger.Warn("session renewal without a session", "ip", r.RemoteAddr)
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type sessionStatus struct {
	Valid    bool      `json:"valid"`
	User     *userInfo `json:"user,omitempty"`
	Error    string    `json:"error,omitempty"`
	Redirect string    `json:"redirect,omitempty"`
}

func (s *Server) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	p := session.PrincipalFrom(r.Context())
	if p == nil {
		s.writeJSON(w, http.StatusUnauthorized, sessionStatus{Error: "session not found", Redirect: loginPage})
		return
	}

	user, err := s.store.FindUserByID(r.Context(), p.ID)
	if err != nil {
		s.logger.Error("checking session", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, sessionStatus{Error: "error checking session", Redirect: loginPage})
		return
	}
	if user == nil {
		s.logger.Warn("session user no longer exists", "user", p.Name)
		s.sessions.Clear(w)
		s.writeJSON(w, http.StatusUnauthorized, sessionStatus{Error: "user not found in database", Redirect: loginPage})
		return
	}
	s.writeJSON(w, http.StatusOK, sessionStatus{
		Valid: true,
		User:  &userInfo{ID: user.ID, Username: user.Username, Role: user.Role},
	})
}

func (s *Server) handleCheckFirstAccess(w http.ResponseWriter, r *http.Request) {
	first, err := s.auth.FirstAccess(r.Context())
	if err != nil {
		s.logger.Error("checking first access", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"is_first_access": first})
}
