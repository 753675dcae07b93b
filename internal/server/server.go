// Package server is the HTTP surface of the helpdesk: authentication,
// backup administration and the dashboard statistics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"helpdesk/internal/helpdesk"
	"helpdesk/internal/metrics"
	"helpdesk/internal/model"
	"helpdesk/internal/session"
)

const (
	loginPage       = "/p/login"
	readTimeout     = 15 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// Store is the part of the database the handlers read directly.
type Store interface {
	FindUserByID(ctx context.Context, id int64) (*model.User, error)
	DatabaseStats(ctx context.Context) (*model.DatabaseStats, error)
}

// Deps are the services a Server routes requests to.
type Deps struct {
	Store    Store
	Auth     *helpdesk.AuthService
	Guard    *helpdesk.IntegrityGuard
	Rotator  *helpdesk.BackupRotator
	Stats    *helpdesk.StatisticsService
	Sessions *session.Manager
	Metrics  metrics.Recorder
	Logger   helpdesk.Logger
}

// Server is an http.Handler.
type Server struct {
	store    Store
	auth     *helpdesk.AuthService
	guard    *helpdesk.IntegrityGuard
	rotator  *helpdesk.BackupRotator
	stats    *helpdesk.StatisticsService
	sessions *session.Manager
	metrics  metrics.Recorder
	logger   helpdesk.Logger

	router chi.Router
}

// New builds the router. A nil Metrics records nothing.
func New(d Deps) *Server {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	s := &Server{
		store:    d.Store,
		auth:     d.Auth,
		guard:    d.Guard,
		rotator:  d.Rotator,
		stats:    d.Stats,
		sessions: d.Sessions,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(s.integrity)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/", s.handleIndex)
	r.Get("/login", redirectTo(loginPage))
	r.Get(loginPage, s.handleLoginPage)
	r.Get("/force-logout", s.handleLogout)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/logout", s.handleLogout)
		r.Get("/check-role", s.handleCheckRole)
		r.Post("/renew-session", s.handleRenewSession)
		r.Get("/check-session", s.handleCheckSession)
		r.Get("/check-first-access", s.handleCheckFirstAccess)
		r.With(s.requireLogin).Post("/set_initial_password", s.handleSetInitialPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireLogin)
		r.Get("/estatisticas", s.handleStatistics)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/system/backups", s.handleListBackups)
			r.Get("/system/backup-config", s.handleGetBackupConfig)
			r.Post("/system/backup-config", s.handleSetBackupConfig)
			r.Post("/system/backup/manual", s.handleManualBackup)
			r.Get("/admin/database/stats", s.handleDatabaseStats)
			r.Get("/admin/database/tables", s.handleDatabaseTables)
		})
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

func redirectTo(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusFound)
	}
}
