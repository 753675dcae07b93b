package helpdesk

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"helpdesk/internal/model"
)

const (
	// AdminUsername is the account seeded by the first migration.
	AdminUsername = "admin"

	// firstAccessPassword is accepted for AdminUsername only until its
	// initial password has been set.
	firstAccessPassword = "admin"

	// MinPasswordLength is the shortest password SetInitialPassword accepts.
	MinPasswordLength = 8
)

// UserStore is the part of Database used by AuthService.
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	SetUserPassword(ctx context.Context, id int64, hash string) error
}

// AuthService checks credentials and manages passwords.
type AuthService struct {
	users  UserStore
	logger Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(users UserStore, logger Logger) *AuthService {
	return &AuthService{users: users, logger: logger}
}

// Authenticate verifies a username/password pair and returns the user.
//
// The seeded admin account has no password until one is set. While that is
// the case, the password "admin" returns the user together with
// ErrInitialPasswordRequired.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		s.logger.Warn("login for unknown user", "username", username)
		return nil, ErrInvalidCredentials
	}

	if !user.PasswordHash.Valid && !user.InitialPasswordSet {
		if username == AdminUsername && password == firstAccessPassword {
			s.logger.Info("first admin access")
			return user, ErrInitialPasswordRequired
		}
		return nil, ErrInvalidCredentials
	}

	if !user.PasswordHash.Valid {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Error("comparing password hash", "username", username, "error", err)
		}
		s.logger.Warn("wrong password", "username", username)
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("login succeeded", "username", username)
	return user, nil
}

// SetInitialPassword sets the admin password for the first time. Only the
// admin principal may call it, and only once.
func (s *AuthService) SetInitialPassword(ctx context.Context, p *model.Principal, password string) error {
	if p == nil || p.Name != AdminUsername {
		s.logger.Warn("unauthorized initial password attempt")
		return ErrNotAuthorized
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	user, err := s.users.FindUserByUsername(ctx, AdminUsername)
	if err != nil {
		return fmt.Errorf("finding admin: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.InitialPasswordSet {
		s.logger.Warn("attempt to reset an already set initial password")
		return ErrInitialPasswordAlreadySet
	}

	if err := s.storePassword(ctx, user.ID, password); err != nil {
		return err
	}
	s.logger.Info("initial admin password set")
	return nil
}

// SetPassword replaces the password of any user. Used by the CLI.
func (s *AuthService) SetPassword(ctx context.Context, username, password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	user, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := s.storePassword(ctx, user.ID, password); err != nil {
		return err
	}
	s.logger.Info("password changed", "username", username)
	return nil
}

// FirstAccess reports whether the admin account still awaits its initial
// password. A missing admin counts as first access.
func (s *AuthService) FirstAccess(ctx context.Context) (bool, error) {
	user, err := s.users.FindUserByUsername(ctx, AdminUsername)
	if err != nil {
		return false, fmt.Errorf("finding admin: %w", err)
	}
	return user == nil || !user.InitialPasswordSet, nil
}

func (s *AuthService) storePassword(ctx context.Context, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.users.SetUserPassword(ctx, id, string(hash)); err != nil {
		return fmt.Errorf("storing password: %w", err)
	}
	return nil
}
