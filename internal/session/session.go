// Package session keeps the authenticated principal in a signed cookie.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"helpdesk/internal/helpdesk"
	"helpdesk/internal/model"
)

// CookieName is the name of the session cookie.
const CookieName = "helpdesk_session"

const keySize = 32

type claims struct {
	UserID int64  `json:"uid"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 session tokens. A session expires
// IdleTimeout after its last renewal; every Touch renews it.
type Manager struct {
	key    []byte
	idle   time.Duration
	clock  helpdesk.Clock
	secure bool
	parser *jwt.Parser
}

// NewManager creates a Manager signing with key.
func NewManager(key []byte, idle time.Duration, clock helpdesk.Clock) *Manager {
	return &Manager{
		key:   key,
		idle:  idle,
		clock: clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clock.Now),
			jwt.WithExpirationRequired(),
		),
	}
}

// SetSecure marks issued cookies Secure (HTTPS only).
func (m *Manager) SetSecure(secure bool) {
	m.secure = secure
}

// Load returns the principal bound to the request, or nil when there is no
// valid, unexpired session cookie.
func (m *Manager) Load(r *http.Request) *model.Principal {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	var cl claims
	token, err := m.parser.ParseWithClaims(c.Value, &cl, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	return &model.Principal{ID: cl.UserID, Name: cl.Name, Role: cl.Role}
}

// Issue binds p to the response with a fresh renewal time.
func (m *Manager) Issue(w http.ResponseWriter, p *model.Principal) error {
	now := m.clock.Now()
	exp := now.Add(m.idle)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: p.ID,
		Name:   p.Name,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(m.key)
	if err != nil {
		return fmt.Errorf("signing session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(m.idle.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Touch renews the session of p.
func (m *Manager) Touch(w http.ResponseWriter, p *model.Principal) error {
	return m.Issue(w, p)
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// LoadOrCreateKey reads a hex-encoded signing key from path, generating and
// storing a new random key (mode 0600) if the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decoding session key %s: %w", path, err)
		}
		if len(key) < keySize {
			return nil, fmt.Errorf("session key %s is too short (%d bytes)", path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading session key: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("writing session key: %w", err)
	}
	return key, nil
}

type ctxKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal, or nil.
func PrincipalFrom(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(ctxKey{}).(*model.Principal)
	return p
}
