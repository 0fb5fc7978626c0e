package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"medialib/client/internal/api"
	"medialib/client/internal/auth"
	"medialib/client/internal/notify"
	"medialib/client/internal/rbac"
)

// Session is the identity carried by the persisted bearer token.
type Session struct {
	Token     string
	UserID    string
	Username  string
	Email     string
	Roles     []rbac.Role
	ExpiresAt time.Time
}

func (s Session) HasRole(role rbac.Role) bool {
	return rbac.Has(s.Roles, role)
}

// Expired reports whether the token's exp claim is in the past. Nothing in
// the client acts on it; the API answers 401 once the token stops working.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

func (s Session) Capabilities() rbac.Capabilities {
	return rbac.CapabilitiesFor(s.Roles, s.Token != "")
}

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, in api.Credentials) api.Result[api.TokenResponse]
	Register(ctx context.Context, in api.Registration) api.Result[api.TokenResponse]
}

// Profile is what a new user fills in at registration.
type Profile struct {
	Username string
	Email    string
	Password string
	Role     string
}

// AuthError is a login or registration failure with a message fit for users.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

const (
	msgMissingFields      = "Missing fields"
	msgInvalidRole        = "Invalid role"
	msgLoginFailed        = "Login failed"
	msgRegistrationFailed = "Registration failed"
)

var ErrNoAuthenticator = errors.New("session: no authenticator configured")

// Manager owns the token lifecycle. It is created once at startup and passed
// to everything that needs the current identity.
type Manager struct {
	store TokenStore

	mu   sync.RWMutex
	auth Authenticator
}

func NewManager(store TokenStore) *Manager {
	return &Manager{store: store}
}

// SetAuthenticator binds the login/register gateway. The gateway's HTTP
// client usually takes the Manager as its TokenSource, so it cannot be passed
// to NewManager.
func (m *Manager) SetAuthenticator(a Authenticator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auth = a
}

func (m *Manager) authenticator() Authenticator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auth
}

// Current decodes the persisted token. A missing, unreadable or malformed
// token yields an anonymous session; errors are only logged.
func (m *Manager) Current(ctx context.Context) (Session, bool) {
	token, err := m.store.Load(ctx)
	if err != nil {
		log.Printf("session: load token: %v", err)
		return Session{}, false
	}
	if token == "" {
		return Session{}, false
	}
	s, err := fromToken(token)
	if err != nil {
		log.Printf("session: %v", err)
		return Session{}, false
	}
	return s, true
}

// Token implements api.TokenSource. Only tokens that decode are sent.
func (m *Manager) Token(ctx context.Context) string {
	s, ok := m.Current(ctx)
	if !ok {
		return ""
	}
	return s.Token
}

// Capabilities derives what the current user may see and do.
func (m *Manager) Capabilities(ctx context.Context) rbac.Capabilities {
	s, ok := m.Current(ctx)
	if !ok {
		return rbac.CapabilitiesFor(nil, false)
	}
	return s.Capabilities()
}

func (m *Manager) Login(ctx context.Context, in api.Credentials) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		return Session{}, &AuthError{Message: msgMissingFields}
	}
	a := m.authenticator()
	if a == nil {
		return Session{}, ErrNoAuthenticator
	}
	return m.establish(ctx, a.Login(ctx, in), msgLoginFailed)
}

func (m *Manager) Register(ctx context.Context, p Profile) (Session, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Username == "" || p.Email == "" || p.Password == "" || strings.TrimSpace(p.Role) == "" {
		return Session{}, &AuthError{Message: msgMissingFields}
	}
	role := rbac.Normalize(p.Role)
	if !rbac.SelfAssignable(role) {
		return Session{}, &AuthError{Message: msgInvalidRole}
	}
	a := m.authenticator()
	if a == nil {
		return Session{}, ErrNoAuthenticator
	}
	res := a.Register(ctx, api.Registration{
		Username: p.Username,
		Email:    p.Email,
		Password: p.Password,
		Roles:    []string{string(role)},
	})
	return m.establish(ctx, res, msgRegistrationFailed)
}

func (m *Manager) establish(ctx context.Context, res api.Result[api.TokenResponse], fallback string) (Session, error) {
	if res.Err != nil {
		log.Printf("session: %s: %v", strings.ToLower(fallback), res.Err)
		return Session{}, &AuthError{Message: fallback}
	}
	if !res.OK() || res.Data.Token == "" {
		msg := notify.Capitalize(firstNonEmpty(res.Message, res.Data.Message))
		if msg == "" {
			msg = fallback
		}
		return Session{}, &AuthError{Status: res.Status, Message: msg}
	}

	s, err := fromToken(res.Data.Token)
	if err != nil {
		log.Printf("session: server returned unusable token: %v", err)
		return Session{}, &AuthError{Status: res.Status, Message: fallback}
	}
	if err := m.store.Save(ctx, res.Data.Token); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Logout forgets the token. Calling it without a session is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// Unauthorized is the API client's 401 hook: the server no longer accepts
// the token, so the session ends here.
func (m *Manager) Unauthorized(ctx context.Context) {
	log.Printf("session: token rejected by api, signing out")
	if err := m.store.Clear(ctx); err != nil {
		log.Printf("session: clear token: %v", err)
	}
}

func fromToken(token string) (Session, error) {
	claims, err := auth.DecodeToken(token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.UserID,
		Username:  claims.Username,
		Email:     claims.Email,
		Roles:     rbac.NormalizeAll(claims.Roles),
		ExpiresAt: claims.Expiry(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
