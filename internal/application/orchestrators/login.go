package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid password")
	ErrLoginDisabled      = errors.New("operator login is not enabled")
	ErrLoginLocked        = errors.New("too many failed attempts, try again later")
)

// Lockout policy for operator login.
const (
	MaxFailedLogins = 5
	LockoutPeriod   = 15 * time.Minute
)

// LoginGuard counts failed operator logins per client and locks a client
// out after MaxFailedLogins.
type LoginGuard struct {
	mu       sync.Mutex
	failures map[string]failedLogins
	now      func() time.Time
}

type failedLogins struct {
	count int
	until time.Time
}

// NewLoginGuard creates an empty guard.
func NewLoginGuard() *LoginGuard {
	return &LoginGuard{failures: make(map[string]failedLogins), now: time.Now}
}

func (g *LoginGuard) locked(client string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.failures[client]
	if !ok {
		return false
	}
	if !f.until.IsZero() && g.now().After(f.until) {
		delete(g.failures, client)
		return false
	}
	return f.count >= MaxFailedLogins
}

func (g *LoginGuard) fail(client string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	f := g.failures[client]
	f.count++
	if f.count >= MaxFailedLogins {
		f.until = g.now().Add(LockoutPeriod)
	}
	g.failures[client] = f
	return f.count
}

func (g *LoginGuard) reset(client string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, client)
}

// LoginInput carries input for the operator login.
type LoginInput struct {
	Password string
	Client   string // remote address, for lockout and logs
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	PasswordHash string // bcrypt
	Guard        *LoginGuard
}

// ExecuteLogin checks the operator password.
// PRE: none
// POST: Returns nil only when the password matches PasswordHash
// INVARIANT: A locked-out client is rejected without comparing the password
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) error {
	if deps.PasswordHash == "" {
		return ErrLoginDisabled
	}
	if deps.Guard != nil && deps.Guard.locked(input.Client) {
		slog.Info("auth_event", "event", "login_blocked", "client", input.Client, "reason", "locked")
		return ErrLoginLocked
	}
	if input.Password == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(deps.PasswordHash), []byte(input.Password)); err != nil {
		failures := 0
		if deps.Guard != nil {
			failures = deps.Guard.fail(input.Client)
		}
		slog.Info("auth_event", "event", "login_failed", "client", input.Client, "failed_logins", failures)
		return ErrInvalidCredentials
	}
	if deps.Guard != nil {
		deps.Guard.reset(input.Client)
	}
	slog.Info("auth_event", "event", "login_success", "client", input.Client)
	return nil
}

// HashPassword returns a bcrypt hash suitable for VITALITY_OPERATOR_PASSWORD_HASH.
func HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
