package streamauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/streamauth/cache"
	"github.com/MrEthical07/streamauth/identity"
	internalaudit "github.com/MrEthical07/streamauth/internal/audit"
	"github.com/MrEthical07/streamauth/password"
	"github.com/MrEthical07/streamauth/permission"
	"github.com/MrEthical07/streamauth/security"
	"github.com/MrEthical07/streamauth/session"
	"github.com/MrEthical07/streamauth/storage"
	"github.com/MrEthical07/streamauth/token"
	"github.com/MrEthical07/streamauth/userstore"
)

// Manager is the authentication facade. Build one with New().Build.
type Manager struct {
	config Config
	logger logr.Logger
	now    func() time.Time

	users       UserStore
	tokens      *token.Service
	sessions    session.Storage
	backend     storage.Backend
	ownsBackend bool
	guard       *security.Guard
	perms       *permission.Service
	hasher      *password.Argon2
	cache       *cache.Cache
	metrics     *Metrics
	audit       *internalaudit.Dispatcher

	lookups singleflight.Group

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (m *Manager) ready() error {
	if m == nil || m.closed.Load() {
		return ErrManagerNotReady
	}
	return nil
}

// CookieName is the cookie Authenticate falls back to when no bearer token
// is present.
func (m *Manager) CookieName() string {
	return m.config.Cookie.Name
}

// SecureCookies reports whether cookies set for this manager need the
// Secure attribute.
func (m *Manager) SecureCookies() bool {
	return m.config.Cookie.Secure
}

// AccessTTL is the lifetime of issued access tokens.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.Token.AccessTTL
}

// TokenFromRequest returns the bearer token from the Authorization header,
// or else the value of the named cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if r == nil {
		return ""
	}
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

func (m *Manager) isOwner(username string) bool {
	return m.config.Owner.Username != "" && username == m.config.Owner.Username
}

// resolve loads the authoritative record for username. Concurrent lookups
// of one username share a single store round trip, which runs detached from
// any one caller's cancellation and is bounded by the storage op timeout.
// The configured owner never touches the store.
func (m *Manager) resolve(ctx context.Context, username string) (*userstore.Record, error) {
	if m.isOwner(username) {
		return &userstore.Record{
			Username:     m.config.Owner.Username,
			PasswordHash: m.config.Owner.Password,
			Role:         identity.RoleOwner,
		}, nil
	}

	v, err, _ := m.lookups.Do(username, func() (any, error) {
		timeout := m.config.Storage.OpTimeout
		if timeout <= 0 {
			timeout = storage.DefaultOpTimeout
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return m.users.Lookup(lctx, username)
	})
	if err != nil {
		return nil, err
	}
	rec, _ := v.(*userstore.Record)
	if rec == nil {
		return nil, userstore.ErrNotFound
	}
	// Shared with other callers of the same flight.
	return rec.Clone(), nil
}

// buildUser turns a store record into the principal returned to callers.
// Permissions are the effective grants.
func (m *Manager) buildUser(rec *userstore.Record, sessionID string) *AuthUser {
	u := &AuthUser{
		Username:          rec.Username,
		Role:              rec.Role,
		PermissionVersion: rec.PermissionVersion,
		Tags:              rec.Tags,
		SessionID:         sessionID,
		LastActivity:      m.now(),
		LoginTime:         rec.LastLogin,
	}
	u.Permissions = m.perms.UserPermissions(&AuthUser{Role: rec.Role, Permissions: rec.Permissions})
	return u
}

// HasPermission reports whether user may perform action on resource.
func (m *Manager) HasPermission(user *AuthUser, resource string, action Action) bool {
	if m.ready() != nil {
		return false
	}
	return m.perms.HasPermission(user, resource, action)
}

// HasPermissionContext is HasPermission with a context for registered
// predicates.
func (m *Manager) HasPermissionContext(ctx context.Context, user *AuthUser, resource string, action Action) bool {
	if m.ready() != nil {
		return false
	}
	return m.perms.HasPermissionContext(ctx, user, resource, action)
}

// Authorize is HasPermissionContext as an error: ErrUnauthenticated for a
// nil user and ErrInsufficientPermissions when the grant is missing.
func (m *Manager) Authorize(ctx context.Context, user *AuthUser, resource string, action Action) error {
	if err := m.ready(); err != nil {
		return err
	}
	if user == nil {
		return ErrUnauthenticated
	}
	if !m.perms.HasPermissionContext(ctx, user, resource, action) {
		return fmt.Errorf("%w: %s on %s", ErrInsufficientPermissions, action, resource)
	}
	return nil
}

// UserPermissions returns the effective grants for user.
func (m *Manager) UserPermissions(user *AuthUser) []Permission {
	if m.ready() != nil {
		return nil
	}
	return m.perms.UserPermissions(user)
}

func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return m.metrics.Snapshot()
}

// AuditDropped counts audit events discarded because the buffer was full.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}

// CacheStats reports token cache effectiveness.
func (m *Manager) CacheStats() cache.Stats {
	if m == nil {
		return cache.Stats{}
	}
	return m.cache.Stats()
}

// StorageType names the backend holding sessions and the blacklist.
func (m *Manager) StorageType() storage.Type {
	if m == nil {
		return ""
	}
	return m.backend.Type()
}

// Close stops background sweeps, drains the audit queue and closes the
// storage backend when the Manager opened it. It is idempotent.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		var errs []error
		errs = append(errs, m.cache.Close())
		errs = append(errs, m.guard.Close())
		m.audit.Close()
		if m.ownsBackend {
			errs = append(errs, m.backend.Close())
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}
