package streamauth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/streamauth/jwt"
	"github.com/MrEthical07/streamauth/storage"
	"github.com/MrEthical07/streamauth/userstore"
)

// Authenticate reads the access token from the request (bearer header,
// else the access token cookie) and authenticates it.
func (m *Manager) Authenticate(r *http.Request) (*AuthUser, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.AuthenticateToken(r.Context(), TokenFromRequest(r, m.config.Cookie.Name))
}

// AuthenticateToken verifies an access token and returns the current state
// of its user. Role, permissions and the banned flag always come from the
// user store, so changes apply on the next request.
//
// A cached token skips signature and blacklist checks. Revocations made on
// another instance are therefore seen only once the cache entry expires.
func (m *Manager) AuthenticateToken(ctx context.Context, raw string) (*AuthUser, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { m.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()

	if raw == "" {
		return nil, m.authFailed(ErrUnauthenticated)
	}

	var (
		username, sid string
		expires       time.Time
	)
	cached, hit := m.cache.Get(raw)
	if hit {
		m.metrics.Inc(MetricCacheHit)
		username, sid = cached.Username, cached.SessionID
	} else {
		m.metrics.Inc(MetricCacheMiss)
		claims, err := m.tokens.VerifyClaims(ctx, raw, jwt.TypeAccess)
		if err != nil {
			if errors.Is(err, storage.ErrUnavailable) {
				m.metrics.Inc(MetricBlacklistFailClosed)
				m.logger.Error(err, "blacklist unavailable, rejecting token")
			}
			return nil, m.authFailed(tokenError(err))
		}
		username, sid, expires = claims.Subject, claims.SessionID, claims.ExpiresAt.Time
	}

	rec, err := m.resolve(ctx, username)
	if err != nil {
		m.cache.Delete(raw)
		switch {
		case isStoreOutage(err):
			m.metrics.Inc(MetricUserStoreError)
			m.logger.Error(err, "user store unavailable", "username", username)
		case !errors.Is(err, userstore.ErrNotFound):
			m.logger.Error(err, "user record unusable", "username", username)
		}
		return nil, m.authFailed(ErrUnauthenticated)
	}
	if rec.Banned {
		m.cache.Delete(raw)
		return nil, m.authFailed(ErrUnauthenticated)
	}

	if m.config.Session.Enforce {
		s, err := m.sessions.GetSession(ctx, sid)
		switch {
		case err != nil:
			m.metrics.Inc(MetricSessionStoreError)
			m.logger.V(1).Info("session read failed, continuing", "username", username, "error", err.Error())
		case s == nil:
			m.cache.Delete(raw)
			return nil, m.authFailed(ErrUnauthenticated)
		}
	}

	user := m.buildUser(rec, sid)
	if !hit {
		m.cache.SetUntil(raw, user, expires)
	}
	m.metrics.Inc(MetricAuthenticateSuccess)
	return user, nil
}

func (m *Manager) authFailed(err error) error {
	m.metrics.Inc(MetricAuthenticateFailure)
	return err
}
