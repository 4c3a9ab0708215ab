package streamauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/streamauth/identity"
	"github.com/MrEthical07/streamauth/storage"
)

// Logout ends the session of the request's access token.
func (m *Manager) Logout(r *http.Request) error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.LogoutToken(r.Context(), TokenFromRequest(r, m.config.Cookie.Name))
}

// LogoutToken drops the cached token and deletes its session record.
// Expired tokens are accepted so a stale cookie can still log out. The token
// itself is not blacklisted; use ForceLogout for that.
func (m *Manager) LogoutToken(ctx context.Context, raw string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if raw == "" {
		return ErrUnauthenticated
	}
	m.cache.Delete(raw)

	claims, err := m.tokens.Inspect(raw)
	if err != nil {
		return tokenError(err)
	}
	if err := m.sessions.DeleteSession(ctx, claims.SessionID); err != nil {
		m.metrics.Inc(MetricSessionStoreError)
		m.logger.V(1).Info("session delete failed", "username", claims.Subject, "error", err.Error())
	}

	m.metrics.Inc(MetricLogout)
	m.emitAudit(ctx, AuditLogout, true, claims.Subject, claims.SessionID, nil, nil)
	return nil
}

// ForceLogout revokes the whole session of raw: the refresh token, the
// access token and every access token refreshed from it.
func (m *Manager) ForceLogout(ctx context.Context, raw string) error {
	if err := m.ready(); err != nil {
		return err
	}
	claims, err := m.tokens.Inspect(raw)
	if err != nil {
		return tokenError(err)
	}
	return m.forceLogout(ctx, claims.Subject, claims.SessionID)
}

// ForceLogoutSession is ForceLogout by session id.
func (m *Manager) ForceLogoutSession(ctx context.Context, sessionID string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if sessionID == "" {
		return fmt.Errorf("%w: session id required", ErrValidation)
	}
	return m.forceLogout(ctx, "", sessionID)
}

func (m *Manager) forceLogout(ctx context.Context, username, sid string) error {
	if err := m.tokens.RevokeSession(ctx, sid); err != nil {
		m.logger.Error(err, "session revoke failed", "sessionID", sid)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	m.cache.DeleteWhere(func(u *identity.User) bool { return u.SessionID == sid })
	if err := m.sessions.DeleteSession(ctx, sid); err != nil {
		m.metrics.Inc(MetricSessionStoreError)
		m.logger.V(1).Info("session delete failed", "sessionID", sid, "error", err.Error())
	}

	m.metrics.Inc(MetricForceLogout)
	m.emitAudit(ctx, AuditForceLogout, true, username, sid, nil, nil)
	return nil
}

// Revoke blacklists a single token by its id for the rest of its
// lifetime. Revoking an expired token succeeds without doing anything.
func (m *Manager) Revoke(ctx context.Context, raw string) error {
	if err := m.ready(); err != nil {
		return err
	}
	m.cache.Delete(raw)

	if err := m.tokens.Revoke(ctx, raw); err != nil {
		if errors.Is(err, storage.ErrUnavailable) || errors.Is(err, storage.ErrClosed) {
			m.logger.Error(err, "token revoke failed")
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		return tokenError(err)
	}

	m.metrics.Inc(MetricTokenRevoked)
	var username, sid string
	if claims, err := m.tokens.Inspect(raw); err == nil {
		username, sid = claims.Subject, claims.SessionID
	}
	m.emitAudit(ctx, AuditTokenRevoked, true, username, sid, nil, nil)
	return nil
}
