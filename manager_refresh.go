package streamauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/streamauth/jwt"
	"github.com/MrEthical07/streamauth/storage"
	"github.com/MrEthical07/streamauth/userstore"
)

// Refresh exchanges a refresh token for a new access token in the same
// session. The refresh token is not renewed and stays valid until it
// expires or its session is force-logged-out. The user is re-read from the
// store and a banned account is refused.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}
	if refreshToken == "" {
		return "", m.refreshFailed(ctx, "", "", ErrUnauthenticated)
	}

	claims, err := m.tokens.VerifyClaims(ctx, refreshToken, jwt.TypeRefresh)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			m.metrics.Inc(MetricBlacklistFailClosed)
			m.logger.Error(err, "blacklist unavailable, rejecting refresh")
		}
		return "", m.refreshFailed(ctx, "", "", tokenError(err))
	}
	username, sid := claims.Subject, claims.SessionID

	rec, err := m.resolve(ctx, username)
	if err != nil {
		switch {
		case isStoreOutage(err):
			m.metrics.Inc(MetricUserStoreError)
			m.logger.Error(err, "user store unavailable", "username", username)
		case !errors.Is(err, userstore.ErrNotFound):
			m.logger.Error(err, "user record unusable", "username", username)
		}
		return "", m.refreshFailed(ctx, username, sid, ErrUnauthenticated)
	}
	if rec.Banned {
		return "", m.refreshFailed(ctx, username, sid, ErrUnauthenticated)
	}

	if m.config.Session.Enforce {
		s, err := m.sessions.GetSession(ctx, sid)
		switch {
		case err != nil:
			m.metrics.Inc(MetricSessionStoreError)
			m.logger.V(1).Info("session read failed, continuing", "username", username, "error", err.Error())
		case s == nil:
			return "", m.refreshFailed(ctx, username, sid, ErrUnauthenticated)
		}
	}

	user := m.buildUser(rec, sid)
	access, accessClaims, err := m.tokens.IssueAccess(user, sid)
	if err != nil {
		return "", m.refreshFailed(ctx, username, sid, err)
	}
	m.cache.SetUntil(access, user, accessClaims.ExpiresAt.Time)

	m.metrics.Inc(MetricRefreshSuccess)
	m.emitAudit(ctx, AuditRefreshSuccess, true, username, sid, nil, nil)
	return access, nil
}

func (m *Manager) refreshFailed(ctx context.Context, username, sid string, err error) error {
	m.metrics.Inc(MetricRefreshFailure)
	m.emitAudit(ctx, AuditRefreshInvalid, false, username, sid, err, nil)
	return err
}
