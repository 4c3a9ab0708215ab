package streamauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/streamauth/security"
	"github.com/MrEthical07/streamauth/userstore"
)

// Login checks credentials and starts a session. Every attempt counts
// against the login budget of its identifier; a successful login resets
// it. Unknown users, wrong passwords and banned accounts all yield
// ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}

	decision := m.guard.CheckLogin(ctx, security.Attempt{
		Username:  creds.Username,
		Password:  creds.Password,
		IP:        ClientIP(ctx),
		UserAgent: UserAgent(ctx),
	})
	if !decision.Allowed {
		switch decision.Reason {
		case security.ReasonRateLimited:
			m.metrics.Inc(MetricLoginRateLimited)
			err := &RateLimitError{RetryAfter: decision.RetryAfter}
			m.emitAudit(ctx, AuditLoginRateLimited, false, "", "", err, map[string]string{"identifier": decision.Identifier})
			return nil, err
		case security.ReasonInvalidInput:
			return nil, m.loginFailed(ctx, "", validationError(decision.Err))
		default:
			m.logger.Error(decision.Err, "login attempt state unavailable")
			return nil, m.loginFailed(ctx, "", fmt.Errorf("%w: %v", ErrStorage, decision.Err))
		}
	}
	username := decision.Username

	rec, err := m.resolve(ctx, username)
	switch {
	case err == nil:
	case isStoreOutage(err):
		m.metrics.Inc(MetricUserStoreError)
		m.logger.Error(err, "user store unavailable", "username", username)
		return nil, m.loginFailed(ctx, username, fmt.Errorf("%w: %v", ErrStorage, err))
	default:
		// Unknown users and records that cannot be decoded look the same to the caller.
		if !errors.Is(err, userstore.ErrNotFound) {
			m.logger.Error(err, "user record unusable", "username", username)
		}
		m.hasher.Burn(creds.Password)
		return nil, m.loginFailed(ctx, username, ErrInvalidCredentials)
	}

	ok, err := m.checkPassword(rec, creds.Password)
	if err != nil {
		m.logger.Error(err, "stored password unusable", "username", username)
	}
	if !ok || rec.Banned {
		return nil, m.loginFailed(ctx, username, ErrInvalidCredentials)
	}

	now := m.now()
	if !m.isOwner(rec.Username) {
		if err := m.users.UpdateLastLogin(ctx, rec.Username, now); err != nil {
			m.logger.Error(err, "last login update failed", "username", rec.Username)
		}
	}

	user := m.buildUser(rec, "")
	user.LoginTime = &now

	pair, err := m.tokens.Generate(ctx, user)
	if err != nil {
		return nil, m.loginFailed(ctx, username, err)
	}
	user.SessionID = pair.SessionID

	if err := m.sessions.SetSession(ctx, pair.SessionID, user, pair.RefreshExpiresAt.Sub(now)); err != nil {
		m.metrics.Inc(MetricSessionStoreError)
		if m.config.Session.Enforce {
			m.logger.Error(err, "session write failed", "username", username)
			return nil, m.loginFailed(ctx, username, fmt.Errorf("%w: %v", ErrStorage, err))
		}
		m.logger.V(1).Info("session write failed", "username", username, "error", err.Error())
	}

	m.cache.SetUntil(pair.AccessToken, user, pair.AccessExpiresAt)

	if err := m.guard.Reset(ctx, decision.Identifier); err != nil {
		m.logger.Error(err, "login attempt reset failed", "username", username)
	}

	m.metrics.Inc(MetricLoginSuccess)
	m.emitAudit(ctx, AuditLoginSuccess, true, user.Username, pair.SessionID, nil, nil)
	return &LoginResult{User: user.Clone(), Tokens: pair}, nil
}

// checkPassword compares in constant time. Only the owner may carry a
// plaintext password, taken from configuration.
func (m *Manager) checkPassword(rec *userstore.Record, password string) (bool, error) {
	if m.isOwner(rec.Username) {
		return m.hasher.Match(password, rec.PasswordHash)
	}
	ok, err := m.hasher.Verify(password, rec.PasswordHash)
	if err != nil {
		// Keep timing in line with a well formed hash.
		m.hasher.Burn(password)
		return false, err
	}
	return ok, nil
}

func (m *Manager) loginFailed(ctx context.Context, username string, err error) error {
	m.metrics.Inc(MetricLoginFailure)
	m.emitAudit(ctx, AuditLoginFailure, false, username, "", err, nil)
	return err
}
