// Package token issues, verifies, refreshes and revokes token pairs.
//
// Verification always checks the signature; there is no unverified path.
// Revocation is recorded by token id (jti) for single tokens and by session
// id (sid) for a whole login session.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/streamauth/blacklist"
	"github.com/MrEthical07/streamauth/identity"
	"github.com/MrEthical07/streamauth/jwt"
	"github.com/google/uuid"
)

var errNoBlacklist = errors.New("token: blacklist not configured")

var (
	// ErrInvalid covers malformed, forged and wrongly typed tokens.
	ErrInvalid = jwt.ErrInvalid
	// ErrExpired is returned for tokens past exp.
	ErrExpired = jwt.ErrExpired
	// ErrRevoked is returned for blacklisted tokens, and when the blacklist
	// cannot be consulted.
	ErrRevoked = errors.New("token revoked")
)

// Pair is the result of a login.
type Pair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	SessionID        string    `json:"-"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// Service is safe for concurrent use.
type Service struct {
	signer    *jwt.Manager
	blacklist *blacklist.Blacklist
	now       func() time.Time
	newID     func() string
}

// NewService wires a signer to a blacklist. now may be nil.
func NewService(signer *jwt.Manager, bl *blacklist.Blacklist, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{signer: signer, blacklist: bl, now: now, newID: uuid.NewString}
}

// Generate starts a new login session for user and signs its token pair.
func (s *Service) Generate(ctx context.Context, user *identity.User) (Pair, error) {
	if user == nil || user.Username == "" {
		return Pair{}, errors.New("token: user required")
	}
	sid := s.newID()

	access, accessClaims, err := s.create(jwt.TypeAccess, user, sid)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshClaims, err := s.create(jwt.TypeRefresh, user, sid)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sid,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// IssueAccess signs a fresh access token inside an existing session.
func (s *Service) IssueAccess(user *identity.User, sessionID string) (string, *jwt.Claims, error) {
	if user == nil || user.Username == "" || sessionID == "" {
		return "", nil, errors.New("token: user and session id required")
	}
	return s.create(jwt.TypeAccess, user, sessionID)
}

func (s *Service) create(typ jwt.Type, user *identity.User, sid string) (string, *jwt.Claims, error) {
	return s.signer.Create(typ, user.Username, user.Role.String(), identity.Strings(user.Permissions), sid, s.newID())
}

// VerifyClaims checks signature, type and expiry, then consults the
// blacklist for both the token id and its session id.
func (s *Service) VerifyClaims(ctx context.Context, raw string, expected jwt.Type) (*jwt.Claims, error) {
	claims, err := s.signer.Parse(raw, expected)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) checkRevoked(ctx context.Context, claims *jwt.Claims) error {
	if s.blacklist == nil {
		return nil
	}
	for _, id := range [...]string{claims.ID, claims.SessionID} {
		revoked, err := s.blacklist.IsBlacklisted(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRevoked, err)
		}
		if revoked {
			return ErrRevoked
		}
	}
	return nil
}

// Verify returns the user snapshot carried by a valid access token.
// The role and permissions in it are advisory.
func (s *Service) Verify(ctx context.Context, raw string) (*identity.User, error) {
	claims, err := s.VerifyClaims(ctx, raw, jwt.TypeAccess)
	if err != nil {
		return nil, err
	}
	return UserFromClaims(claims), nil
}

// Refresh mints a new access token from a refresh token. The refresh token
// itself is never renewed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.VerifyClaims(ctx, refreshToken, jwt.TypeRefresh)
	if err != nil {
		return "", err
	}
	access, _, err := s.IssueAccess(UserFromClaims(claims), claims.SessionID)
	return access, err
}

// Revoke blacklists a single token until it would have expired anyway.
// Revoking an already expired token is a no-op.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	if s.blacklist == nil {
		return errNoBlacklist
	}
	claims, err := s.signer.ParseAllowExpired(raw)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return ErrInvalid
	}
	remaining := claims.ExpiresAt.Time.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	return s.blacklist.Add(ctx, claims.ID, remaining)
}

// RevokeSession blacklists every token of a login session, including access
// tokens minted later by refresh.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	if s.blacklist == nil {
		return errNoBlacklist
	}
	return s.blacklist.Add(ctx, sessionID, s.signer.TTL(jwt.TypeRefresh))
}

// Inspect verifies the signature of raw without checking expiry or the
// blacklist. Logout uses it to find the session of an expired token.
func (s *Service) Inspect(raw string) (*jwt.Claims, error) {
	return s.signer.ParseAllowExpired(raw)
}

// TTL exposes the configured lifetime of a token type.
func (s *Service) TTL(typ jwt.Type) time.Duration {
	return s.signer.TTL(typ)
}

// UserFromClaims rebuilds the advisory user snapshot embedded in claims.
func UserFromClaims(claims *jwt.Claims) *identity.User {
	role, _ := identity.ParseRole(claims.Role)
	u := &identity.User{
		Username:  claims.Subject,
		Role:      role,
		SessionID: claims.SessionID,
	}
	if claims.IssuedAt != nil {
		u.LastActivity = claims.IssuedAt.Time
	}
	u.Permissions = parsePermissionStrings(claims.Permissions)
	return u
}

func parsePermissionStrings(values []string) []identity.Permission {
	if len(values) == 0 {
		return nil
	}
	index := make(map[string]int, len(values))
	var out []identity.Permission
	for _, v := range values {
		i := strings.LastIndexByte(v, ':')
		if i <= 0 || i == len(v)-1 {
			continue
		}
		action, err := identity.ParseAction(v[i+1:])
		if err != nil {
			continue
		}
		resource := v[:i]
		if pos, ok := index[resource]; ok {
			out[pos].Actions = append(out[pos].Actions, action)
			continue
		}
		index[resource] = len(out)
		out = append(out, identity.Permission{Resource: resource, Actions: []identity.Action{action}})
	}
	return out
}
