package streamauth

import (
	"context"

	"github.com/MrEthical07/streamauth/identity"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type userContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Login uses it for
// rate limit identifiers and audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithAuthUser stores an authenticated user on ctx.
func WithAuthUser(ctx context.Context, user *identity.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// AuthUserFromContext returns the user stored by WithAuthUser.
func AuthUserFromContext(ctx context.Context) (*identity.User, bool) {
	if ctx == nil {
		return nil, false
	}
	u, ok := ctx.Value(userContextKey{}).(*identity.User)
	return u, ok && u != nil
}

// ClientIP returns the address stored by WithClientIP.
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// UserAgent returns the value stored by WithUserAgent.
func UserAgent(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentContextKey{}).(string)
	return ua
}
