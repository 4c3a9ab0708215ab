package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/streamauth"
	"github.com/MrEthical07/streamauth/identity"
)

// Authenticator is the part of *streamauth.Manager the guards use.
type Authenticator interface {
	Authenticate(r *http.Request) (*streamauth.AuthUser, error)
	HasPermissionContext(ctx context.Context, user *streamauth.AuthUser, resource string, action identity.Action) bool
}

// ErrorBody is the JSON shape of every rejection.
type ErrorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// User admits any authenticated user.
func User(a Authenticator) func(http.Handler) http.Handler {
	return requireRole(a, identity.RoleUser)
}

// Admin admits admins and the owner.
func Admin(a Authenticator) func(http.Handler) http.Handler {
	return requireRole(a, identity.RoleAdmin)
}

// Owner admits only the owner.
func Owner(a Authenticator) func(http.Handler) http.Handler {
	return requireRole(a, identity.RoleOwner)
}

// RequirePermission admits users granted action on resource.
func RequirePermission(a Authenticator, resource string, action identity.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, r, ok := authenticate(w, r, a)
			if !ok {
				return
			}
			if !a.HasPermissionContext(r.Context(), user, resource, action) {
				Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireRole(a Authenticator, min identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, r, ok := authenticate(w, r, a)
			if !ok {
				return
			}
			if !user.Role.AtLeast(min) {
				Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate returns the user already on the context or authenticates
// the request. On failure it has written the 401.
func authenticate(w http.ResponseWriter, r *http.Request, a Authenticator) (*streamauth.AuthUser, *http.Request, bool) {
	if user, ok := streamauth.AuthUserFromContext(r.Context()); ok {
		return user, r, true
	}
	if a == nil {
		Unauthorized(w)
		return nil, r, false
	}
	user, err := a.Authenticate(r)
	if err != nil || user == nil {
		Unauthorized(w)
		return nil, r, false
	}
	return user, r.WithContext(streamauth.WithAuthUser(r.Context(), user)), true
}

// Unauthorized writes the 401 body.
func Unauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, ErrorBody{Code: "unauthorized", Error: "authentication required"})
}

// Forbidden writes the 403 body for ErrInsufficientPermissions.
func Forbidden(w http.ResponseWriter) {
	err := streamauth.ErrInsufficientPermissions
	WriteJSON(w, streamauth.StatusCode(err), ErrorBody{Code: streamauth.ErrorCode(err), Error: err.Error()})
}

// WriteJSON encodes v with status. Encoding errors are dropped; the header
// has already been sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
