// Package identity holds the value types shared by every layer: the
// authenticated user, the role hierarchy and permission grants.
//
// The package performs no I/O and imports nothing from this module.
package identity

import "time"

// User is the authenticated principal handed to request handlers.
// Username is the identity key. Role and permissions are always resolved
// from the authoritative user store, never trusted from token claims.
type User struct {
	Username          string       `json:"username"`
	Role              Role         `json:"role"`
	Permissions       []Permission `json:"permissions,omitempty"`
	LastActivity      time.Time    `json:"lastActivity"`
	LoginTime         *time.Time   `json:"loginTime,omitempty"`
	PermissionVersion int          `json:"permissionVersion"`
	Tags              []string     `json:"tags,omitempty"`
	SessionID         string       `json:"sessionId,omitempty"`
}

// Clone returns a deep copy so cached users cannot be mutated by callers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Permissions != nil {
		out.Permissions = make([]Permission, len(u.Permissions))
		for i, p := range u.Permissions {
			out.Permissions[i] = p.Clone()
		}
	}
	if u.LoginTime != nil {
		t := *u.LoginTime
		out.LoginTime = &t
	}
	if u.Tags != nil {
		out.Tags = append([]string(nil), u.Tags...)
	}
	return &out
}
