// Package userstore provides the authoritative user records consulted on
// every login and every authentication.
//
// Three implementations are included: Memory for tests and single-binary
// deployments, File which loads a YAML document and reloads it when the
// file changes, and SQL which reads a users table through database/sql.
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/streamauth/identity"
)

var (
	// ErrNotFound is returned when no record exists for a username.
	ErrNotFound = errors.New("user not found")
	// ErrUnavailable wraps failures of the backing store.
	ErrUnavailable = errors.New("user store unavailable")
)

// Record is one account as stored. Permissions are per-user overrides,
// merged with the role defaults at evaluation time.
type Record struct {
	Username          string                `json:"username" yaml:"username"`
	PasswordHash      string                `json:"passwordHash" yaml:"passwordHash"`
	Role              identity.Role         `json:"role" yaml:"role"`
	Permissions       []identity.Permission `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	PermissionVersion int                   `json:"permissionVersion" yaml:"permissionVersion"`
	Banned            bool                  `json:"banned" yaml:"banned"`
	Tags              []string              `json:"tags,omitempty" yaml:"tags,omitempty"`
	LastLogin         *time.Time            `json:"lastLogin,omitempty" yaml:"lastLogin,omitempty"`
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Permissions != nil {
		out.Permissions = make([]identity.Permission, len(r.Permissions))
		for i, p := range r.Permissions {
			out.Permissions[i] = p.Clone()
		}
	}
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.LastLogin != nil {
		t := *r.LastLogin
		out.LastLogin = &t
	}
	return &out
}

// Store is the narrow surface the auth manager needs: a read by username
// and a last-login stamp.
type Store interface {
	Lookup(ctx context.Context, username string) (*Record, error)
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
}
