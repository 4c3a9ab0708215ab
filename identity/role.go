package identity

import (
	"errors"
	"strings"
)

// Role is the closed account hierarchy. The zero value is invalid.
type Role uint8

const (
	roleInvalid Role = iota
	// RoleUser is the default account role.
	RoleUser
	// RoleAdmin manages users, sources and site configuration.
	RoleAdmin
	// RoleOwner is the single bootstrap account configured through the environment.
	RoleOwner
)

// ErrUnknownRole is returned by ParseRole for values outside the hierarchy.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole maps the persisted role name onto a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	case "owner":
		return RoleOwner, nil
	default:
		return roleInvalid, ErrUnknownRole
	}
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return "invalid"
	}
}

// Level is the ordinal used for hierarchy checks. Invalid roles have level 0.
func (r Role) Level() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleOwner:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r.Level() > 0
}

// AtLeast reports whether r sits at or above min in the hierarchy.
// An invalid role is never at least anything.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.Level() >= min.Level()
}

// MarshalText encodes the role by name so JSON and YAML stay readable.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
