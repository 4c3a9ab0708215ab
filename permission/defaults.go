package permission

import "github.com/MrEthical07/streamauth/identity"

// AdminNamespace is reserved for admin and owner accounts.
const AdminNamespace = "admin"

func grant(resource string, actions ...identity.Action) identity.Permission {
	return identity.Permission{Resource: resource, Actions: actions}
}

// DefaultRoles returns a fresh copy of the built-in role grants.
func DefaultRoles() map[identity.Role][]identity.Permission {
	rw := []identity.Action{identity.ActionRead, identity.ActionWrite}
	crud := []identity.Action{identity.ActionRead, identity.ActionWrite, identity.ActionDelete}

	user := []identity.Permission{
		grant("favorites", rw...),
		grant("playrecords", rw...),
		grant("profile", rw...),
	}
	admin := append([]identity.Permission{
		grant("admin:*", rw...),
		grant("user:*", crud...),
		grant("config:*", rw...),
		grant("source:*", crud...),
		grant("cache:*", identity.ActionRead, identity.ActionDelete),
	}, user...)

	return map[identity.Role][]identity.Permission{
		identity.RoleUser:  user,
		identity.RoleAdmin: admin,
		identity.RoleOwner: {grant("*", identity.ActionManage)},
	}
}
