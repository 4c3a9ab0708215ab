package streamauth

import (
	"github.com/MrEthical07/streamauth/identity"
	"github.com/MrEthical07/streamauth/token"
	"github.com/MrEthical07/streamauth/userstore"
)

// AuthUser is the authenticated principal handed to request handlers.
type AuthUser = identity.User

// Role is the account role. Values outside user, admin and owner are invalid.
type Role = identity.Role

const (
	RoleUser  = identity.RoleUser
	RoleAdmin = identity.RoleAdmin
	RoleOwner = identity.RoleOwner
)

// Permission and Action alias the identity types so callers need a single import.
type (
	Permission = identity.Permission
	Action     = identity.Action
)

// TokenPair is returned by Login.
type TokenPair = token.Pair

// UserStore is the authoritative source of accounts. Manager reads it on
// every authentication.
type UserStore = userstore.Store

// UserRecord is one row of a UserStore.
type UserRecord = userstore.Record

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	User   *AuthUser `json:"user"`
	Tokens TokenPair `json:"tokens"`
}
