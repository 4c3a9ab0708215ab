package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/streamauth/identity"
)

const currentSchemaVersion = 1

// ErrCorrupt is returned when a stored session cannot be decoded.
var ErrCorrupt = errors.New("session: corrupt record")

type record struct {
	Version int            `json:"v"`
	User    *identity.User `json:"user"`
}

// Encode serializes u with a schema version header.
func Encode(u *identity.User) ([]byte, error) {
	if u == nil || u.Username == "" {
		return nil, errors.New("session: user with username required")
	}
	return json.Marshal(record{Version: currentSchemaVersion, User: u})
}

// Decode parses a record written by Encode. Unknown future versions are
// rejected rather than guessed at.
func Decode(data []byte) (*identity.User, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Version < 1 || rec.Version > currentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorrupt, rec.Version)
	}
	if rec.User == nil || rec.User.Username == "" {
		return nil, fmt.Errorf("%w: missing user", ErrCorrupt)
	}
	return rec.User, nil
}
