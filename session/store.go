package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/streamauth/identity"
	"github.com/MrEthical07/streamauth/storage"
)

const keyPrefix = "session:"

// Storage is the session contract the auth manager depends on.
// GetSession returns (nil, nil) for a missing or expired session.
type Storage interface {
	SetSession(ctx context.Context, id string, user *identity.User, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (*identity.User, error)
	DeleteSession(ctx context.Context, id string) error
	Cleanup(ctx context.Context) error
	Type() storage.Type
}

// Store implements Storage over any storage.Backend.
type Store struct {
	backend storage.Backend
}

var _ Storage = (*Store)(nil)

// NewStore returns a Store writing through backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) SetSession(ctx context.Context, id string, user *identity.User, ttl time.Duration) error {
	if id == "" {
		return errors.New("session: id required")
	}
	data, err := Encode(user)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, keyPrefix+id, data, ttl)
}

// GetSession loads a session. Backend failures are returned to the caller,
// which decides whether to fail open.
func (s *Store) GetSession(ctx context.Context, id string) (*identity.User, error) {
	if id == "" {
		return nil, nil
	}
	data, err := s.backend.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return Decode(data)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.backend.Delete(ctx, keyPrefix+id)
}

func (s *Store) Cleanup(ctx context.Context) error {
	return s.backend.Cleanup(ctx)
}

func (s *Store) Type() storage.Type {
	return s.backend.Type()
}
