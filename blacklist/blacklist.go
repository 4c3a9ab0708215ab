// Package blacklist records revoked token identifiers on a storage backend.
//
// Lookups fail closed: when the backend cannot answer, the identifier is
// reported as blacklisted together with the error.
package blacklist

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MrEthical07/streamauth/storage"
)

const keyPrefix = "blacklist:"

// Entry is the stored marker for a revoked identifier.
type Entry struct {
	TokenID     string `json:"tokenId"`
	Blacklisted bool   `json:"blacklisted"`
	Timestamp   int64  `json:"timestamp"`
}

// Blacklist is safe for concurrent use.
type Blacklist struct {
	backend storage.Backend
	maxTTL  time.Duration
	now     func() time.Time
}

// New returns a Blacklist whose entries never outlive maxTTL, which should be
// the longest lifetime any token can have.
func New(backend storage.Backend, maxTTL time.Duration) *Blacklist {
	return &Blacklist{backend: backend, maxTTL: maxTTL, now: time.Now}
}

// TTL clamps ttl into (0, maxTTL]. Non-positive values mean maxTTL.
func (b *Blacklist) TTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || (b.maxTTL > 0 && ttl > b.maxTTL) {
		return b.maxTTL
	}
	return ttl
}

// Add revokes tokenID for ttl.
func (b *Blacklist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return errors.New("blacklist: token id required")
	}
	data, err := json.Marshal(Entry{TokenID: tokenID, Blacklisted: true, Timestamp: b.now().UnixMilli()})
	if err != nil {
		return err
	}
	return b.backend.Set(ctx, keyPrefix+tokenID, data, b.TTL(ttl))
}

// IsBlacklisted reports whether tokenID is revoked. Any backend failure
// returns true with the error.
func (b *Blacklist) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return true, errors.New("blacklist: token id required")
	}
	data, err := b.backend.Get(ctx, keyPrefix+tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return true, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// An unreadable marker still marks the id as revoked.
		return true, nil
	}
	return entry.Blacklisted, nil
}

// Remove lifts a revocation.
func (b *Blacklist) Remove(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	return b.backend.Delete(ctx, keyPrefix+tokenID)
}
