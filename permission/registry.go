package permission

import (
	"context"
	"errors"
	"sync"

	"github.com/MrEthical07/streamauth/identity"
)

// Predicate is a named custom condition. It must not block.
type Predicate func(ctx context.Context, user *identity.User, resource string, action identity.Action) bool

// Registry holds named predicates referenced by Conditions.Predicate.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
	frozen     bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{predicates: make(map[string]Predicate)}
}

// Register adds a predicate. Names are unique and registration fails once
// the registry is frozen.
func (r *Registry) Register(name string, fn Predicate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("predicate registry frozen")
	}
	if name == "" {
		return errors.New("predicate name cannot be empty")
	}
	if fn == nil {
		return errors.New("predicate cannot be nil")
	}
	if _, exists := r.predicates[name]; exists {
		return errors.New("predicate already registered: " + name)
	}
	r.predicates[name] = fn
	return nil
}

// Lookup returns the predicate registered under name.
func (r *Registry) Lookup(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.predicates[name]
	return fn, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Count returns the number of registered predicates.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.predicates)
}
