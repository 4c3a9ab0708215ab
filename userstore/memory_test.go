package userstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/streamauth/identity"
)

func TestMemoryLookupReturnsCopies(t *testing.T) {
	m := NewMemory(&Record{Username: "alice", Role: identity.RoleUser, Tags: []string{"a"}})

	r, err := m.Lookup(context.Background(), "alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	r.Tags[0] = "changed"
	r.Banned = true

	again, _ := m.Lookup(context.Background(), "alice")
	if again.Tags[0] != "a" || again.Banned {
		t.Fatal("lookup exposed internal state")
	}
	if _, err := m.Lookup(context.Background(), "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryMutations(t *testing.T) {
	m := NewMemory()
	if err := m.Put(&Record{Username: "alice", Role: identity.RoleUser}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Put(&Record{Username: "x"}); err == nil {
		t.Fatal("record without role accepted")
	}

	if err := m.SetRole("alice", identity.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if err := m.SetBanned("alice", true); err != nil {
		t.Fatalf("set banned: %v", err)
	}
	at := time.Unix(1_700_000_000, 0)
	if err := m.UpdateLastLogin(context.Background(), "alice", at); err != nil {
		t.Fatalf("update last login: %v", err)
	}

	r, _ := m.Lookup(context.Background(), "alice")
	if r.Role != identity.RoleAdmin || r.PermissionVersion != 1 || !r.Banned || !r.LastLogin.Equal(at) {
		t.Fatalf("unexpected record %+v", r)
	}

	if err := m.SetRole("ghost", identity.RoleUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	m.Delete("alice")
	if m.Len() != 0 {
		t.Fatal("delete left the record behind")
	}
}
