package userstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/streamauth/identity"
)

const usersYAML = `users:
  - username: alice
    passwordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA"
    role: user
    tags: [vip]
    permissions:
      - resource: "source:*"
        actions: [read]
  - username: ops
    passwordHash: x
    role: admin
    banned: true
`

func writeUsers(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write users file: %v", err)
	}
}

func TestOpenFileParsesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeUsers(t, path, usersYAML)

	f, err := OpenFile(path, FileOptions{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("expected 2 users, got %d", f.Len())
	}

	alice, err := f.Lookup(context.Background(), "alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if alice.Role != identity.RoleUser || len(alice.Permissions) != 1 || alice.Permissions[0].Actions[0] != identity.ActionRead {
		t.Fatalf("unexpected record %+v", alice)
	}
	ops, _ := f.Lookup(context.Background(), "ops")
	if !ops.Banned || ops.Role != identity.RoleAdmin {
		t.Fatalf("unexpected record %+v", ops)
	}
}

func TestOpenFileRejectsInvalidDocuments(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"unknown role":  "users:\n  - username: a\n    role: root\n",
		"missing role":  "users:\n  - username: a\n",
		"duplicate":     "users:\n  - username: a\n    role: user\n  - username: a\n    role: user\n",
		"unknown field": "users:\n  - username: a\n    role: user\n    shoe: 9\n",
		"no username":   "users:\n  - role: user\n",
	} {
		path := filepath.Join(dir, "users.yaml")
		writeUsers(t, path, body)
		if _, err := OpenFile(path, FileOptions{}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := OpenFile(filepath.Join(dir, "missing.yaml"), FileOptions{}); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestReloadKeepsLastLoginAndPreviousRecordsOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeUsers(t, path, usersYAML)
	f, err := OpenFile(path, FileOptions{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	at := time.Unix(1_700_000_000, 0)
	if err := f.UpdateLastLogin(context.Background(), "alice", at); err != nil {
		t.Fatalf("update last login: %v", err)
	}

	writeUsers(t, path, "users: [")
	if err := f.Reload(); err == nil {
		t.Fatal("broken document accepted")
	}
	if f.Len() != 2 {
		t.Fatal("failed reload dropped records")
	}

	writeUsers(t, path, "users:\n  - username: alice\n    passwordHash: x\n    role: admin\n")
	if err := f.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	alice, _ := f.Lookup(context.Background(), "alice")
	if alice.Role != identity.RoleAdmin || alice.LastLogin == nil || !alice.LastLogin.Equal(at) {
		t.Fatalf("unexpected record after reload %+v", alice)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeUsers(t, path, usersYAML)
	f, err := OpenFile(path, FileOptions{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Watch(ctx) }()
	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	writeUsers(t, path, "users:\n  - username: alice\n    passwordHash: x\n    role: user\n    banned: true\n")

	deadline := time.Now().Add(5 * time.Second)
	for {
		r, err := f.Lookup(context.Background(), "alice")
		if err == nil && r.Banned && f.Len() == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watch did not reload the file")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}
