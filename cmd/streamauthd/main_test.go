package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/streamauth/internal/envconfig"
	"github.com/MrEthical07/streamauth/password"
	"github.com/MrEthical07/streamauth/userstore"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHashPasswordPrintsVerifiableHash(t *testing.T) {
	out, err := execute(t, "s3cret-password\n", "hash-password")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	require.True(t, password.IsHash(hash), "got %q", hash)

	hasher, err := password.NewArgon2(password.DefaultConfig())
	require.NoError(t, err)
	ok, err := hasher.Verify("s3cret-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordRejectsEmptyInput(t *testing.T) {
	_, err := execute(t, "\n", "hash-password")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestLoadtestAgainstMiniredis(t *testing.T) {
	out, err := execute(t, "", "loadtest", "--users", "4", "--concurrency", "2", "--ops", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "using miniredis")
	assert.Contains(t, out, "authenticate: ops=20 failures=0")
	assert.Contains(t, out, "refresh: ops=20 failures=0")
}

func TestOpenUserStorePrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	doc := "users:\n  - username: alice\n    passwordHash: \"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g\"\n    role: user\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	src, err := openUserStore(context.Background(), &envconfig.Env{UsersFile: path, DatabaseURL: "postgres://ignored"}, logr.Discard())
	require.NoError(t, err)
	defer src.close()

	_, ok := src.store.(*userstore.File)
	assert.True(t, ok)
	assert.NotNil(t, src.watch)

	rec, err := src.store.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)
}

func TestOpenUserStoreDefaultsToMemory(t *testing.T) {
	src, err := openUserStore(context.Background(), &envconfig.Env{}, logr.Discard())
	require.NoError(t, err)
	_, ok := src.store.(*userstore.Memory)
	assert.True(t, ok)
	assert.Nil(t, src.watch)
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "info")
	log.V(1).Info("hidden")
	log.Info("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"app":"streamauthd"`)
}
