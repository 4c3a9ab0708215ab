package userstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/streamauth/identity"
)

// Schema is the table SQL expects. permissions and tags hold JSON arrays.
const Schema = `create table if not exists auth_users (
	username           text primary key,
	password_hash      text not null,
	role               text not null,
	permissions        text not null default '[]',
	permission_version integer not null default 0,
	banned             boolean not null default false,
	tags               text not null default '[]',
	last_login         timestamptz
)`

const (
	lookupQuery    = `select username, password_hash, role, permissions, permission_version, banned, tags, last_login from auth_users where username = $1`
	lastLoginQuery = `update auth_users set last_login = $2 where username = $1`
)

// SQL reads records from a PostgreSQL auth_users table.
type SQL struct {
	db *sql.DB
}

// OpenSQL opens dsn with the pgx driver.
func OpenSQL(dsn string) (*SQL, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewSQL(db), nil
}

// NewSQL wraps an existing handle.
func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// Migrate creates the table when missing.
func (s *SQL) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQL) Lookup(ctx context.Context, username string) (*Record, error) {
	var (
		r           Record
		role        string
		permissions string
		tags        string
		lastLogin   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, lookupQuery, username).Scan(
		&r.Username, &r.PasswordHash, &role, &permissions, &r.PermissionVersion, &r.Banned, &tags, &lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if r.Role, err = identity.ParseRole(role); err != nil {
		return nil, fmt.Errorf("userstore: user %q: %w", username, err)
	}
	if err := decodeJSONColumn(permissions, &r.Permissions); err != nil {
		return nil, fmt.Errorf("userstore: user %q permissions: %w", username, err)
	}
	if err := decodeJSONColumn(tags, &r.Tags); err != nil {
		return nil, fmt.Errorf("userstore: user %q tags: %w", username, err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		r.LastLogin = &t
	}
	return &r, nil
}

func decodeJSONColumn(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func (s *SQL) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, lastLoginQuery, username, at)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying handle.
func (s *SQL) Close() error {
	return s.db.Close()
}
