// Package session persists login sessions keyed by session id.
//
// # Architecture boundaries
//
// This package owns the [Storage] contract and its JSON record format. It
// does NOT interpret tokens, evaluate permissions or decide whether a read
// failure denies access; those belong to the auth manager.
//
// # What this package must NOT do
//
//   - Import streamauth, jwt or permission (no upward imports).
//   - Branch on the concrete storage backend.
//   - Store password hashes or raw tokens in session records.
package session
