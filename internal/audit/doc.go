// Package audit relays authentication events to a sink without blocking
// the request path.
//
// The dispatcher owns buffering, ULID assignment and delivery. Deciding
// which events to emit is left to the auth manager.
package audit
