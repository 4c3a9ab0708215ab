package streamauth

import (
	"context"
	"io"

	"github.com/go-logr/logr"

	internalaudit "github.com/MrEthical07/streamauth/internal/audit"
)

// Audit event types emitted by Manager.
const (
	AuditLoginSuccess     = "login_success"
	AuditLoginFailure     = "login_failure"
	AuditLoginRateLimited = "login_rate_limited"
	AuditLogout           = "logout"
	AuditForceLogout      = "force_logout"
	AuditTokenRevoked     = "token_revoked"
	AuditRefreshSuccess   = "refresh_success"
	AuditRefreshInvalid   = "refresh_invalid"
)

// AuditEvent is one security relevant occurrence.
type AuditEvent = internalaudit.Event

// AuditSink receives events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

type JSONWriterSink = internalaudit.JSONWriterSink

type LogrSink = internalaudit.LogrSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogrSink(log logr.Logger) *LogrSink {
	return internalaudit.NewLogrSink(log)
}

func (m *Manager) emitAudit(ctx context.Context, eventType string, success bool, username, sessionID string, err error, metadata map[string]string) {
	if m.audit == nil {
		return
	}
	ev := AuditEvent{
		EventType: eventType,
		Username:  username,
		SessionID: sessionID,
		IP:        ClientIP(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		ev.Error = ErrorCode(err)
	}
	m.audit.Emit(ctx, ev)
}
