package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Event is one security relevant occurrence. ID is a ULID assigned by the
// dispatcher, so events sort by creation time.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Username  string            `json:"username,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives dispatched events. Emit runs on the dispatcher goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	mu     sync.Mutex
	writer io.Writer
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// LogrSink logs each event as a structured info line.
type LogrSink struct {
	log logr.Logger
}

func NewLogrSink(log logr.Logger) *LogrSink {
	return &LogrSink{log: log.WithName("audit")}
}

func (s *LogrSink) Emit(_ context.Context, e Event) {
	kv := []any{
		"id", e.ID,
		"type", e.EventType,
		"success", e.Success,
	}
	if e.Username != "" {
		kv = append(kv, "username", e.Username)
	}
	if e.SessionID != "" {
		kv = append(kv, "sid", e.SessionID)
	}
	if e.IP != "" {
		kv = append(kv, "ip", e.IP)
	}
	if e.Error != "" {
		kv = append(kv, "reason", e.Error)
	}
	for k, v := range e.Metadata {
		kv = append(kv, k, v)
	}
	s.log.Info("auth event", kv...)
}
