package telemetry

import (
	"context"
	"time"
)

// Event is a single telemetry event describing an auth or API action.
type Event struct {
	UserID    string
	SessionID string
	EventType string
	Source    string
	Metadata  string
	CreatedAt time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
