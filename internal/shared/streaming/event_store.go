package streaming

import (
	"context"
	"time"
)

// EventStore persists realtime events for replay and audit. Store failures
// must never fail the operation that produced the event; callers log and
// continue.
type EventStore interface {
	// StoreEvent appends an event to its topic stream.
	StoreEvent(ctx context.Context, event RealtimeEvent) error

	// GetEventsSince retrieves events on a topic after a resume token.
	// An empty token reads from the beginning of the stream.
	GetEventsSince(ctx context.Context, topic string, resumeToken ResumeToken) ([]RealtimeEvent, error)

	// CleanupOldEvents trims streams beyond the retention window.
	CleanupOldEvents(ctx context.Context, retentionPeriod time.Duration) error

	// GetEventCount returns the approximate event count for a topic, or the
	// total across all topics when topic is empty.
	GetEventCount(topic string) int
}
