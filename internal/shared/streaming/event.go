package streaming

import "time"

// EventType defines the type of real-time event.
type EventType string

const (
	// EventTypeCreated signifies a new resource was created.
	EventTypeCreated EventType = "created"
	// EventTypeUpdated signifies an existing resource was updated.
	EventTypeUpdated EventType = "updated"
	// EventTypeDeleted signifies a resource was deleted.
	EventTypeDeleted EventType = "deleted"
)

// ResumeToken lets a consumer continue an event stream from a known
// position. Tokens are opaque; the event store assigns them.
type ResumeToken string

// RealtimeEvent represents a change on a subscription topic. Events are
// delivered to subscriber channels and over WebSocket frames, and persisted
// in the event store for replay.
type RealtimeEvent struct {
	// Type of the event (created, updated, deleted).
	Type EventType `json:"type"`

	// Topic is the subscription topic the event belongs to,
	// e.g. "profiles/user-123" or "files/user-123".
	Topic string `json:"topic"`

	// SubjectID is the resource identifier within the topic: the user ID for
	// profile events, the file ID for file events.
	SubjectID string `json:"subjectId"`

	// Data carries the resource snapshot associated with the event.
	// Deleted events may carry only identifying fields.
	Data map[string]interface{} `json:"data,omitempty"`

	// OldData carries the previous snapshot for update events.
	OldData map[string]interface{} `json:"oldData,omitempty"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// ResumeToken marks this event's position in the persisted stream.
	ResumeToken ResumeToken `json:"resumeToken,omitempty"`

	// SequenceNumber orders events within a topic.
	SequenceNumber int64 `json:"sequenceNumber,omitempty"`
}

// SubscriptionRequest represents a client subscription request sent over a
// WebSocket connection.
type SubscriptionRequest struct {
	// Action can be "subscribe", "unsubscribe" or "ping".
	Action string `json:"action"`

	// Topic is the subscription topic to listen to.
	Topic string `json:"topic"`
}
