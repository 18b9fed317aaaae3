// Package queue defines the side-effect messages emitted by state
// transitions and the broker plumbing that carries them. Transition
// correctness never depends on delivery: publishing is fire-and-forget
// and a reconciliation sweep repairs any drift.
package queue

// TransitionEvent is published whenever an entity changes state. It
// carries enough for downstream consumers (reporting, reliability
// scoring) to work without querying the primary database.
type TransitionEvent struct {
	EventID    string         `json:"event_id"`
	Entity     string         `json:"entity"` // reservation | waitlist_entry | quote_request | escrow_hold
	EntityID   uint64         `json:"entity_id"`
	Actor      string         `json:"actor"`
	Before     string         `json:"before"`
	After      string         `json:"after"`
	ResourceID uint64         `json:"resource_id,omitempty"`
	ConsumerID uint64         `json:"consumer_id,omitempty"`
	OperatorID uint64         `json:"operator_id,omitempty"`
	OccurredAt string         `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// NotificationEvent is an intended notification. The dispatcher consumer
// hands it to the platform notification service; delivery is best-effort
// and no result flows back into the engine.
type NotificationEvent struct {
	EventID       string         `json:"event_id"`
	RecipientType string         `json:"recipient_type"` // consumer | operator
	RecipientID   uint64         `json:"recipient_id"`
	Category      string         `json:"category"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Data          map[string]any `json:"data,omitempty"`
}

// Queue names. Durable, declared idempotently by both ends.
const (
	TransitionQueue   = "reservation.transition"
	NotificationQueue = "notification.dispatch"
)
