package models

import "time"

// Change event types broadcast to subscribers.
const (
	EventTypeEntityChanged = "entity_changed"
	EventTypeSyncState     = "sync_state"
)

// ChangeEvent is published for every accepted entity mutation and every
// recomputed aggregate. Delivery is at-least-once; consumers must be
// idempotent on (EntityID, Version) and re-fetch full entity state by ID
// rather than trusting embedded payloads.
type ChangeEvent struct {
	Type       string    `json:"type"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	AccountID  string    `json:"account_id,omitempty"`
	Version    int64     `json:"version,omitempty"`
	ChangeKind string    `json:"change_kind,omitempty"`
	SyncState  string    `json:"sync_state,omitempty"` // sync_state events only
	Timestamp  time.Time `json:"timestamp"`
}
