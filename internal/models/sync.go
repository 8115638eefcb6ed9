package models

import "time"

// Sync state machine states, per account.
const (
	SyncStateIdle          = "idle"
	SyncStatePulling       = "pulling"
	SyncStateReconciling   = "reconciling"
	SyncStateRecalculating = "recalculating"
	SyncStateFailed        = "failed"
)

// Entity types carried in change-sets and events.
const (
	EntityTypeAccount      = "account"
	EntityTypeTransaction  = "transaction"
	EntityTypeBudget       = "budget"
	EntityTypeGoal         = "goal"
	EntityTypeContribution = "contribution"
)

// Change kinds.
const (
	ChangeKindCreated = "created"
	ChangeKindUpdated = "updated"
	ChangeKindDeleted = "deleted"
)

// Change is one entity mutation accepted by the reconciler. A change-set
// entry is emitted only when the merged state differs by value from the
// prior stored state.
type Change struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	AccountID  string    `json:"account_id,omitempty"`
	Kind       string    `json:"kind"`
	Version    int64     `json:"version"`
	Conflict   bool      `json:"conflict,omitempty"`
	CategoryID string    `json:"category_id,omitempty"` // transaction changes only
	Date       time.Time `json:"date,omitempty"`        // transaction changes only
	GoalID     string    `json:"goal_id,omitempty"`     // contribution changes only
}

// ChangeSet is the set of mutations produced by one reconcile cycle.
type ChangeSet struct {
	AccountID string   `json:"account_id"`
	Changes   []Change `json:"changes"`
	CreatedAt time.Time `json:"created_at"`
}

// Empty reports whether the change-set contains no mutations.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Changes) == 0
}

// Add appends a change to the set.
func (cs *ChangeSet) Add(c Change) {
	cs.Changes = append(cs.Changes, c)
}

// AggregateResult describes one recomputed aggregate.
type AggregateResult struct {
	Kind       string `json:"kind"` // "budget_category", "goal", "net_worth"
	BudgetID   string `json:"budget_id,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	GoalID     string `json:"goal_id,omitempty"`
	Value      Money  `json:"value"`
	Status     string `json:"status,omitempty"`
	Stale      bool   `json:"stale,omitempty"`
}

// SyncStatus is the externally visible state of one account's sync cycle.
type SyncStatus struct {
	AccountID    string    `json:"account_id"`
	State        string    `json:"state"`
	Pending      bool      `json:"pending"` // a coalesced follow-up sync is queued
	Paused       bool      `json:"paused"`  // relink required; sync paused until re-auth
	LastSyncedAt time.Time `json:"last_synced_at,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	Attempts     int       `json:"attempts,omitempty"`
	Stale        bool      `json:"stale"` // last-known-good data shown with staleness indicator
}

// SyncCursor stores the opaque provider continuation cursor per linked account.
// The cursor is persisted only after a fully committed reconcile round.
type SyncCursor struct {
	AccountID string    `json:"account_id" badgerhold:"key"`
	Cursor    string    `json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}
