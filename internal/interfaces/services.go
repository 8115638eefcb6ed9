package interfaces

import (
	"context"

	"github.com/mbaxter/finsync/internal/models"
)

// Reconciler merges provider snapshots and local edits into the local store
// through a single write path, producing change-sets.
type Reconciler interface {
	// ReconcileSnapshot merges one pulled snapshot page into the store.
	// full marks the final page of a complete pull, which is when
	// server-side deletes can be confirmed.
	ReconcileSnapshot(ctx context.Context, accountID string, snapshot *models.Snapshot, full bool) (*models.ChangeSet, error)

	// ApplyTransactionEdit is the local-edit fast path: the user-editable
	// fields (category, description) are written immediately under the
	// entity lock, marked dirty, and flow into the same recalculation and
	// notification path as pulled data.
	ApplyTransactionEdit(ctx context.Context, txnID, categoryID, description string) (*models.ChangeSet, error)

	// ApplyManualTransaction records a manually entered transaction as a
	// one-record change-set.
	ApplyManualTransaction(ctx context.Context, txn *models.Transaction) (*models.ChangeSet, error)

	// ApplyContribution records a manual goal contribution.
	ApplyContribution(ctx context.Context, c *models.GoalContribution) (*models.ChangeSet, error)
}

// Recalculator recomputes every derived aggregate whose inputs were touched
// by a change-set. Recalculation is idempotent and always a full
// re-aggregation, never an incremental delta.
type Recalculator interface {
	Recalculate(ctx context.Context, changeSet *models.ChangeSet) ([]models.AggregateResult, error)
}

// SyncService orchestrates the pull→reconcile→recalculate→notify cycle.
type SyncService interface {
	// Trigger requests a sync for the account. Idempotent: a trigger while
	// a sync is in flight coalesces into at most one pending follow-up.
	Trigger(ctx context.Context, accountID string) (*models.SyncStatus, error)

	// Status returns the account's current sync state.
	Status(ctx context.Context, accountID string) (*models.SyncStatus, error)

	// Resume clears a relink pause after the user re-authenticates.
	Resume(ctx context.Context, accountID string) error

	// Unlink cancels any in-flight sync and stops tracking the account.
	Unlink(ctx context.Context, accountID string) error

	Start()
	Stop()
}

// Notifier publishes change events to external consumers. Delivery is
// at-least-once; ordering is guaranteed within a single account's stream,
// monotonic by version.
type Notifier interface {
	Publish(event models.ChangeEvent)
	Subscribe(filter NotifyFilter) (<-chan models.ChangeEvent, func())
}

// NotifyFilter restricts a subscription to particular entities. Zero value
// subscribes to everything.
type NotifyFilter struct {
	AccountID string
	BudgetID  string
	GoalID    string
}
