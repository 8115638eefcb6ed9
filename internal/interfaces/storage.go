// Package interfaces defines service contracts for finsync
package interfaces

import (
	"context"
	"time"

	"github.com/mbaxter/finsync/internal/models"
)

// StorageManager coordinates the typed stores over the local database.
// The local store is the single source of truth; no component outside the
// reconciler writes provider-authoritative fields.
type StorageManager interface {
	AccountStore() AccountStore
	TransactionStore() TransactionStore
	BudgetStore() BudgetStore
	GoalStore() GoalStore
	CursorStore() CursorStore

	// SaveReconciled commits the accounts and transactions staged by one
	// reconcile round in a single transaction. A failure mid-batch commits
	// nothing.
	SaveReconciled(ctx context.Context, accounts []*models.Account, txns []*models.Transaction) error

	Close() error
}

// AccountStore persists linked accounts.
type AccountStore interface {
	Get(ctx context.Context, id string) (*models.Account, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
	List(ctx context.Context) ([]*models.Account, error)
	ListActive(ctx context.Context) ([]*models.Account, error)
}

// TransactionStore persists transactions and supports the scans the
// recalculation engine needs for full re-aggregation.
type TransactionStore interface {
	Get(ctx context.Context, id string) (*models.Transaction, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.Transaction, error)
	Save(ctx context.Context, txn *models.Transaction) error
	ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error)
	// ListByCategoryPeriod returns non-deleted transactions whose category
	// matches and whose date falls inside [start, end].
	ListByCategoryPeriod(ctx context.Context, categoryID string, start, end time.Time) ([]*models.Transaction, error)
}

// BudgetStore persists budgets.
type BudgetStore interface {
	Get(ctx context.Context, id string) (*models.Budget, error)
	Save(ctx context.Context, budget *models.Budget) error
	List(ctx context.Context) ([]*models.Budget, error)
	// ListCovering returns budgets whose period contains the given date.
	ListCovering(ctx context.Context, date time.Time) ([]*models.Budget, error)
}

// GoalStore persists goals and manual contributions.
type GoalStore interface {
	Get(ctx context.Context, id string) (*models.Goal, error)
	Save(ctx context.Context, goal *models.Goal) error
	List(ctx context.Context) ([]*models.Goal, error)
	ListBySourceAccount(ctx context.Context, accountID string) ([]*models.Goal, error)

	SaveContribution(ctx context.Context, c *models.GoalContribution) error
	ListContributions(ctx context.Context, goalID string) ([]*models.GoalContribution, error)
}

// CursorStore persists the opaque provider pull cursor per linked account.
type CursorStore interface {
	Get(ctx context.Context, accountID string) (string, error) // "" when no cursor stored
	Set(ctx context.Context, accountID, cursor string) error
	Delete(ctx context.Context, accountID string) error
}
