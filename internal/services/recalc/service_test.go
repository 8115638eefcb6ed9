package recalc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/models"
	"github.com/mbaxter/finsync/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Manager) {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()

	mgr, err := storage.NewManager(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	return NewService(mgr, common.NewSilentLogger()), mgr
}

func saveBudget(t *testing.T, mgr *storage.Manager, allocated models.Money) *models.Budget {
	t.Helper()
	budget := &models.Budget{
		ID:          "b1",
		Name:        "March",
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC),
		Categories: []models.BudgetCategory{
			{CategoryID: "dining", Name: "Dining", Allocated: allocated, Status: models.BudgetStatusOK},
		},
		SyncMeta: models.SyncMeta{Version: 1},
	}
	require.NoError(t, mgr.BudgetStore().Save(context.Background(), budget))
	return budget
}

func saveTxn(t *testing.T, mgr *storage.Manager, id string, amount models.Money, category string, day int) {
	t.Helper()
	require.NoError(t, mgr.TransactionStore().Save(context.Background(), &models.Transaction{
		ID:         id,
		ProviderID: "p-" + id,
		AccountID:  "a1",
		Amount:     amount,
		Date:       time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
		CategoryID: category,
		Provenance: models.ProvenanceRemote,
		SyncMeta:   models.SyncMeta{Version: 1},
	}))
}

func transactionChange(category string, day int) *models.ChangeSet {
	return &models.ChangeSet{
		AccountID: "a1",
		Changes: []models.Change{
			{
				EntityType: models.EntityTypeTransaction,
				EntityID:   "t1",
				AccountID:  "a1",
				Kind:       models.ChangeKindUpdated,
				CategoryID: category,
				Date:       time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestRecalculateBudgetCategoryApproaching(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)
	saveBudget(t, mgr, 10000)
	saveTxn(t, mgr, "t1", -4500, "dining", 10)
	saveTxn(t, mgr, "t2", -4000, "dining", 15)

	results, err := svc.Recalculate(ctx, transactionChange("dining", 10))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "budget_category", results[0].Kind)
	assert.Equal(t, models.Money(8500), results[0].Value)
	assert.Equal(t, models.BudgetStatusApproaching, results[0].Status)

	stored, err := mgr.BudgetStore().Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.Money(8500), stored.Categories[0].Spent)
	assert.Equal(t, models.BudgetStatusApproaching, stored.Categories[0].Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestRecalculateBudgetCategoryOverBudget(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)
	saveBudget(t, mgr, 10000)
	saveTxn(t, mgr, "t1", -10500, "dining", 10)

	results, err := svc.Recalculate(ctx, transactionChange("dining", 10))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.Money(10500), results[0].Value)
	assert.Equal(t, models.BudgetStatusOverBudget, results[0].Status)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)
	saveBudget(t, mgr, 10000)
	saveTxn(t, mgr, "t1", -4500, "dining", 10)

	first, err := svc.Recalculate(ctx, transactionChange("dining", 10))
	require.NoError(t, err)
	second, err := svc.Recalculate(ctx, transactionChange("dining", 10))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A no-change recomputation must not bump the budget version.
	stored, err := mgr.BudgetStore().Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}

func TestRecalculateExcludesPendingAndDeleted(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)
	saveBudget(t, mgr, 10000)
	saveTxn(t, mgr, "t1", -4500, "dining", 10)

	require.NoError(t, mgr.TransactionStore().Save(ctx, &models.Transaction{
		ID: "t2", ProviderID: "p-t2", AccountID: "a1", Amount: -2000,
		Date: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), CategoryID: "dining",
		Pending: true, SyncMeta: models.SyncMeta{Version: 1},
	}))
	require.NoError(t, mgr.TransactionStore().Save(ctx, &models.Transaction{
		ID: "t3", ProviderID: "p-t3", AccountID: "a1", Amount: -3000,
		Date: time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), CategoryID: "dining",
		Deleted: true, SyncMeta: models.SyncMeta{Version: 2},
	}))

	results, err := svc.Recalculate(ctx, transactionChange("dining", 10))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.Money(4500), results[0].Value)
}

func TestRecalculateOutsidePeriodIgnored(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)
	saveBudget(t, mgr, 10000)
	saveTxn(t, mgr, "t1", -4500, "dining", 10)

	// A change dated outside every budget period touches no category.
	cs := &models.ChangeSet{
		AccountID: "a1",
		Changes: []models.Change{
			{
				EntityType: models.EntityTypeTransaction,
				EntityID:   "t9",
				AccountID:  "a1",
				Kind:       models.ChangeKindCreated,
				CategoryID: "dining",
				Date:       time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	results, err := svc.Recalculate(ctx, cs)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecalculateNegativeSpentMarksStale(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)

	budget := saveBudget(t, mgr, 10000)
	budget.Categories[0].Spent = 4500
	budget.Categories[0].Status = models.BudgetStatusOK
	require.NoError(t, mgr.BudgetStore().Save(ctx, budget))

	// A refund larger than all spending drives the re-aggregated total negative.
	saveTxn(t, mgr, "t1", 6000, "dining", 10)

	results, err := svc.Recalculate(ctx, transactionChange("dining", 10))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Stale)
	// Last-known-good is kept, not overwritten with the bad value.
	assert.Equal(t, models.Money(4500), results[0].Value)

	stored, err := mgr.BudgetStore().Get(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, stored.Categories[0].Stale)
	assert.Equal(t, models.Money(4500), stored.Categories[0].Spent)
}

func TestRecalculateClearsStaleOnRecovery(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)

	budget := saveBudget(t, mgr, 10000)
	budget.Categories[0].Stale = true
	budget.Categories[0].Spent = 4500
	require.NoError(t, mgr.BudgetStore().Save(ctx, budget))
	saveTxn(t, mgr, "t1", -4500, "dining", 10)

	results, err := svc.Recalculate(ctx, transactionChange("dining", 10))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Stale)

	stored, err := mgr.BudgetStore().Get(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, stored.Categories[0].Stale)
}

func TestRecalculateGoalFromContributions(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)

	goal := &models.Goal{
		ID:           "g1",
		Name:         "Vacation",
		TargetAmount: 100000,
		StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TargetDate:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Source:       models.GoalSourceManual,
		SyncMeta:     models.SyncMeta{Version: 1},
	}
	require.NoError(t, mgr.GoalStore().Save(ctx, goal))
	require.NoError(t, mgr.GoalStore().SaveContribution(ctx, &models.GoalContribution{
		ID: "c1", GoalID: "g1", Amount: 40000, Date: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, mgr.GoalStore().SaveContribution(ctx, &models.GoalContribution{
		ID: "c2", GoalID: "g1", Amount: 25000, Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}))

	cs := &models.ChangeSet{
		Changes: []models.Change{
			{EntityType: models.EntityTypeContribution, EntityID: "c2", Kind: models.ChangeKindCreated, GoalID: "g1"},
		},
	}
	results, err := svc.Recalculate(ctx, cs)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "goal", results[0].Kind)
	assert.Equal(t, models.Money(65000), results[0].Value)

	stored, err := mgr.GoalStore().Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.Money(65000), stored.CurrentAmount)
	assert.Nil(t, stored.CompletedAt)
}

func TestRecalculateGoalFromAccountBalance(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)

	require.NoError(t, mgr.AccountStore().Save(ctx, &models.Account{
		ID: "a1", ProviderID: "pa-1", Type: models.AccountTypeSavings,
		Balance: 80000, IsActive: true, SyncMeta: models.SyncMeta{Version: 3},
	}))
	require.NoError(t, mgr.GoalStore().Save(ctx, &models.Goal{
		ID:              "g1",
		Name:            "Emergency fund",
		TargetAmount:    100000,
		Source:          models.GoalSourceAccount,
		SourceAccountID: "a1",
		BaselineAmount:  30000,
		SyncMeta:        models.SyncMeta{Version: 1},
	}))

	cs := &models.ChangeSet{
		AccountID: "a1",
		Changes: []models.Change{
			{EntityType: models.EntityTypeAccount, EntityID: "a1", AccountID: "a1", Kind: models.ChangeKindUpdated},
		},
	}
	results, err := svc.Recalculate(ctx, cs)
	require.NoError(t, err)

	var goalResult *models.AggregateResult
	for i := range results {
		if results[i].Kind == "goal" {
			goalResult = &results[i]
		}
	}
	require.NotNil(t, goalResult)
	assert.Equal(t, models.Money(50000), goalResult.Value)
}

func TestRecalculateGoalCompletedAtSetOnce(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)

	goal := &models.Goal{
		ID:           "g1",
		TargetAmount: 50000,
		Source:       models.GoalSourceManual,
		SyncMeta:     models.SyncMeta{Version: 1},
	}
	require.NoError(t, mgr.GoalStore().Save(ctx, goal))
	require.NoError(t, mgr.GoalStore().SaveContribution(ctx, &models.GoalContribution{
		ID: "c1", GoalID: "g1", Amount: 50000, Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}))

	cs := &models.ChangeSet{
		Changes: []models.Change{
			{EntityType: models.EntityTypeContribution, EntityID: "c1", Kind: models.ChangeKindCreated, GoalID: "g1"},
		},
	}
	_, err := svc.Recalculate(ctx, cs)
	require.NoError(t, err)

	stored, err := mgr.GoalStore().Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.GoalStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	completedAt := *stored.CompletedAt

	// Re-recalculating with the same inputs preserves the original timestamp.
	_, err = svc.Recalculate(ctx, cs)
	require.NoError(t, err)
	stored, err = mgr.GoalStore().Get(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, completedAt, *stored.CompletedAt)
}

func TestRecalculateNetWorth(t *testing.T) {
	ctx := context.Background()
	svc, mgr := newTestService(t)

	require.NoError(t, mgr.AccountStore().Save(ctx, &models.Account{
		ID: "a1", ProviderID: "pa-1", Type: models.AccountTypeChecking,
		Balance: 125000, IsActive: true, SyncMeta: models.SyncMeta{Version: 1},
	}))
	require.NoError(t, mgr.AccountStore().Save(ctx, &models.Account{
		ID: "a2", ProviderID: "pa-2", Type: models.AccountTypeCredit,
		Balance: 40000, IsActive: true, SyncMeta: models.SyncMeta{Version: 1},
	}))
	require.NoError(t, mgr.AccountStore().Save(ctx, &models.Account{
		ID: "a3", ProviderID: "pa-3", Type: models.AccountTypeSavings,
		Balance: 99999, IsActive: false, SyncMeta: models.SyncMeta{Version: 1},
	}))

	nw, err := svc.RecalculateNetWorth(ctx)
	require.NoError(t, err)

	// Credit balances subtract; unlinked accounts are excluded.
	assert.Equal(t, models.Money(85000), nw.Total)
	assert.Equal(t, models.Money(125000), nw.ByAccount["a1"])
	assert.Equal(t, models.Money(-40000), nw.ByAccount["a2"])
	_, present := nw.ByAccount["a3"]
	assert.False(t, present)
}

func TestRecalculateEmptyChangeSet(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	results, err := svc.Recalculate(ctx, &models.ChangeSet{AccountID: "a1"})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Recalculate(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
