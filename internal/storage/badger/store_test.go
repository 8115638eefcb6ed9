package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAccountStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountStorage(store, common.NewSilentLogger())

	acct := &models.Account{
		ID:         "acct-1",
		ProviderID: "prov-acct-9",
		Name:       "Everyday",
		Type:       models.AccountTypeChecking,
		Balance:    125000,
		Currency:   "USD",
		IsActive:   true,
	}
	require.NoError(t, accounts.Save(ctx, acct))

	got, err := accounts.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, models.Money(125000), got.Balance)
	assert.False(t, got.CreatedAt.IsZero())

	byProv, err := accounts.GetByProviderID(ctx, "prov-acct-9")
	require.NoError(t, err)
	require.NotNil(t, byProv)
	assert.Equal(t, "acct-1", byProv.ID)

	missing, err := accounts.GetByProviderID(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = accounts.Get(ctx, "nope")
	assert.Error(t, err)
}

func TestAccountStorageListActive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountStorage(store, common.NewSilentLogger())

	require.NoError(t, accounts.Save(ctx, &models.Account{ID: "a1", IsActive: true}))
	require.NoError(t, accounts.Save(ctx, &models.Account{ID: "a2", IsActive: false}))
	require.NoError(t, accounts.Save(ctx, &models.Account{ID: "a3", IsActive: true}))

	active, err := accounts.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := accounts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTransactionCategoryPeriodScan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	txns := NewTransactionStorage(store, common.NewSilentLogger())

	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	seed := []*models.Transaction{
		{ID: "t1", AccountID: "a1", CategoryID: "dining", Amount: -4500, Date: day(5)},
		{ID: "t2", AccountID: "a1", CategoryID: "dining", Amount: -2000, Date: day(20)},
		{ID: "t3", AccountID: "a1", CategoryID: "transport", Amount: -900, Date: day(10)},
		{ID: "t4", AccountID: "a1", CategoryID: "dining", Amount: -3000, Date: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "t5", AccountID: "a1", CategoryID: "dining", Amount: -100, Date: day(15), Deleted: true},
	}
	for _, txn := range seed {
		require.NoError(t, txns.Save(ctx, txn))
	}

	got, err := txns.ListByCategoryPeriod(ctx, "dining", day(1), day(31))
	require.NoError(t, err)
	require.Len(t, got, 2, "outside-period, wrong-category and deleted rows excluded")

	var total models.Money
	for _, txn := range got {
		total += txn.Amount
	}
	assert.Equal(t, models.Money(-6500), total)
}

func TestTransactionListByAccountOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	txns := NewTransactionStorage(store, common.NewSilentLogger())

	require.NoError(t, txns.Save(ctx, &models.Transaction{ID: "old", AccountID: "a1", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, txns.Save(ctx, &models.Transaction{ID: "new", AccountID: "a1", Date: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, txns.Save(ctx, &models.Transaction{ID: "other", AccountID: "a2", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}))

	got, err := txns.ListByAccount(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID, "newest first")
}

func TestBudgetListCovering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	budgets := NewBudgetStorage(store, common.NewSilentLogger())

	march := &models.Budget{
		ID:          "b-march",
		Name:        "March",
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	april := &models.Budget{
		ID:          "b-april",
		Name:        "April",
		PeriodStart: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, budgets.Save(ctx, march))
	require.NoError(t, budgets.Save(ctx, april))

	got, err := budgets.ListCovering(ctx, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b-march", got[0].ID)
}

func TestGoalStorageAndContributions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	goals := NewGoalStorage(store, common.NewSilentLogger())

	goal := &models.Goal{
		ID:              "g1",
		Name:            "Emergency fund",
		TargetAmount:    100000,
		Source:          models.GoalSourceManual,
		SourceAccountID: "",
	}
	require.NoError(t, goals.Save(ctx, goal))

	linked := &models.Goal{
		ID:              "g2",
		Name:            "House deposit",
		TargetAmount:    5000000,
		Source:          models.GoalSourceAccount,
		SourceAccountID: "a1",
	}
	require.NoError(t, goals.Save(ctx, linked))

	byAccount, err := goals.ListBySourceAccount(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, "g2", byAccount[0].ID)

	require.NoError(t, goals.SaveContribution(ctx, &models.GoalContribution{ID: "c2", GoalID: "g1", Amount: 20000, Date: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, goals.SaveContribution(ctx, &models.GoalContribution{ID: "c1", GoalID: "g1", Amount: 10000, Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}))

	contributions, err := goals.ListContributions(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, contributions, 2)
	assert.Equal(t, "c1", contributions[0].ID, "oldest first")
}

func TestSaveReconciledBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	accounts := NewAccountStorage(store, common.NewSilentLogger())
	txns := NewTransactionStorage(store, common.NewSilentLogger())

	err := store.SaveReconciled(ctx,
		[]*models.Account{{ID: "a1", ProviderID: "pa-1", Balance: 125000, IsActive: true}},
		[]*models.Transaction{
			{ID: "t1", ProviderID: "pt-1", AccountID: "a1", Amount: -4500, Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
			{ID: "t2", ProviderID: "pt-2", AccountID: "a1", Amount: -2000, Date: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)},
		})
	require.NoError(t, err)

	acct, err := accounts.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.Money(125000), acct.Balance)
	assert.False(t, acct.CreatedAt.IsZero())

	got, err := txns.ListByAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// The indexed lookups see batch-written rows too.
	byProv, err := txns.GetByProviderID(ctx, "pt-2")
	require.NoError(t, err)
	require.NotNil(t, byProv)
	assert.Equal(t, "t2", byProv.ID)

	// An empty batch is a no-op.
	require.NoError(t, store.SaveReconciled(ctx, nil, nil))
}

func TestCursorStorage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	cursors := NewCursorStorage(store, common.NewSilentLogger())

	// Missing cursor is empty, not an error; the first pull starts from scratch.
	got, err := cursors.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	require.NoError(t, cursors.Set(ctx, "a1", "opaque-cursor-123"))
	got, err = cursors.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "opaque-cursor-123", got)

	require.NoError(t, cursors.Delete(ctx, "a1"))
	got, err = cursors.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	// Deleting a missing cursor is fine.
	require.NoError(t, cursors.Delete(ctx, "a1"))
}
