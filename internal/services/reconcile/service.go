// Package reconcile merges provider snapshots and local edits into the local
// store through a single write path, producing change-sets for the
// recalculation engine.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/interfaces"
	"github.com/mbaxter/finsync/internal/models"
)

// Service implements interfaces.Reconciler.
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
	locks   *keyedMutex
}

// NewService creates a new reconciler.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		locks:   newKeyedMutex(),
	}
}

// pendingWrite is a staged mutation. Merging runs as a read-only phase so a
// cancelled reconcile discards everything instead of partially committing.
type pendingWrite struct {
	account *models.Account
	txn     *models.Transaction
	change  *models.Change
}

// ReconcileSnapshot merges a pulled snapshot into the store. The snapshot is
// expected to be the union of all pages of one pull; full marks a complete
// pull, which is the only time server-side deletes may be confirmed.
func (s *Service) ReconcileSnapshot(ctx context.Context, accountID string, snapshot *models.Snapshot, full bool) (*models.ChangeSet, error) {
	changeSet := &models.ChangeSet{AccountID: accountID, CreatedAt: time.Now()}

	accounts := s.storage.AccountStore()
	txns := s.storage.TransactionStore()

	var writes []pendingWrite

	// Phase 1: merge accounts.
	for _, pa := range snapshot.Accounts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reconcile cancelled: %w", err)
		}

		existing, err := accounts.GetByProviderID(ctx, pa.ID)
		if err != nil {
			return nil, err
		}

		if existing == nil {
			created := &models.Account{
				ID:            uuid.New().String(),
				ProviderID:    pa.ID,
				InstitutionID: accountID,
				Name:          pa.Name,
				Type:          pa.Type,
				Balance:       pa.Balance,
				Currency:      pa.Currency,
				IsActive:      true,
				SyncMeta: models.SyncMeta{
					Version:      1,
					LastSyncedAt: snapshot.Baseline,
				},
			}
			writes = append(writes, pendingWrite{
				account: created,
				change: &models.Change{
					EntityType: models.EntityTypeAccount,
					EntityID:   created.ID,
					AccountID:  created.ID,
					Kind:       models.ChangeKindCreated,
					Version:    created.Version,
				},
			})
			continue
		}

		if !snapshot.Baseline.IsZero() && snapshot.Baseline.Before(existing.LastSyncedAt) {
			// Out-of-order snapshot page; nothing newer to merge.
			continue
		}

		merged, changed, conflict := mergeAccount(existing, pa, snapshot.Baseline)
		if conflict {
			s.logger.Info().
				Str("account", existing.ID).
				Int("conflict_count", merged.ConflictCount).
				Msg("Conflict resolved on account merge")
		}
		if changed || conflict || existing.Dirty {
			w := pendingWrite{account: merged}
			if changed {
				w.change = &models.Change{
					EntityType: models.EntityTypeAccount,
					EntityID:   merged.ID,
					AccountID:  merged.ID,
					Kind:       models.ChangeKindUpdated,
					Version:    merged.Version,
					Conflict:   conflict,
				}
			}
			writes = append(writes, w)
		}
	}

	// Phase 2: merge transactions.
	seen := make(map[string]bool, len(snapshot.Transactions))
	for _, pt := range snapshot.Transactions {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reconcile cancelled: %w", err)
		}
		seen[pt.ID] = true

		existing, err := txns.GetByProviderID(ctx, pt.ID)
		if err != nil {
			return nil, err
		}

		if existing == nil {
			created := newRemoteTransaction(uuid.New().String(), s.localAccountID(ctx, pt.AccountID, accountID), pt, snapshot.Baseline)
			writes = append(writes, pendingWrite{
				txn: created,
				change: &models.Change{
					EntityType: models.EntityTypeTransaction,
					EntityID:   created.ID,
					AccountID:  created.AccountID,
					Kind:       models.ChangeKindCreated,
					Version:    created.Version,
					CategoryID: created.CategoryID,
					Date:       created.Date,
				},
			})
			continue
		}

		if !snapshot.Baseline.IsZero() && snapshot.Baseline.Before(existing.LastSyncedAt) {
			continue
		}

		result := mergeTransaction(existing, pt, snapshot.Baseline)
		if result.conflict {
			s.logger.Info().
				Str("transaction", existing.ID).
				Int("conflict_count", result.merged.ConflictCount).
				Msg("Conflict resolved on transaction merge")
		}
		if result.changed || result.conflict || existing.Dirty || existing.MissCount > 0 {
			w := pendingWrite{txn: result.merged}
			if result.changed {
				w.change = &models.Change{
					EntityType: models.EntityTypeTransaction,
					EntityID:   result.merged.ID,
					AccountID:  result.merged.AccountID,
					Kind:       models.ChangeKindUpdated,
					Version:    result.merged.Version,
					Conflict:   result.conflict,
					CategoryID: result.merged.CategoryID,
					Date:       result.merged.Date,
				}
			}
			writes = append(writes, w)
		}
	}

	// Phase 3: delete detection. Only a complete pull can confirm absence;
	// a single missed page must not.
	if full {
		deleteWrites, err := s.detectDeletes(ctx, accountID, seen)
		if err != nil {
			return nil, err
		}
		writes = append(writes, deleteWrites...)
	}

	// Commit phase. The staged writes land in one transaction, so a
	// cancellation or failure at any point discards all of them.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reconcile cancelled: %w", err)
	}
	var stagedAccounts []*models.Account
	var stagedTxns []*models.Transaction
	for _, w := range writes {
		if w.account != nil {
			stagedAccounts = append(stagedAccounts, w.account)
		}
		if w.txn != nil {
			stagedTxns = append(stagedTxns, w.txn)
		}
	}
	if err := s.storage.SaveReconciled(ctx, stagedAccounts, stagedTxns); err != nil {
		return nil, err
	}
	for _, w := range writes {
		if w.change != nil {
			changeSet.Add(*w.change)
		}
	}

	s.logger.Debug().
		Str("account", accountID).
		Int("changes", len(changeSet.Changes)).
		Bool("full", full).
		Msg("Snapshot reconciled")

	return changeSet, nil
}

// localAccountID resolves a provider account ID to the locally stored
// account ID, falling back to the sync target account.
func (s *Service) localAccountID(ctx context.Context, providerAccountID, fallback string) string {
	if providerAccountID == "" {
		return fallback
	}
	acct, err := s.storage.AccountStore().GetByProviderID(ctx, providerAccountID)
	if err != nil || acct == nil {
		return fallback
	}
	return acct.ID
}

// detectDeletes increments the miss counter for stored remote transactions
// the full pull did not return, and confirms a delete after two consecutive
// misses.
func (s *Service) detectDeletes(ctx context.Context, accountID string, seen map[string]bool) ([]pendingWrite, error) {
	stored, err := s.storage.TransactionStore().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var writes []pendingWrite
	for _, txn := range stored {
		if txn.Provenance != models.ProvenanceRemote || txn.Deleted {
			continue
		}
		if seen[txn.ProviderID] {
			continue
		}

		missed := *txn
		missed.MissCount = txn.MissCount + 1
		if missed.MissCount >= 2 {
			missed.Deleted = true
			missed.Version = txn.Version + 1
			writes = append(writes, pendingWrite{
				txn: &missed,
				change: &models.Change{
					EntityType: models.EntityTypeTransaction,
					EntityID:   missed.ID,
					AccountID:  missed.AccountID,
					Kind:       models.ChangeKindDeleted,
					Version:    missed.Version,
					CategoryID: missed.CategoryID,
					Date:       missed.Date,
				},
			})
			s.logger.Info().
				Str("transaction", missed.ID).
				Msg("Transaction absent across two full pulls, confirmed deleted")
		} else {
			writes = append(writes, pendingWrite{txn: &missed})
		}
	}
	return writes, nil
}

// ApplyTransactionEdit is the local-edit fast path for the user-editable
// fields. The edit is applied immediately under the entity lock and becomes
// visible to the next pull's conflict resolution.
func (s *Service) ApplyTransactionEdit(ctx context.Context, txnID, categoryID, description string) (*models.ChangeSet, error) {
	unlock := s.locks.Lock("txn:" + txnID)
	defer unlock()

	txns := s.storage.TransactionStore()
	existing, err := txns.Get(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if existing.Deleted {
		return nil, fmt.Errorf("transaction '%s' is deleted", txnID)
	}

	edited := *existing
	if categoryID != "" {
		edited.CategoryID = categoryID
	}
	if description != "" {
		edited.Description = description
	}

	changeSet := &models.ChangeSet{AccountID: existing.AccountID, CreatedAt: time.Now()}
	if edited.ValueEqual(existing) {
		return changeSet, nil
	}

	edited.Version = existing.Version + 1
	edited.Dirty = true
	edited.LocalEditedAt = time.Now()

	if err := txns.Save(ctx, &edited); err != nil {
		return nil, err
	}

	changeSet.Add(models.Change{
		EntityType: models.EntityTypeTransaction,
		EntityID:   edited.ID,
		AccountID:  edited.AccountID,
		Kind:       models.ChangeKindUpdated,
		Version:    edited.Version,
		CategoryID: edited.CategoryID,
		Date:       edited.Date,
	})

	// The edit may move the transaction out of a budget category; that
	// category must be re-aggregated too.
	if existing.CategoryID != edited.CategoryID {
		changeSet.Add(models.Change{
			EntityType: models.EntityTypeTransaction,
			EntityID:   edited.ID,
			AccountID:  edited.AccountID,
			Kind:       models.ChangeKindUpdated,
			Version:    edited.Version,
			CategoryID: existing.CategoryID,
			Date:       edited.Date,
		})
	}

	return changeSet, nil
}

// ApplyManualTransaction records a manually entered transaction as a
// one-record change-set.
func (s *Service) ApplyManualTransaction(ctx context.Context, txn *models.Transaction) (*models.ChangeSet, error) {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}

	unlock := s.locks.Lock("txn:" + txn.ID)
	defer unlock()

	txn.Provenance = models.ProvenanceManual
	txn.Version = 1
	txn.Dirty = true
	txn.LocalEditedAt = time.Now()

	if err := s.storage.TransactionStore().Save(ctx, txn); err != nil {
		return nil, err
	}

	changeSet := &models.ChangeSet{AccountID: txn.AccountID, CreatedAt: time.Now()}
	changeSet.Add(models.Change{
		EntityType: models.EntityTypeTransaction,
		EntityID:   txn.ID,
		AccountID:  txn.AccountID,
		Kind:       models.ChangeKindCreated,
		Version:    txn.Version,
		CategoryID: txn.CategoryID,
		Date:       txn.Date,
	})
	return changeSet, nil
}

// ApplyContribution records a manual goal contribution.
func (s *Service) ApplyContribution(ctx context.Context, c *models.GoalContribution) (*models.ChangeSet, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	unlock := s.locks.Lock("goal:" + c.GoalID)
	defer unlock()

	goal, err := s.storage.GoalStore().Get(ctx, c.GoalID)
	if err != nil {
		return nil, err
	}
	if goal.Source != models.GoalSourceManual {
		return nil, fmt.Errorf("goal '%s' derives progress from its linked account, not manual contributions", c.GoalID)
	}

	c.Version = 1
	c.Dirty = true
	c.LocalEditedAt = time.Now()

	if err := s.storage.GoalStore().SaveContribution(ctx, c); err != nil {
		return nil, err
	}

	changeSet := &models.ChangeSet{CreatedAt: time.Now()}
	changeSet.Add(models.Change{
		EntityType: models.EntityTypeContribution,
		EntityID:   c.ID,
		Kind:       models.ChangeKindCreated,
		Version:    c.Version,
		GoalID:     c.GoalID,
	})
	return changeSet, nil
}

// Ensure Service implements Reconciler
var _ interfaces.Reconciler = (*Service)(nil)
