package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

type transactionStorage struct {
	store  *Store
	logger *common.Logger
}

// NewTransactionStorage creates a new TransactionStore backed by BadgerHold.
func NewTransactionStorage(store *Store, logger *common.Logger) *transactionStorage {
	return &transactionStorage{store: store, logger: logger}
}

func (s *transactionStorage) Get(_ context.Context, id string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.store.db.Get(id, &txn)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("transaction '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get transaction '%s': %w", id, err)
	}
	return &txn, nil
}

func (s *transactionStorage) GetByProviderID(_ context.Context, providerID string) (*models.Transaction, error) {
	var txns []models.Transaction
	err := s.store.db.Find(&txns, badgerhold.Where("ProviderID").Eq(providerID).Index("ProviderID"))
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction by provider id '%s': %w", providerID, err)
	}
	if len(txns) == 0 {
		return nil, nil
	}
	return &txns[0], nil
}

func (s *transactionStorage) Save(_ context.Context, txn *models.Transaction) error {
	txn.UpdatedAt = time.Now()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	if err := s.store.db.Upsert(txn.ID, txn); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	s.logger.Debug().
		Str("id", txn.ID).
		Str("account", txn.AccountID).
		Int64("version", txn.Version).
		Msg("Transaction saved")
	return nil
}

func (s *transactionStorage) ListByAccount(_ context.Context, accountID string) ([]*models.Transaction, error) {
	var txns []models.Transaction
	err := s.store.db.Find(&txns, badgerhold.Where("AccountID").Eq(accountID).Index("AccountID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for account '%s': %w", accountID, err)
	}
	result := make([]*models.Transaction, len(txns))
	for i := range txns {
		result[i] = &txns[i]
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	return result, nil
}

func (s *transactionStorage) ListByCategoryPeriod(_ context.Context, categoryID string, start, end time.Time) ([]*models.Transaction, error) {
	var txns []models.Transaction
	err := s.store.db.Find(&txns,
		badgerhold.Where("CategoryID").Eq(categoryID).Index("CategoryID").
			And("Deleted").Eq(false).
			And("Date").Ge(start).
			And("Date").Le(end))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for category '%s': %w", categoryID, err)
	}
	result := make([]*models.Transaction, len(txns))
	for i := range txns {
		result[i] = &txns[i]
	}
	return result, nil
}
