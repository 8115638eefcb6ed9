package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

type accountStorage struct {
	store  *Store
	logger *common.Logger
}

// NewAccountStorage creates a new AccountStore backed by BadgerHold.
func NewAccountStorage(store *Store, logger *common.Logger) *accountStorage {
	return &accountStorage{store: store, logger: logger}
}

func (s *accountStorage) Get(_ context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := s.store.db.Get(id, &account)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("account '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get account '%s': %w", id, err)
	}
	return &account, nil
}

func (s *accountStorage) GetByProviderID(_ context.Context, providerID string) (*models.Account, error) {
	var accounts []models.Account
	err := s.store.db.Find(&accounts, badgerhold.Where("ProviderID").Eq(providerID).Index("ProviderID"))
	if err != nil {
		return nil, fmt.Errorf("failed to query account by provider id '%s': %w", providerID, err)
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

func (s *accountStorage) Save(_ context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	if err := s.store.db.Upsert(account.ID, account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	s.logger.Debug().Str("id", account.ID).Int64("version", account.Version).Msg("Account saved")
	return nil
}

func (s *accountStorage) List(_ context.Context) ([]*models.Account, error) {
	var accounts []models.Account
	if err := s.store.db.Find(&accounts, nil); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	result := make([]*models.Account, len(accounts))
	for i := range accounts {
		result[i] = &accounts[i]
	}
	return result, nil
}

func (s *accountStorage) ListActive(_ context.Context) ([]*models.Account, error) {
	var accounts []models.Account
	if err := s.store.db.Find(&accounts, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}
	result := make([]*models.Account, len(accounts))
	for i := range accounts {
		result[i] = &accounts[i]
	}
	return result, nil
}
