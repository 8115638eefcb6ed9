// Package storage provides the top-level StorageManager over the BadgerHold
// local store.
package storage

import (
	"context"
	"fmt"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/interfaces"
	"github.com/mbaxter/finsync/internal/models"
	"github.com/mbaxter/finsync/internal/storage/badger"
)

// Manager implements interfaces.StorageManager over a single BadgerHold store.
type Manager struct {
	store        *badger.Store
	accounts     interfaces.AccountStore
	transactions interfaces.TransactionStore
	budgets      interfaces.BudgetStore
	goals        interfaces.GoalStore
	cursors      interfaces.CursorStore
	logger       *common.Logger
}

// NewManager opens the local store and wires the typed stores.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	logger.Info().Str("path", config.Storage.Path).Msg("Storage manager initialized")

	return &Manager{
		store:        store,
		accounts:     badger.NewAccountStorage(store, logger),
		transactions: badger.NewTransactionStorage(store, logger),
		budgets:      badger.NewBudgetStorage(store, logger),
		goals:        badger.NewGoalStorage(store, logger),
		cursors:      badger.NewCursorStorage(store, logger),
		logger:       logger,
	}, nil
}

func (m *Manager) AccountStore() interfaces.AccountStore {
	return m.accounts
}

func (m *Manager) TransactionStore() interfaces.TransactionStore {
	return m.transactions
}

func (m *Manager) BudgetStore() interfaces.BudgetStore {
	return m.budgets
}

func (m *Manager) GoalStore() interfaces.GoalStore {
	return m.goals
}

func (m *Manager) CursorStore() interfaces.CursorStore {
	return m.cursors
}

func (m *Manager) SaveReconciled(ctx context.Context, accounts []*models.Account, txns []*models.Transaction) error {
	return m.store.SaveReconciled(ctx, accounts, txns)
}

func (m *Manager) Close() error {
	return m.store.Close()
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
