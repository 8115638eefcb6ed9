package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

type budgetStorage struct {
	store  *Store
	logger *common.Logger
}

// NewBudgetStorage creates a new BudgetStore backed by BadgerHold.
func NewBudgetStorage(store *Store, logger *common.Logger) *budgetStorage {
	return &budgetStorage{store: store, logger: logger}
}

func (s *budgetStorage) Get(_ context.Context, id string) (*models.Budget, error) {
	var budget models.Budget
	err := s.store.db.Get(id, &budget)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("budget '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get budget '%s': %w", id, err)
	}
	return &budget, nil
}

func (s *budgetStorage) Save(_ context.Context, budget *models.Budget) error {
	budget.UpdatedAt = time.Now()
	if budget.CreatedAt.IsZero() {
		budget.CreatedAt = time.Now()
	}

	if err := s.store.db.Upsert(budget.ID, budget); err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	s.logger.Debug().Str("id", budget.ID).Str("name", budget.Name).Msg("Budget saved")
	return nil
}

func (s *budgetStorage) List(_ context.Context) ([]*models.Budget, error) {
	var budgets []models.Budget
	if err := s.store.db.Find(&budgets, nil); err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	result := make([]*models.Budget, len(budgets))
	for i := range budgets {
		result[i] = &budgets[i]
	}
	return result, nil
}

func (s *budgetStorage) ListCovering(_ context.Context, date time.Time) ([]*models.Budget, error) {
	var budgets []models.Budget
	err := s.store.db.Find(&budgets,
		badgerhold.Where("PeriodStart").Le(date).And("PeriodEnd").Ge(date))
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets covering %s: %w", date.Format("2006-01-02"), err)
	}
	result := make([]*models.Budget, len(budgets))
	for i := range budgets {
		result[i] = &budgets[i]
	}
	return result, nil
}
