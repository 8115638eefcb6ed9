// Package recalc recomputes derived aggregates (budget spent totals, goal
// progress, net worth) from a change-set. Every recomputation is a full
// re-aggregation over the local store, never an incremental delta, so the
// engine converges even if a prior recalculation was interrupted.
package recalc

import (
	"context"
	"fmt"
	"time"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/interfaces"
	"github.com/mbaxter/finsync/internal/models"
)

// Service implements interfaces.Recalculator.
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
	now     func() time.Time
}

// NewService creates a new recalculation engine.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

type categoryKey struct {
	budgetID   string
	categoryID string
}

// Recalculate recomputes every aggregate whose inputs were touched by the
// change-set. Running it twice on the same change-set yields the same values.
func (s *Service) Recalculate(ctx context.Context, changeSet *models.ChangeSet) ([]models.AggregateResult, error) {
	if changeSet == nil || changeSet.Empty() {
		return nil, nil
	}

	budgets, goals, netWorth, err := s.affectedAggregates(ctx, changeSet)
	if err != nil {
		return nil, err
	}

	var results []models.AggregateResult

	for key := range budgets {
		result, err := s.recalculateBudgetCategory(ctx, key.budgetID, key.categoryID)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}

	for goalID := range goals {
		result, err := s.recalculateGoal(ctx, goalID)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}

	if netWorth {
		result, err := s.RecalculateNetWorth(ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, models.AggregateResult{Kind: "net_worth", Value: result.Total})
	}

	s.logger.Debug().
		Str("account", changeSet.AccountID).
		Int("aggregates", len(results)).
		Msg("Aggregates recalculated")

	return results, nil
}

// affectedAggregates maps the change-set to the budget categories, goals,
// and net-worth dependency that need recomputation.
func (s *Service) affectedAggregates(ctx context.Context, changeSet *models.ChangeSet) (map[categoryKey]bool, map[string]bool, bool, error) {
	budgets := make(map[categoryKey]bool)
	goals := make(map[string]bool)
	netWorth := false

	accountIDs := make(map[string]bool)

	for _, change := range changeSet.Changes {
		switch change.EntityType {
		case models.EntityTypeTransaction:
			if change.CategoryID != "" {
				covering, err := s.storage.BudgetStore().ListCovering(ctx, change.Date)
				if err != nil {
					return nil, nil, false, err
				}
				for _, b := range covering {
					if b.Category(change.CategoryID) != nil {
						budgets[categoryKey{budgetID: b.ID, categoryID: change.CategoryID}] = true
					}
				}
			}
			if change.AccountID != "" {
				accountIDs[change.AccountID] = true
			}
		case models.EntityTypeAccount:
			netWorth = true
			if change.AccountID != "" {
				accountIDs[change.AccountID] = true
			}
		case models.EntityTypeContribution:
			if change.GoalID != "" {
				goals[change.GoalID] = true
			}
		}
	}

	// Goals sourced from a touched account need their progress recomputed.
	for accountID := range accountIDs {
		linked, err := s.storage.GoalStore().ListBySourceAccount(ctx, accountID)
		if err != nil {
			return nil, nil, false, err
		}
		for _, g := range linked {
			goals[g.ID] = true
		}
	}

	return budgets, goals, netWorth, nil
}

// computeSpent re-aggregates the spent total for one budget category over
// the current transaction set. Outflows are stored as negative amounts, so
// spent is the negated sum; inflows (refunds) reduce it.
func (s *Service) computeSpent(ctx context.Context, budget *models.Budget, categoryID string) (models.Money, error) {
	matching, err := s.storage.TransactionStore().ListByCategoryPeriod(ctx, categoryID, budget.PeriodStart, budget.PeriodEnd)
	if err != nil {
		return 0, err
	}

	var sum models.Money
	for _, txn := range matching {
		if txn.Pending {
			continue
		}
		sum += txn.Amount
	}
	return -sum, nil
}

// recalculateBudgetCategory recomputes one category's spent total and status.
// A failed sanity check is retried once from a full re-scan; a second failure
// marks the aggregate stale and keeps the last-known-good value.
func (s *Service) recalculateBudgetCategory(ctx context.Context, budgetID, categoryID string) (*models.AggregateResult, error) {
	budget, err := s.storage.BudgetStore().Get(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	category := budget.Category(categoryID)
	if category == nil {
		return nil, fmt.Errorf("budget '%s' has no category '%s'", budgetID, categoryID)
	}

	spent, err := s.computeSpent(ctx, budget, categoryID)
	if err != nil {
		return nil, err
	}

	if invErr := checkSpent(budgetID, categoryID, spent); invErr != nil {
		s.logger.Warn().Err(invErr).Msg("Recalculation sanity check failed, retrying from full re-scan")

		spent, err = s.computeSpent(ctx, budget, categoryID)
		if err != nil {
			return nil, err
		}
		if invErr := checkSpent(budgetID, categoryID, spent); invErr != nil {
			// Exclude from display rather than show an incorrect number.
			s.logger.Error().Err(invErr).Msg("Recalculation sanity check failed twice, marking aggregate stale")
			category.Stale = true
			budget.Version++
			if err := s.storage.BudgetStore().Save(ctx, budget); err != nil {
				return nil, err
			}
			return &models.AggregateResult{
				Kind:       "budget_category",
				BudgetID:   budgetID,
				CategoryID: categoryID,
				Value:      category.Spent,
				Status:     category.Status,
				Stale:      true,
			}, nil
		}
	}

	status := models.BudgetCategoryStatus(spent, category.Allocated)

	if category.Spent != spent || category.Status != status || category.Stale {
		category.Spent = spent
		category.Status = status
		category.Stale = false
		budget.Version++
		if err := s.storage.BudgetStore().Save(ctx, budget); err != nil {
			return nil, err
		}
	}

	return &models.AggregateResult{
		Kind:       "budget_category",
		BudgetID:   budgetID,
		CategoryID: categoryID,
		Value:      spent,
		Status:     status,
	}, nil
}

func checkSpent(budgetID, categoryID string, spent models.Money) error {
	if spent < 0 {
		return &models.RecalculationInvariantError{
			Aggregate: fmt.Sprintf("budget %s category %s", budgetID, categoryID),
			Reason:    fmt.Sprintf("negative spent amount %d", spent),
		}
	}
	return nil
}

// computeGoalProgress re-derives a goal's current amount from its declared
// source: linked-account balance delta or the manual contribution records.
func (s *Service) computeGoalProgress(ctx context.Context, goal *models.Goal) (models.Money, error) {
	switch goal.Source {
	case models.GoalSourceAccount:
		account, err := s.storage.AccountStore().Get(ctx, goal.SourceAccountID)
		if err != nil {
			return 0, err
		}
		return account.Balance - goal.BaselineAmount, nil
	case models.GoalSourceManual:
		contributions, err := s.storage.GoalStore().ListContributions(ctx, goal.ID)
		if err != nil {
			return 0, err
		}
		var sum models.Money
		for _, c := range contributions {
			sum += c.Amount
		}
		return sum, nil
	default:
		return 0, fmt.Errorf("goal '%s' has unknown source '%s'", goal.ID, goal.Source)
	}
}

// recalculateGoal recomputes one goal's progress and status. CompletedAt is
// set the first time the goal completes and preserved on later runs with the
// same inputs.
func (s *Service) recalculateGoal(ctx context.Context, goalID string) (*models.AggregateResult, error) {
	goal, err := s.storage.GoalStore().Get(ctx, goalID)
	if err != nil {
		return nil, err
	}

	current, err := s.computeGoalProgress(ctx, goal)
	if err != nil {
		return nil, err
	}

	if current < 0 {
		s.logger.Warn().Str("goal", goalID).Int64("current", int64(current)).Msg("Goal progress sanity check failed, retrying from full re-scan")
		current, err = s.computeGoalProgress(ctx, goal)
		if err != nil {
			return nil, err
		}
		if current < 0 {
			s.logger.Error().Str("goal", goalID).Msg("Goal progress sanity check failed twice, marking aggregate stale")
			goal.Stale = true
			goal.Version++
			if err := s.storage.GoalStore().Save(ctx, goal); err != nil {
				return nil, err
			}
			return &models.AggregateResult{
				Kind:   "goal",
				GoalID: goalID,
				Value:  goal.CurrentAmount,
				Status: goal.Status,
				Stale:  true,
			}, nil
		}
	}

	status := models.GoalStatusFor(current, goal.TargetAmount, goal.StartDate, goal.TargetDate, s.now())

	changed := goal.CurrentAmount != current || goal.Status != status || goal.Stale
	goal.CurrentAmount = current
	goal.Status = status
	goal.Stale = false

	if status == models.GoalStatusCompleted && goal.CompletedAt == nil {
		completedAt := s.now()
		goal.CompletedAt = &completedAt
		changed = true
	}

	if changed {
		goal.Version++
		if err := s.storage.GoalStore().Save(ctx, goal); err != nil {
			return nil, err
		}
	}

	return &models.AggregateResult{
		Kind:   "goal",
		GoalID: goalID,
		Value:  current,
		Status: status,
	}, nil
}

// RecalculateBudget recomputes every category of one budget. Used when a
// budget definition is created or its allocations change.
func (s *Service) RecalculateBudget(ctx context.Context, budgetID string) ([]models.AggregateResult, error) {
	budget, err := s.storage.BudgetStore().Get(ctx, budgetID)
	if err != nil {
		return nil, err
	}

	var results []models.AggregateResult
	for _, category := range budget.Categories {
		result, err := s.recalculateBudgetCategory(ctx, budgetID, category.CategoryID)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// RecalculateGoal recomputes one goal's progress. Used when a goal is created
// or its definition changes.
func (s *Service) RecalculateGoal(ctx context.Context, goalID string) (*models.AggregateResult, error) {
	return s.recalculateGoal(ctx, goalID)
}

// RecalculateNetWorth derives net worth across all active accounts. The
// result is computed fresh each time and never stored as writable truth.
func (s *Service) RecalculateNetWorth(ctx context.Context) (*models.NetWorth, error) {
	accounts, err := s.storage.AccountStore().ListActive(ctx)
	if err != nil {
		return nil, err
	}

	nw := &models.NetWorth{
		ByAccount: make(map[string]models.Money, len(accounts)),
		AsOf:      s.now(),
	}
	for _, a := range accounts {
		contribution := a.Balance * a.NetWorthSign()
		nw.ByAccount[a.ID] = contribution
		nw.Total += contribution
	}
	return nw, nil
}

// Ensure Service implements Recalculator
var _ interfaces.Recalculator = (*Service)(nil)
