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

type goalStorage struct {
	store  *Store
	logger *common.Logger
}

// NewGoalStorage creates a new GoalStore backed by BadgerHold.
func NewGoalStorage(store *Store, logger *common.Logger) *goalStorage {
	return &goalStorage{store: store, logger: logger}
}

func (s *goalStorage) Get(_ context.Context, id string) (*models.Goal, error) {
	var goal models.Goal
	err := s.store.db.Get(id, &goal)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("goal '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get goal '%s': %w", id, err)
	}
	return &goal, nil
}

func (s *goalStorage) Save(_ context.Context, goal *models.Goal) error {
	goal.UpdatedAt = time.Now()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now()
	}

	if err := s.store.db.Upsert(goal.ID, goal); err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	s.logger.Debug().Str("id", goal.ID).Str("status", goal.Status).Msg("Goal saved")
	return nil
}

func (s *goalStorage) List(_ context.Context) ([]*models.Goal, error) {
	var goals []models.Goal
	if err := s.store.db.Find(&goals, nil); err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	result := make([]*models.Goal, len(goals))
	for i := range goals {
		result[i] = &goals[i]
	}
	return result, nil
}

func (s *goalStorage) ListBySourceAccount(_ context.Context, accountID string) ([]*models.Goal, error) {
	var goals []models.Goal
	err := s.store.db.Find(&goals,
		badgerhold.Where("SourceAccountID").Eq(accountID).Index("SourceAccountID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list goals for account '%s': %w", accountID, err)
	}
	result := make([]*models.Goal, len(goals))
	for i := range goals {
		result[i] = &goals[i]
	}
	return result, nil
}

func (s *goalStorage) SaveContribution(_ context.Context, c *models.GoalContribution) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if err := s.store.db.Upsert(c.ID, c); err != nil {
		return fmt.Errorf("failed to save contribution: %w", err)
	}
	s.logger.Debug().Str("id", c.ID).Str("goal", c.GoalID).Msg("Contribution saved")
	return nil
}

func (s *goalStorage) ListContributions(_ context.Context, goalID string) ([]*models.GoalContribution, error) {
	var contributions []models.GoalContribution
	err := s.store.db.Find(&contributions,
		badgerhold.Where("GoalID").Eq(goalID).Index("GoalID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions for goal '%s': %w", goalID, err)
	}
	result := make([]*models.GoalContribution, len(contributions))
	for i := range contributions {
		result[i] = &contributions[i]
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}
