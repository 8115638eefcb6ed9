package models

import "time"

// Budget category status values
const (
	BudgetStatusOK          = "ok"
	BudgetStatusApproaching = "approaching"
	BudgetStatusOverBudget  = "over_budget"
)

// approachingThreshold is the fraction of the allocation at which a category
// is flagged as approaching its limit.
const approachingThreshold = 0.8

// Budget represents a budgeting period with per-category allocations.
type Budget struct {
	ID          string           `json:"id" badgerhold:"key"`
	Name        string           `json:"name"`
	PeriodStart time.Time        `json:"period_start"`
	PeriodEnd   time.Time        `json:"period_end"`
	Categories  []BudgetCategory `json:"categories"`

	SyncMeta

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BudgetCategory is one allocation line within a budget. Spent is derived:
// it is only ever written by the recalculation engine, as a full re-aggregation
// over matching transactions, never patched incrementally.
type BudgetCategory struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Allocated  Money  `json:"allocated"`
	Spent      Money  `json:"spent"`
	Status     string `json:"status"`
	Stale      bool   `json:"stale"` // true when the last recalculation failed its sanity check
}

// CoversPeriod reports whether the budget period intersects the given date.
func (b *Budget) CoversPeriod(date time.Time) bool {
	if date.Before(b.PeriodStart) {
		return false
	}
	return !date.After(b.PeriodEnd)
}

// Category returns the category entry with the given ID, or nil.
func (b *Budget) Category(categoryID string) *BudgetCategory {
	for i := range b.Categories {
		if b.Categories[i].CategoryID == categoryID {
			return &b.Categories[i]
		}
	}
	return nil
}

// BudgetCategoryStatus derives the status of a category from the freshly
// computed spent amount. Status is a pure function of the numbers and never
// consults the previous status.
func BudgetCategoryStatus(spent, allocated Money) string {
	if allocated <= 0 {
		if spent > 0 {
			return BudgetStatusOverBudget
		}
		return BudgetStatusOK
	}
	if spent > allocated {
		return BudgetStatusOverBudget
	}
	if float64(spent) >= float64(allocated)*approachingThreshold {
		return BudgetStatusApproaching
	}
	return BudgetStatusOK
}
