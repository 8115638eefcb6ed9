package models

import "time"

// Goal status values
const (
	GoalStatusNotStarted = "not_started"
	GoalStatusInProgress = "in_progress"
	GoalStatusOnTrack    = "on_track"
	GoalStatusAtRisk     = "at_risk"
	GoalStatusCompleted  = "completed"
)

// Goal source values. Each goal derives CurrentAmount from exactly one source.
const (
	GoalSourceAccount = "account" // linked-account balance
	GoalSourceManual  = "manual"  // manual contribution records
)

// atRiskFraction is the share of expected pace below which a goal with a
// target date is flagged at risk.
const atRiskFraction = 0.9

// Goal represents a savings goal. CurrentAmount is derived from the goal's
// declared source by the recalculation engine, never summed from stale deltas.
type Goal struct {
	ID              string     `json:"id" badgerhold:"key"`
	Name            string     `json:"name"`
	TargetAmount    Money      `json:"target_amount"`
	TargetDate      time.Time  `json:"target_date,omitempty"`
	StartDate       time.Time  `json:"start_date"`
	CurrentAmount   Money      `json:"current_amount"`
	Source          string     `json:"source"`                    // "account" or "manual"
	BaselineAmount  Money      `json:"baseline_amount,omitempty"` // account balance when the goal was linked; progress is the delta above it
	SourceAccountID string     `json:"source_account_id,omitempty" badgerhold:"index"`
	Status          string     `json:"status"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Stale           bool       `json:"stale"`

	SyncMeta

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GoalContribution is a manual contribution toward a manual-source goal.
type GoalContribution struct {
	ID     string    `json:"id" badgerhold:"key"`
	GoalID string    `json:"goal_id" badgerhold:"index"`
	Amount Money     `json:"amount"`
	Date   time.Time `json:"date"`

	SyncMeta

	CreatedAt time.Time `json:"created_at"`
}

// GoalStatusFor derives a goal's status from the freshly computed current
// amount. Like budget status, it is a pure function of the numbers.
func GoalStatusFor(current, target Money, start, targetDate, now time.Time) string {
	if target > 0 && current >= target {
		return GoalStatusCompleted
	}
	if current <= 0 {
		return GoalStatusNotStarted
	}
	if targetDate.IsZero() || start.IsZero() || !targetDate.After(start) {
		return GoalStatusInProgress
	}
	if now.Before(start) {
		return GoalStatusInProgress
	}

	elapsed := now.Sub(start)
	window := targetDate.Sub(start)
	fraction := float64(elapsed) / float64(window)
	if fraction > 1 {
		fraction = 1
	}

	expected := float64(target) * fraction
	if float64(current) >= expected*atRiskFraction {
		return GoalStatusOnTrack
	}
	return GoalStatusAtRisk
}
