package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mbaxter/finsync/internal/models"
)

// GoalRequest is the body for POST /api/goals.
type GoalRequest struct {
	Name            string       `json:"name"`
	TargetAmount    models.Money `json:"target_amount"`
	TargetDate      string       `json:"target_date,omitempty"` // YYYY-MM-DD
	Source          string       `json:"source"`                // "account" or "manual"
	SourceAccountID string       `json:"source_account_id,omitempty"`
}

// ContributionRequest is the body for POST /api/goals/{id}/contributions.
type ContributionRequest struct {
	Amount models.Money `json:"amount"`
	Date   string       `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
}

// handleGoals handles GET /api/goals (list) and POST /api/goals (create).
func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		goals, err := s.app.Storage.GoalStore().List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, goals)
	case http.MethodPost:
		s.handleGoalCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleGoalCreate(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.TargetAmount <= 0 {
		WriteError(w, http.StatusBadRequest, "target_amount must be positive")
		return
	}
	if req.Source != models.GoalSourceAccount && req.Source != models.GoalSourceManual {
		WriteError(w, http.StatusBadRequest, "source must be 'account' or 'manual'")
		return
	}

	goal := &models.Goal{
		ID:           uuid.New().String(),
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		StartDate:    time.Now(),
		Source:       req.Source,
		Status:       models.GoalStatusNotStarted,
		SyncMeta:     models.SyncMeta{Version: 1},
	}

	if req.TargetDate != "" {
		targetDate, err := time.Parse("2006-01-02", req.TargetDate)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
			return
		}
		goal.TargetDate = targetDate
	}

	if req.Source == models.GoalSourceAccount {
		if req.SourceAccountID == "" {
			WriteError(w, http.StatusBadRequest, "source_account_id is required for account-sourced goals")
			return
		}
		account, err := s.app.Storage.AccountStore().Get(r.Context(), req.SourceAccountID)
		if err != nil {
			WriteError(w, http.StatusNotFound, "source account not found")
			return
		}
		goal.SourceAccountID = account.ID
		// Progress measures growth from the balance at link time.
		goal.BaselineAmount = account.Balance
	}

	if err := s.app.Storage.GoalStore().Save(r.Context(), goal); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := s.app.Recalc.RecalculateGoal(r.Context(), goal.ID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	created, err := s.app.Storage.GoalStore().Get(r.Context(), goal.ID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGoalGet(w http.ResponseWriter, r *http.Request, goalID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	goal, err := s.app.Storage.GoalStore().Get(r.Context(), goalID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "goal not found")
		return
	}
	WriteJSON(w, http.StatusOK, goal)
}

// handleGoalContribution handles POST /api/goals/{id}/contributions for
// manual-source goals.
func (s *Server) handleGoalContribution(w http.ResponseWriter, r *http.Request, goalID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ContributionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		WriteError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	contribution := &models.GoalContribution{
		ID:     uuid.New().String(),
		GoalID: goalID,
		Amount: req.Amount,
		Date:   date,
	}

	changeSet, err := s.app.Reconciler.ApplyContribution(r.Context(), contribution)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.app.ApplyLocal(r.Context(), changeSet); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	goal, err := s.app.Storage.GoalStore().Get(r.Context(), goalID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, goal)
}
