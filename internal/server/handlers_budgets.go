package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mbaxter/finsync/internal/models"
)

// BudgetCategoryRequest is one allocation line in a budget request.
type BudgetCategoryRequest struct {
	CategoryID string       `json:"category_id"`
	Name       string       `json:"name"`
	Allocated  models.Money `json:"allocated"`
}

// BudgetRequest is the body for POST /api/budgets and PUT /api/budgets/{id}.
type BudgetRequest struct {
	Name        string                  `json:"name"`
	PeriodStart string                  `json:"period_start"` // YYYY-MM-DD
	PeriodEnd   string                  `json:"period_end"`   // YYYY-MM-DD
	Categories  []BudgetCategoryRequest `json:"categories"`
}

// handleBudgets handles GET /api/budgets (list) and POST /api/budgets (create).
func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		budgets, err := s.app.Storage.BudgetStore().List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, budgets)
	case http.MethodPost:
		s.handleBudgetCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleBudgetByID handles GET and PUT on /api/budgets/{id}.
func (s *Server) handleBudgetByID(w http.ResponseWriter, r *http.Request) {
	budgetID := PathParam(r, "/api/budgets/", "")
	if budgetID == "" {
		WriteError(w, http.StatusBadRequest, "budget id is required in path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		budget, err := s.app.Storage.BudgetStore().Get(r.Context(), budgetID)
		if err != nil {
			WriteError(w, http.StatusNotFound, "budget not found")
			return
		}
		WriteJSON(w, http.StatusOK, budget)
	case http.MethodPut:
		s.handleBudgetUpdate(w, r, budgetID)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut)
	}
}

func parseBudgetRequest(w http.ResponseWriter, r *http.Request) (*BudgetRequest, time.Time, time.Time, bool) {
	var req BudgetRequest
	if !DecodeJSON(w, r, &req) {
		return nil, time.Time{}, time.Time{}, false
	}
	start, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "period_start must be YYYY-MM-DD")
		return nil, time.Time{}, time.Time{}, false
	}
	end, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "period_end must be YYYY-MM-DD")
		return nil, time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		WriteError(w, http.StatusBadRequest, "period_end is before period_start")
		return nil, time.Time{}, time.Time{}, false
	}
	if len(req.Categories) == 0 {
		WriteError(w, http.StatusBadRequest, "at least one category is required")
		return nil, time.Time{}, time.Time{}, false
	}
	return &req, start, end, true
}

func (s *Server) handleBudgetCreate(w http.ResponseWriter, r *http.Request) {
	req, start, end, ok := parseBudgetRequest(w, r)
	if !ok {
		return
	}

	budget := &models.Budget{
		ID:          uuid.New().String(),
		Name:        req.Name,
		PeriodStart: start,
		PeriodEnd:   end,
		SyncMeta:    models.SyncMeta{Version: 1},
	}
	for _, c := range req.Categories {
		budget.Categories = append(budget.Categories, models.BudgetCategory{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Allocated:  c.Allocated,
			Status:     models.BudgetStatusOK,
		})
	}

	if err := s.app.Storage.BudgetStore().Save(r.Context(), budget); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Populate spent totals from existing transactions before responding.
	if _, err := s.app.Recalc.RecalculateBudget(r.Context(), budget.ID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	created, err := s.app.Storage.BudgetStore().Get(r.Context(), budget.ID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// handleBudgetUpdate replaces the user-authoritative budget definition. The
// derived spent totals are recomputed, never taken from the request.
func (s *Server) handleBudgetUpdate(w http.ResponseWriter, r *http.Request, budgetID string) {
	req, start, end, ok := parseBudgetRequest(w, r)
	if !ok {
		return
	}

	budget, err := s.app.Storage.BudgetStore().Get(r.Context(), budgetID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "budget not found")
		return
	}

	budget.Name = req.Name
	budget.PeriodStart = start
	budget.PeriodEnd = end

	categories := make([]models.BudgetCategory, 0, len(req.Categories))
	for _, c := range req.Categories {
		category := models.BudgetCategory{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Allocated:  c.Allocated,
			Status:     models.BudgetStatusOK,
		}
		if prev := budget.Category(c.CategoryID); prev != nil {
			category.Spent = prev.Spent
			category.Status = prev.Status
			category.Stale = prev.Stale
		}
		categories = append(categories, category)
	}
	budget.Categories = categories
	budget.Version++

	if err := s.app.Storage.BudgetStore().Save(r.Context(), budget); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := s.app.Recalc.RecalculateBudget(r.Context(), budgetID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := s.app.Storage.BudgetStore().Get(r.Context(), budgetID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// handleNetWorth handles GET /api/networth. The aggregate is derived fresh
// on each request.
func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	nw, err := s.app.Recalc.RecalculateNetWorth(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, nw)
}
