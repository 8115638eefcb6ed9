package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mbaxter/finsync/internal/models"
)

// EditTransactionRequest is the body for PATCH /api/transactions/{id}.
// Only the user-authoritative fields are editable.
type EditTransactionRequest struct {
	CategoryID  *string `json:"category_id,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CreateTransactionRequest is the body for POST /api/transactions.
type CreateTransactionRequest struct {
	AccountID   string       `json:"account_id"`
	Amount      models.Money `json:"amount"`
	Date        string       `json:"date"` // YYYY-MM-DD
	CategoryID  string       `json:"category_id"`
	Description string       `json:"description"`
}

// handleTransactionByID handles GET and PATCH on /api/transactions/{id}.
func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	txnID := PathParam(r, "/api/transactions/", "")
	if txnID == "" {
		WriteError(w, http.StatusBadRequest, "transaction id is required in path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleTransactionGet(w, r, txnID)
	case http.MethodPatch:
		s.handleTransactionEdit(w, r, txnID)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (s *Server) handleTransactionGet(w http.ResponseWriter, r *http.Request, txnID string) {
	txn, err := s.app.Storage.TransactionStore().Get(r.Context(), txnID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "transaction not found")
		return
	}
	WriteJSON(w, http.StatusOK, txn)
}

// handleTransactionEdit applies a local edit to the user-authoritative
// fields. The write lands immediately and aggregates recompute before the
// response returns; the edit is confirmed against provider data on the next
// sync round.
func (s *Server) handleTransactionEdit(w http.ResponseWriter, r *http.Request, txnID string) {
	var req EditTransactionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.CategoryID == nil && req.Description == nil {
		WriteError(w, http.StatusBadRequest, "category_id or description is required")
		return
	}

	existing, err := s.app.Storage.TransactionStore().Get(r.Context(), txnID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "transaction not found")
		return
	}

	categoryID := existing.CategoryID
	if req.CategoryID != nil {
		categoryID = *req.CategoryID
	}
	description := existing.Description
	if req.Description != nil {
		description = *req.Description
	}

	changeSet, err := s.app.Reconciler.ApplyTransactionEdit(r.Context(), txnID, categoryID, description)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.app.ApplyLocal(r.Context(), changeSet); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := s.app.Storage.TransactionStore().Get(r.Context(), txnID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// handleTransactionCreate handles POST /api/transactions for manually
// entered transactions on accounts the provider does not cover.
func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req CreateTransactionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		WriteError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if _, err := s.app.Storage.AccountStore().Get(r.Context(), req.AccountID); err != nil {
		WriteError(w, http.StatusNotFound, "account not found")
		return
	}

	txn := &models.Transaction{
		ID:          uuid.New().String(),
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Date:        date,
		CategoryID:  req.CategoryID,
		Description: req.Description,
	}

	changeSet, err := s.app.Reconciler.ApplyManualTransaction(r.Context(), txn)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.app.ApplyLocal(r.Context(), changeSet); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, txn)
}
