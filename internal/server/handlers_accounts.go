package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mbaxter/finsync/internal/models"
)

// LinkAccountRequest is the body for POST /api/accounts.
type LinkAccountRequest struct {
	ProviderID    string `json:"provider_id"`
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Currency      string `json:"currency"`
}

// handleAccounts handles GET /api/accounts (list) and POST /api/accounts (link).
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleAccountList(w, r)
	case http.MethodPost:
		s.handleAccountLink(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.app.Storage.AccountStore().ListActive(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, accounts)
}

// handleAccountLink registers a provider account for syncing. The first sync
// is triggered immediately; data arrives asynchronously.
func (s *Server) handleAccountLink(w http.ResponseWriter, r *http.Request) {
	var req LinkAccountRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.ProviderID == "" {
		WriteError(w, http.StatusBadRequest, "provider_id is required")
		return
	}

	existing, err := s.app.Storage.AccountStore().GetByProviderID(r.Context(), req.ProviderID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing != nil && existing.IsActive {
		WriteError(w, http.StatusConflict, "provider account is already linked")
		return
	}

	account := existing
	if account == nil {
		account = &models.Account{
			ID:         uuid.New().String(),
			ProviderID: req.ProviderID,
		}
	}
	account.InstitutionID = req.InstitutionID
	if req.Name != "" {
		account.Name = req.Name
	}
	if req.Type != "" {
		account.Type = req.Type
	}
	if req.Currency != "" {
		account.Currency = req.Currency
	}
	account.IsActive = true
	account.Version++

	if err := s.app.Storage.AccountStore().Save(r.Context(), account); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := s.app.Sync.Trigger(r.Context(), account.ID); err != nil {
		s.logger.Warn().Err(err).Str("account", account.ID).Msg("Initial sync trigger failed")
	}

	s.logger.Info().Str("account", account.ID).Str("provider_id", req.ProviderID).Msg("Account linked")
	WriteJSON(w, http.StatusCreated, account)
}

func (s *Server) handleAccountGet(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	account, err := s.app.Storage.AccountStore().Get(r.Context(), accountID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "account not found")
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

// handleAccountUnlink handles POST /api/accounts/{id}/unlink. The account is
// soft-deleted; its transactions and history remain readable.
func (s *Server) handleAccountUnlink(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.app.Sync.Unlink(r.Context(), accountID); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "unlinked"})
}

// handleAccountTransactions handles GET /api/accounts/{id}/transactions.
func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if _, err := s.app.Storage.AccountStore().Get(r.Context(), accountID); err != nil {
		WriteError(w, http.StatusNotFound, "account not found")
		return
	}

	txns, err := s.app.Storage.TransactionStore().ListByAccount(r.Context(), accountID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Deleted transactions stay in the store for audit but are not listed.
	visible := make([]*models.Transaction, 0, len(txns))
	for _, txn := range txns {
		if !txn.Deleted {
			visible = append(visible, txn)
		}
	}
	WriteJSON(w, http.StatusOK, visible)
}

// handleSyncTrigger handles POST /api/accounts/{id}/sync.
func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	status, err := s.app.Sync.Trigger(r.Context(), accountID)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, status)
}

// handleSyncStatus handles GET /api/accounts/{id}/sync/status.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	status, err := s.app.Sync.Status(r.Context(), accountID)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// handleSyncResume handles POST /api/accounts/{id}/resume after the user
// re-authenticates with the provider.
func (s *Server) handleSyncResume(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.app.Sync.Resume(r.Context(), accountID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "resumed", "resumed_at": time.Now().Format(time.RFC3339)})
}
