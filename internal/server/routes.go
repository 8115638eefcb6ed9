package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/mbaxter/finsync/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Accounts and per-account sync
	mux.HandleFunc("/api/accounts/", s.routeAccounts)
	mux.HandleFunc("/api/accounts", s.handleAccounts)

	// Transactions
	mux.HandleFunc("/api/transactions/", s.handleTransactionByID)
	mux.HandleFunc("/api/transactions", s.handleTransactionCreate)

	// Budgets
	mux.HandleFunc("/api/budgets/", s.handleBudgetByID)
	mux.HandleFunc("/api/budgets", s.handleBudgets)

	// Goals
	mux.HandleFunc("/api/goals/", s.routeGoals)
	mux.HandleFunc("/api/goals", s.handleGoals)

	// Net worth
	mux.HandleFunc("/api/networth", s.handleNetWorth)

	// Change event stream
	mux.HandleFunc("/api/ws/events", s.app.Notifier.WS().ServeWS)
}

// routeAccounts dispatches /api/accounts/{id}/* to the appropriate handler.
func (s *Server) routeAccounts(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "account id is required in path")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	accountID := parts[0]
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}

	switch rest {
	case "":
		s.handleAccountGet(w, r, accountID)
	case "sync":
		s.handleSyncTrigger(w, r, accountID)
	case "sync/status":
		s.handleSyncStatus(w, r, accountID)
	case "resume":
		s.handleSyncResume(w, r, accountID)
	case "unlink":
		s.handleAccountUnlink(w, r, accountID)
	case "transactions":
		s.handleAccountTransactions(w, r, accountID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeGoals dispatches /api/goals/{id}/* to the appropriate handler.
func (s *Server) routeGoals(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/goals/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "goal id is required in path")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	goalID := parts[0]
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}

	switch rest {
	case "":
		s.handleGoalGet(w, r, goalID)
	case "contributions":
		s.handleGoalContribution(w, r, goalID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.app.StartupTime).String(),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
