package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"journey/internal/core"
	"journey/internal/log"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the store and reports the state of the in-process helpers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if err := s.ledger.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["cache"] = map[string]any{"ledger_entries": s.snapshots.Size()}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"limited":        s.limiter.Hits(),
	}
	checks["security"] = map[string]any{"suspicious_requests": s.detector.SuspiciousRequests()}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	errorFragment(http.StatusTooManyRequests, "Muitas requisições, tente novamente em instantes").Write(w)
}

func (s *Server) handleListObjectives(w http.ResponseWriter, r *http.Request) {
	objs, err := s.ledger.ListObjectives(r.Context())
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	if objs == nil {
		objs = []core.Objective{}
	}
	writeJSON(w, http.StatusOK, objs)
}

// handleUpsertObjective answers 201 for a new id and 200 when an existing
// objective had its progress overwritten.
func (s *Server) handleUpsertObjective(w http.ResponseWriter, r *http.Request) {
	var o core.Objective
	if err := decodeJSON(w, r, &o); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	stored, created, err := s.ledger.UpsertObjective(r.Context(), o)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, stored)
}

func (s *Server) handleReplaceObjective(w http.ResponseWriter, r *http.Request) {
	var o core.Objective
	if err := decodeJSON(w, r, &o); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	if err := s.ledger.ReplaceObjective(r.Context(), chi.URLParam(r, "id"), o); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.ledger.GetSettings(r.Context())
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type settingsRequest struct {
	ExchangeRate *decimal.Decimal `json:"exchangeRate"`
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	if req.ExchangeRate == nil {
		writeError(w, http.StatusBadRequest, "exchangeRate is required")
		return
	}
	settings, err := s.ledger.SaveSettings(r.Context(), *req.ExchangeRate)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleRefreshSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.ledger.RefreshSettings(r.Context())
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.ListTransactions(r.Context())
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	stored, err := s.ledger.CreateTransaction(r.Context(), tx)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := transactionID(r)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := s.loadSnapshot(r.Context())
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Summary)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	result, err := s.ledger.Deposit(r.Context(), tx)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogDepositRecorded(r.Context(),
		result.Transaction.ID, result.Transaction.AmountBRL, result.Transaction.AmountUSD,
		result.Transaction.Bank, result.Transaction.ObjectiveID)
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleReverseDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := transactionID(r)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	result, err := s.ledger.ReverseDeposit(r.Context(), id)
	if err != nil {
		s.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
