package http

import (
	"net/http"

	"financeiro/internal/core"
	"financeiro/internal/services"
	"financeiro/internal/store"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var account core.Account
	if !decodeBody(w, r, &account) {
		return
	}
	if err := account.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.store.CreateAccount(r.Context(), account)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	account, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type accountPatchRequest struct {
	Bank           *string `json:"bank"`
	Label          *string `json:"label"`
	BalanceCents   *int64  `json:"balance_cents"`
	CardClosingDay *int    `json:"card_closing_day"`
	CardDueDay     *int    `json:"card_due_day"`
}

// handlePatchAccount merges descriptive fields. Balance edits go through
// the ledger so history stays complete; a direct balance_cents patch is
// rejected.
func (s *Server) handlePatchAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req accountPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BalanceCents != nil {
		writeError(w, r, core.InvariantError("balance is ledger-owned; use POST /accounts/%d/adjust", id))
		return
	}
	patch := store.AccountPatch{
		Bank:           req.Bank,
		Label:          req.Label,
		CardClosingDay: req.CardClosingDay,
		CardDueDay:     req.CardDueDay,
	}
	current, err := s.store.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := patch.Apply(current).Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	patched, err := s.store.PatchAccount(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	writeJSON(w, http.StatusOK, patched)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	result, err := s.ledger.DeleteAccountCascade(r.Context(), id, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	writeJSON(w, http.StatusOK, result)
}

type adjustRequest struct {
	DeltaCents int64  `json:"delta_cents"`
	Note       string `json:"note"`
}

func (s *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req adjustRequest
	if !decodeBody(w, r, &req) {
		return
	}
	note := req.Note
	if note == "" {
		note = "manual adjustment"
	}
	account, err := s.ledger.AdjustBalance(r.Context(), id, req.DeltaCents, note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleAccountHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetAccount(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	history, err := s.store.ListHistory(r.Context(), store.HistoryFilter{AccountID: &id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []core.BalanceSnapshot{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	today := r.URL.Query().Get("date")
	if today == "" {
		today = core.TodayISO()
	}
	alerts, err := s.alerts.Evaluate(r.Context(), today)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []services.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
