package http

import (
	"net/http"

	"financeiro/internal/core"
	"financeiro/internal/store"
)

func (s *Server) handleListRecurrents(w http.ResponseWriter, r *http.Request) {
	filter := store.RecurrentFilter{
		AccountID: queryInt64Ptr(r, "accountId"),
		Active:    queryBoolPtr(r, "active"),
	}
	recurrents, err := s.recurrents.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recurrents == nil {
		recurrents = []core.Recurrent{}
	}
	writeJSON(w, http.StatusOK, recurrents)
}

func (s *Server) handleCreateRecurrent(w http.ResponseWriter, r *http.Request) {
	var recurrent core.Recurrent
	if !decodeBody(w, r, &recurrent) {
		return
	}
	created, err := s.recurrents.Add(r.Context(), recurrent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRecurrent(w http.ResponseWriter, r *http.Request) {
	recurrent, err := s.recurrents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recurrent)
}

type recurrentPatchRequest struct {
	AccountID     *int64              `json:"accountId"`
	Kind          *core.RecurrentKind `json:"kind"`
	PaymentMethod *core.PaymentMethod `json:"payment_method"`
	Notify        *bool               `json:"notify"`
	Name          *string             `json:"name"`
	AmountCents   *int64              `json:"amount_cents"`
	DayOfMonth    *int                `json:"day_of_month"`
	DueDay        *int                `json:"due_day"`
	Description   *string             `json:"description"`
	Active        *bool               `json:"active"`
}

func (s *Server) handleUpdateRecurrent(w http.ResponseWriter, r *http.Request) {
	var req recurrentPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := s.recurrents.Update(r.Context(), r.PathValue("id"), store.RecurrentPatch{
		AccountID:     req.AccountID,
		Kind:          req.Kind,
		PaymentMethod: req.PaymentMethod,
		Notify:        req.Notify,
		Name:          req.Name,
		AmountCents:   req.AmountCents,
		DayOfMonth:    req.DayOfMonth,
		DueDay:        req.DueDay,
		Description:   req.Description,
		Active:        req.Active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRecurrent(w http.ResponseWriter, r *http.Request) {
	if err := s.recurrents.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePayRecurrent materializes the recurrent for ?month=YYYY-MM
// (default: the current month). Idempotent per recurrent+month.
func (s *Server) handlePayRecurrent(w http.ResponseWriter, r *http.Request) {
	recurrent, err := s.recurrents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	month := r.URL.Query().Get("month")
	if month == "" {
		month = core.MonthKey(core.TodayISO())
	}
	tx, created, err := s.transactions.PayRecurrent(r.Context(), recurrent, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.invoiceCache.Purge()
	}
	writeJSON(w, status, tx)
}
