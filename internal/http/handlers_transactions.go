package http

import (
	"net/http"

	"financeiro/internal/core"
	"financeiro/internal/services"
	"financeiro/internal/store"
)

func transactionFilterFromQuery(r *http.Request) store.TransactionFilter {
	filter := store.TransactionFilter{
		AccountID:            queryInt64Ptr(r, "accountId"),
		DestinationAccountID: queryInt64Ptr(r, "destinationAccountId"),
		RecurrentID:          queryStringPtr(r, "recurrentId"),
		ParentID:             queryStringPtr(r, "parentId"),
		Paid:                 queryBoolPtr(r, "paid"),
	}
	if raw := queryStringPtr(r, "payment_method"); raw != nil {
		method := core.PaymentMethod(*raw)
		filter.PaymentMethod = &method
	}
	return filter
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.store.ListTransactions(r.Context(), transactionFilterFromQuery(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

type transactionRequest struct {
	AccountID            int64                `json:"accountId"`
	DestinationAccountID int64                `json:"destinationAccountId"`
	Date                 string               `json:"date"`
	Type                 core.TransactionType `json:"type"`
	PaymentMethod        core.PaymentMethod   `json:"payment_method"`
	AmountCents          int64                `json:"amount_cents"`
	Description          string               `json:"description"`
	Paid                 *bool                `json:"paid"`
	Installment          *core.Installment    `json:"installment"`
	RecurrentID          string               `json:"recurrentId"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := s.transactions.Add(r.Context(), services.TransactionInput{
		AccountID:            req.AccountID,
		DestinationAccountID: req.DestinationAccountID,
		Date:                 req.Date,
		Type:                 req.Type,
		PaymentMethod:        req.PaymentMethod,
		AmountCents:          req.AmountCents,
		Description:          req.Description,
		Paid:                 req.Paid,
		Installment:          req.Installment,
		RecurrentID:          req.RecurrentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.store.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type transactionPatchRequest struct {
	AccountID            *int64                `json:"accountId"`
	DestinationAccountID *int64                `json:"destinationAccountId"`
	Date                 *string               `json:"date"`
	Type                 *core.TransactionType `json:"type"`
	PaymentMethod        *core.PaymentMethod   `json:"payment_method"`
	AmountCents          *int64                `json:"amount_cents"`
	Description          *string               `json:"description"`
	Paid                 *bool                 `json:"paid"`
	RecurrentID          *string               `json:"recurrentId"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := s.transactions.Update(r.Context(), r.PathValue("id"), store.TransactionPatch{
		AccountID:            req.AccountID,
		DestinationAccountID: req.DestinationAccountID,
		Date:                 req.Date,
		Type:                 req.Type,
		PaymentMethod:        req.PaymentMethod,
		AmountCents:          req.AmountCents,
		Description:          req.Description,
		Paid:                 req.Paid,
		RecurrentID:          req.RecurrentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePayTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.transactions.MarkPaid(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUnpayTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.transactions.MarkUnpaid(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	writeJSON(w, http.StatusOK, tx)
}

type installmentPlanRequest struct {
	AccountID                 int64              `json:"accountId"`
	Date                      string             `json:"date"`
	PaymentMethod             core.PaymentMethod `json:"payment_method"`
	Product                   string             `json:"product"`
	Description               string             `json:"description"`
	TotalInstallments         int                `json:"total_installments"`
	AmountPerInstallmentCents int64              `json:"amount_per_installment_cents"`
	TotalAmountCents          int64              `json:"total_amount_cents"`
}

func (s *Server) handleGenerateInstallments(w http.ResponseWriter, r *http.Request) {
	var req installmentPlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := s.transactions.GenerateInstallments(r.Context(), services.InstallmentPlan{
		AccountID:                 req.AccountID,
		Date:                      req.Date,
		PaymentMethod:             req.PaymentMethod,
		Product:                   req.Product,
		Description:               req.Description,
		TotalInstallments:         req.TotalInstallments,
		AmountPerInstallmentCents: req.AmountPerInstallmentCents,
		TotalAmountCents:          req.TotalAmountCents,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteInstallmentGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.DeleteInstallmentGroup(r.Context(), r.PathValue("parentId"), nil); err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	status := services.InvoiceStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = services.InvoiceAll
	}

	key := month + "|" + string(status)
	if cached, found := s.invoiceCache.Get(key); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	invoices, err := s.transactions.CreditInvoicesByAccount(r.Context(), month, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if invoices == nil {
		invoices = []services.AccountInvoice{}
	}
	s.invoiceCache.Set(key, invoices)
	writeJSON(w, http.StatusOK, invoices)
}
