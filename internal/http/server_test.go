package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/services"
	"financeiro/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	ledger := services.NewLedger(st, nil, logger)
	transactions := services.NewTransactions(st, ledger, logger)
	recurrents := services.NewRecurrents(st, logger)
	investments := services.NewInvestments(st, ledger, logger)
	backup := services.NewBackup(st, nil, logger)
	alerts := services.NewAlerts(st, recurrents, 2, logger)
	srv := NewServer(":0", st, ledger, transactions, recurrents, investments, backup, alerts)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doRequest(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(srv, http.MethodPost, "/accounts", `{"label":"Checking","bank":"Nubank","balance_cents":10000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.Account
	decodeInto(t, rr, &created)
	if created.ID == 0 || created.Label != "Checking" {
		t.Fatalf("unexpected created account: %+v", created)
	}

	rr = doRequest(srv, http.MethodGet, "/accounts/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = doRequest(srv, http.MethodGet, "/accounts/99", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing account status=%d, want 404", rr.Code)
	}

	rr = doRequest(srv, http.MethodPost, "/accounts", `{"label":"   "}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank label status=%d, want 422", rr.Code)
	}
}

func TestBalancePatchRejected(t *testing.T) {
	srv := newTestServer(t)
	doRequest(srv, http.MethodPost, "/accounts", `{"label":"Checking","balance_cents":10000}`)

	rr := doRequest(srv, http.MethodPatch, "/accounts/1", `{"balance_cents":99999}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("balance patch status=%d, want 409", rr.Code)
	}

	// Descriptive fields still patch fine.
	rr = doRequest(srv, http.MethodPatch, "/accounts/1", `{"label":"Main"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("label patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	var patched core.Account
	decodeInto(t, rr, &patched)
	if patched.Label != "Main" || patched.BalanceCents != 10000 {
		t.Fatalf("unexpected patched account: %+v", patched)
	}
}

func TestAdjustWritesHistory(t *testing.T) {
	srv := newTestServer(t)
	doRequest(srv, http.MethodPost, "/accounts", `{"label":"Checking","balance_cents":10000}`)

	rr := doRequest(srv, http.MethodPost, "/accounts/1/adjust", `{"delta_cents":-2500,"note":"groceries"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("adjust status=%d body=%s", rr.Code, rr.Body.String())
	}
	var account core.Account
	decodeInto(t, rr, &account)
	if account.BalanceCents != 7500 {
		t.Fatalf("balance=%d, want 7500", account.BalanceCents)
	}

	rr = doRequest(srv, http.MethodGet, "/accounts/1/history", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("history status=%d", rr.Code)
	}
	var history []core.BalanceSnapshot
	decodeInto(t, rr, &history)
	if len(history) != 1 || history[0].BalanceCents != 7500 || history[0].Note != "groceries" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestTransactionPayFlow(t *testing.T) {
	srv := newTestServer(t)
	doRequest(srv, http.MethodPost, "/accounts", `{"label":"Checking","balance_cents":10000}`)

	rr := doRequest(srv, http.MethodPost, "/transactions",
		`{"accountId":1,"date":"2026-03-10","type":"expense","payment_method":"credit","amount_cents":-3000,"description":"dinner"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create tx status=%d body=%s", rr.Code, rr.Body.String())
	}
	var tx core.Transaction
	decodeInto(t, rr, &tx)
	if tx.Paid {
		t.Fatalf("credit expense should start unpaid")
	}

	rr = doRequest(srv, http.MethodPost, "/transactions/"+tx.ID+"/pay", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("pay status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(srv, http.MethodGet, "/accounts/1", "")
	var account core.Account
	decodeInto(t, rr, &account)
	if account.BalanceCents != 7000 {
		t.Fatalf("balance after pay=%d, want 7000", account.BalanceCents)
	}

	// Second pay on the same line conflicts.
	rr = doRequest(srv, http.MethodPost, "/transactions/"+tx.ID+"/pay", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("double pay status=%d, want 409", rr.Code)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	srv := newTestServer(t)
	rr := doRequest(srv, http.MethodPost, "/accounts", `{"label":"Checking","nope":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status=%d, want 400", rr.Code)
	}
}

func TestInvoicesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	doRequest(srv, http.MethodPost, "/accounts", `{"label":"Card","balance_cents":0,"card_closing_day":28,"card_due_day":3}`)
	doRequest(srv, http.MethodPost, "/transactions",
		`{"accountId":1,"date":"2026-02-10","type":"expense","payment_method":"credit","amount_cents":-5000}`)

	rr := doRequest(srv, http.MethodGet, "/invoices?month=2026-02", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("invoices status=%d body=%s", rr.Code, rr.Body.String())
	}
	var invoices []services.AccountInvoice
	decodeInto(t, rr, &invoices)
	if len(invoices) != 1 || invoices[0].TotalCents != -5000 {
		t.Fatalf("unexpected invoices: %+v", invoices)
	}

	rr = doRequest(srv, http.MethodGet, "/invoices?month=bogus", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad month status=%d, want 422", rr.Code)
	}
}

func TestBackupRoundTripOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	doRequest(srv, http.MethodPost, "/accounts", `{"label":"Checking","balance_cents":10000}`)

	rr := doRequest(srv, http.MethodGet, "/backup/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	exported := rr.Body.String()

	// A fresh server restored from that export serves the same account.
	restored := newTestServer(t)
	rr = doRequest(restored, http.MethodPost, "/backup/import", exported)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = doRequest(restored, http.MethodGet, "/accounts/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("restored account status=%d", rr.Code)
	}
	var account core.Account
	decodeInto(t, rr, &account)
	if account.Label != "Checking" || account.BalanceCents != 10000 {
		t.Fatalf("unexpected restored account: %+v", account)
	}

	rr = doRequest(restored, http.MethodPost, "/backup/import", `{"accounts":[{"id":1,"label":"a"},{"id":1,"label":"b"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid import status=%d, want 400", rr.Code)
	}
}

func TestDeleteAccountCascadesOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	doRequest(srv, http.MethodPost, "/accounts", `{"label":"Checking","balance_cents":10000}`)
	doRequest(srv, http.MethodPost, "/transactions",
		`{"accountId":1,"date":"2026-03-10","type":"expense","payment_method":"debit","amount_cents":-1000}`)

	rr := doRequest(srv, http.MethodDelete, "/accounts/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	var result services.CascadeResult
	decodeInto(t, rr, &result)
	if result.Transactions != 1 {
		t.Fatalf("cascade transactions=%d, want 1", result.Transactions)
	}

	if rr := doRequest(srv, http.MethodGet, "/accounts/1", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("deleted account status=%d, want 404", rr.Code)
	}
}
