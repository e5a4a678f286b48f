package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"financeiro/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenCreatesEmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	accounts, err := s.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("expected empty store, got %d accounts", len(accounts))
	}
}

func TestCreateAccountAutoIncrement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateAccount(ctx, core.Account{Label: "Nubank"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("first id = %d, want 1", first.ID)
	}

	if _, err := s.CreateAccount(ctx, core.Account{ID: 7, Label: "Inter"}); err != nil {
		t.Fatalf("CreateAccount with explicit id: %v", err)
	}

	third, err := s.CreateAccount(ctx, core.Account{Label: "Itaú"})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if third.ID != 8 {
		t.Fatalf("auto id after gap = %d, want 8", third.ID)
	}
}

func TestPatchAccountMergesFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateAccount(ctx, core.Account{Label: "Nubank", Bank: "Nubank", BalanceCents: 1000})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	label := "Nubank PJ"
	patched, err := s.PatchAccount(ctx, created.ID, AccountPatch{Label: &label})
	if err != nil {
		t.Fatalf("PatchAccount: %v", err)
	}
	if patched.Label != "Nubank PJ" {
		t.Fatalf("label = %q, want %q", patched.Label, "Nubank PJ")
	}
	if patched.BalanceCents != 1000 || patched.Bank != "Nubank" {
		t.Fatalf("untouched fields changed: %+v", patched)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAccount(context.Background(), 42)
	if !core.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, removed, err := s.DeleteAccount(ctx, 99)
	if err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if removed {
		t.Fatal("delete of absent account reported removed=true")
	}

	_, removed, err = s.DeleteTransaction(ctx, "missing")
	if err != nil || removed {
		t.Fatalf("DeleteTransaction absent: removed=%v err=%v", removed, err)
	}
}

func TestTransactionFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []core.Transaction{
		{ID: "t1", AccountID: 1, Date: "2026-01-05", Type: core.TypeExpense, PaymentMethod: core.MethodCredit, AmountCents: 500, Installment: &core.Installment{ParentID: "p1", Total: 3, Index: 1}},
		{ID: "t2", AccountID: 1, Date: "2026-01-06", Type: core.TypeExpense, PaymentMethod: core.MethodDebit, AmountCents: 300, Paid: true},
		{ID: "t3", AccountID: 2, Date: "2026-01-07", Type: core.TypeIncome, AmountCents: 900, Paid: true, RecurrentID: "r1"},
	}
	for _, tx := range seed {
		if _, err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction %s: %v", tx.ID, err)
		}
	}

	accountID := int64(1)
	credit := core.MethodCredit
	paid := true
	recurrentID := "r1"
	parentID := "p1"

	tests := []struct {
		name   string
		filter TransactionFilter
		want   []string
	}{
		{"by account", TransactionFilter{AccountID: &accountID}, []string{"t1", "t2"}},
		{"by payment method", TransactionFilter{PaymentMethod: &credit}, []string{"t1"}},
		{"by paid", TransactionFilter{Paid: &paid}, []string{"t2", "t3"}},
		{"by recurrent", TransactionFilter{RecurrentID: &recurrentID}, []string{"t3"}},
		{"by installment parent", TransactionFilter{ParentID: &parentID}, []string{"t1"}},
		{"combined", TransactionFilter{AccountID: &accountID, Paid: &paid}, []string{"t2"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d transactions, want %d", len(got), len(tc.want))
			}
			for i, tx := range got {
				if tx.ID != tc.want[i] {
					t.Errorf("result[%d] = %s, want %s", i, tx.ID, tc.want[i])
				}
			}
		})
	}
}

func TestCreateEventAssignsSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateEvent(ctx, core.InvestmentEvent{ID: "e1", PositionID: "p1", AccountID: 1, Date: "2026-01-10", Type: core.EventBuy, AmountCents: 1000})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	second, err := s.CreateEvent(ctx, core.InvestmentEvent{ID: "e2", PositionID: "p1", AccountID: 1, Date: "2026-01-10", Type: core.EventSell, AmountCents: 400})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("seq = %d, %d; want 1, 2", first.Seq, second.Seq)
	}

	if _, removed, err := s.DeleteEvent(ctx, "e1"); err != nil || !removed {
		t.Fatalf("DeleteEvent: removed=%v err=%v", removed, err)
	}
	third, err := s.CreateEvent(ctx, core.InvestmentEvent{ID: "e3", PositionID: "p1", AccountID: 1, Date: "2026-01-11", Type: core.EventBuy, AmountCents: 200})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if third.Seq != 3 {
		t.Fatalf("seq after delete = %d, want 3", third.Seq)
	}
}

func TestApplyHoldings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pos := core.InvestmentPosition{
		ID: "p1", AccountID: 1, Bucket: core.BucketVariable,
		AssetCode: "PETR4", Active: true,
		PrincipalCents: 999, CurrentValueCents: 999,
	}
	if _, err := s.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("CreatePosition: %v", err)
	}

	updated, err := s.ApplyHoldings(ctx, "p1", core.NewVariableHoldings(10, 2500, 25000))
	if err != nil {
		t.Fatalf("ApplyHoldings: %v", err)
	}
	if updated.QuantityTotal != 10 || updated.AvgCostCents != 2500 || updated.InvestedCents != 25000 {
		t.Fatalf("variable holdings not applied: %+v", updated)
	}
	if updated.PrincipalCents != 0 || updated.CurrentValueCents != 0 {
		t.Fatalf("fixed-bucket fields not cleared: %+v", updated)
	}
}

func TestHistoryAppendAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []core.BalanceSnapshot{
		{ID: "h1", AccountID: 1, Date: "2026-01-01", BalanceCents: 100},
		{ID: "h2", AccountID: 2, Date: "2026-01-02", BalanceCents: 200},
		{ID: "h3", AccountID: 1, Date: "2026-01-03", BalanceCents: 300},
	}
	for _, row := range rows {
		if _, err := s.AppendHistory(ctx, row); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	accountID := int64(1)
	got, err := s.ListHistory(ctx, HistoryFilter{AccountID: &accountID})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(got) != 2 || got[0].ID != "h1" || got[1].ID != "h3" {
		t.Fatalf("filtered history = %+v", got)
	}
}

func TestReplaceAllSwapsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAccount(ctx, core.Account{Label: "old"}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	snap := Snapshot{
		Accounts:     []core.Account{{ID: 5, Label: "restored"}},
		Transactions: []core.Transaction{{ID: "t1", AccountID: 5, Date: "2026-02-01", Type: core.TypeExpense, AmountCents: 100}},
	}
	if err := s.ReplaceAll(ctx, snap); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Label != "restored" {
		t.Fatalf("accounts after restore = %+v", accounts)
	}
	txns, err := s.ListTransactions(ctx, TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 1 || txns[0].ID != "t1" {
		t.Fatalf("transactions after restore = %+v", txns)
	}
	history, err := s.ListHistory(ctx, HistoryFilter{})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history not cleared: %+v", history)
	}
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.CreateAccount(ctx, core.Account{Label: "persisted", BalanceCents: 4200}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	account, err := reopened.GetAccount(ctx, 1)
	if err != nil {
		t.Fatalf("GetAccount after reopen: %v", err)
	}
	if account.Label != "persisted" || account.BalanceCents != 4200 {
		t.Fatalf("account after reopen = %+v", account)
	}
}
