package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/store"
)

// Transactions drives every ledger delta that originates from a
// transaction: create, pay/unpay, edit reconciliation, deletion
// reversal, installment groups and credit invoices.
type Transactions struct {
	store  *store.Store
	ledger *Ledger
	logger *log.Logger
}

func NewTransactions(st *store.Store, ledger *Ledger, logger *log.Logger) *Transactions {
	return &Transactions{
		store:  st,
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentTransactions),
	}
}

// DerivePaid resolves the paid flag when the caller did not supply one:
// income is cash on arrival, transfers settle immediately unless they
// ride a credit card, expenses only when paid by debit.
func DerivePaid(txType core.TransactionType, method core.PaymentMethod) bool {
	switch txType {
	case core.TypeIncome:
		return true
	case core.TypeTransfer:
		return method != core.MethodCredit
	case core.TypeExpense:
		return method == core.MethodDebit
	}
	return false
}

// contributions returns the signed cents each account currently carries
// from this transaction: zero for unpaid, the signed amount on the
// owning account when paid, plus the negated amount on the destination
// leg of a transfer.
func contributions(tx core.Transaction) map[int64]int64 {
	out := map[int64]int64{}
	if !tx.Paid {
		return out
	}
	out[tx.AccountID] += tx.AmountCents
	if tx.Type == core.TypeTransfer && tx.DestinationAccountID != 0 {
		out[tx.DestinationAccountID] -= tx.AmountCents
	}
	return out
}

// transactionLabel renders a human-readable tag for history notes:
// installment product and position when present, otherwise description.
func transactionLabel(tx core.Transaction) string {
	if tx.Installment != nil && tx.Installment.Product != "" {
		return fmt.Sprintf("%s (%d/%d)", tx.Installment.Product, tx.Installment.Index, tx.Installment.Total)
	}
	if tx.Description != "" {
		return tx.Description
	}
	return tx.ID
}

// TransactionInput is the creation payload. Paid is tri-state: nil means
// "derive from type and method".
type TransactionInput struct {
	AccountID            int64
	DestinationAccountID int64
	Date                 string
	Type                 core.TransactionType
	PaymentMethod        core.PaymentMethod
	AmountCents          int64
	Description          string
	Paid                 *bool
	Installment          *core.Installment
	RecurrentID          string
}

func (in TransactionInput) toTransaction() core.Transaction {
	tx := core.Transaction{
		ID:                   uuid.NewString(),
		AccountID:            in.AccountID,
		DestinationAccountID: in.DestinationAccountID,
		Date:                 in.Date,
		Type:                 in.Type,
		PaymentMethod:        in.PaymentMethod,
		AmountCents:          in.AmountCents,
		Description:          in.Description,
		Installment:          in.Installment,
		RecurrentID:          in.RecurrentID,
		CreatedAt:            time.Now().UTC().Format(time.RFC3339),
	}
	if in.Paid != nil {
		tx.Paid = *in.Paid
	} else {
		// Credit lines settle through invoice payment, never at creation;
		// DerivePaid already keeps them unpaid.
		tx.Paid = DerivePaid(in.Type, in.PaymentMethod)
	}
	return tx
}

// Add persists a new transaction. No ledger call happens here: callers
// that intend an immediate cash effect follow up with an explicit
// adjustment (PayRecurrent does).
func (t *Transactions) Add(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	tx := in.toTransaction()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	created, err := t.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	t.logger.InfoContext(ctx, "transaction created",
		log.FieldOperation, log.OpCreate,
		log.FieldTxID, created.ID,
		log.FieldAccountID, created.AccountID,
		log.FieldAmountCents, created.AmountCents)
	return created, nil
}

// InstallmentPlan describes an installment purchase to expand. Exactly
// one of AmountPerInstallmentCents / TotalAmountCents may be zero; when
// both are set the per-installment value wins and the last line absorbs
// the remainder so the sum matches the total.
type InstallmentPlan struct {
	AccountID                 int64
	Date                      string
	PaymentMethod             core.PaymentMethod
	Product                   string
	Description               string
	TotalInstallments         int
	AmountPerInstallmentCents int64
	TotalAmountCents          int64
}

// GenerateInstallments expands a plan into one transaction per month,
// all sharing a parent id. Credit plans start fully unpaid; debit plans
// pay installment 1 immediately with a single ledger delta.
func (t *Transactions) GenerateInstallments(ctx context.Context, plan InstallmentPlan) ([]core.Transaction, error) {
	if plan.TotalInstallments < 2 {
		return nil, core.InvariantError("installment plan needs at least 2 installments, got %d", plan.TotalInstallments)
	}
	if !core.IsISODate(plan.Date) {
		return nil, fmt.Errorf("generate installments: %w", core.ErrInvalidDate)
	}
	if plan.AmountPerInstallmentCents == 0 && plan.TotalAmountCents == 0 {
		return nil, fmt.Errorf("generate installments: %w", core.ErrInvalidAmount)
	}

	count := plan.TotalInstallments
	per := plan.AmountPerInstallmentCents
	if per == 0 {
		per = plan.TotalAmountCents / int64(count)
	}
	last := per
	if plan.TotalAmountCents != 0 {
		last = plan.TotalAmountCents - per*int64(count-1)
	}

	parentID := uuid.NewString()
	created := make([]core.Transaction, 0, count)
	for index := 1; index <= count; index++ {
		amount := per
		if index == count {
			amount = last
		}
		paid := plan.PaymentMethod == core.MethodDebit && index == 1
		tx := core.Transaction{
			ID:            uuid.NewString(),
			AccountID:     plan.AccountID,
			Date:          core.AddMonths(plan.Date, index-1),
			Type:          core.TypeExpense,
			PaymentMethod: plan.PaymentMethod,
			AmountCents:   amount,
			Description:   plan.Description,
			Paid:          paid,
			Installment: &core.Installment{
				ParentID: parentID,
				Total:    count,
				Index:    index,
				Product:  plan.Product,
			},
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("generate installments: %w", err)
		}
		stored, err := t.store.CreateTransaction(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("generate installments: %w", err)
		}
		created = append(created, stored)
	}

	if plan.PaymentMethod == core.MethodDebit {
		first := created[0]
		note := fmt.Sprintf("payment: %s", transactionLabel(first))
		if _, err := t.ledger.AdjustBalance(ctx, first.AccountID, first.AmountCents, note); err != nil {
			return created, fmt.Errorf("generate installments: first installment payment: %w", err)
		}
	}

	t.logger.InfoContext(ctx, "installment group created",
		"parent_id", parentID,
		log.FieldAccountID, plan.AccountID,
		log.FieldCount, count)
	return created, nil
}

// MarkPaid settles a transaction and applies its cash effect.
func (t *Transactions) MarkPaid(ctx context.Context, id string) (core.Transaction, error) {
	return t.setPaid(ctx, id, true)
}

// MarkUnpaid reverts a settlement, returning the balance to its
// pre-payment value.
func (t *Transactions) MarkUnpaid(ctx context.Context, id string) (core.Transaction, error) {
	return t.setPaid(ctx, id, false)
}

func (t *Transactions) setPaid(ctx context.Context, id string, paid bool) (core.Transaction, error) {
	tx, err := t.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("mark transaction: %w", err)
	}
	if tx.Paid == paid {
		state := "unpaid"
		if paid {
			state = "paid"
		}
		return core.Transaction{}, core.InvariantError("transaction %s is already %s", id, state)
	}

	updated, err := t.store.PatchTransaction(ctx, id, store.TransactionPatch{Paid: &paid})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("mark transaction: %w", err)
	}

	verb := "payment"
	if !paid {
		verb = "payment reversal"
	}
	note := fmt.Sprintf("%s: %s", verb, transactionLabel(updated))
	deltas := contributions(updated)
	if !paid {
		deltas = contributions(tx)
		for account := range deltas {
			deltas[account] = -deltas[account]
		}
	}
	if err := t.applyDeltas(ctx, deltas, note); err != nil {
		return core.Transaction{}, err
	}
	return updated, nil
}

// applyDeltas issues one ledger call per affected account, in account-id
// order, skipping zero deltas.
func (t *Transactions) applyDeltas(ctx context.Context, deltas map[int64]int64, note string) error {
	accounts := make([]int64, 0, len(deltas))
	for account := range deltas {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	for _, account := range accounts {
		delta := deltas[account]
		if delta == 0 {
			continue
		}
		if _, err := t.ledger.AdjustBalance(ctx, account, delta, note); err != nil {
			return fmt.Errorf("apply transaction delta: %w", err)
		}
	}
	return nil
}

// Update patches a transaction and reconciles the ledger: the previously
// applied contribution per account is diffed against the new one and
// only the net difference is adjusted. The merged record is validated
// before anything is persisted; a rejected patch leaves store and
// balances untouched.
func (t *Transactions) Update(ctx context.Context, id string, patch store.TransactionPatch) (core.Transaction, error) {
	before, err := t.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := patch.Apply(before).Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	after, err := t.store.PatchTransaction(ctx, id, patch)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	old := contributions(before)
	deltas := contributions(after)
	for account, applied := range old {
		deltas[account] -= applied
	}
	note := fmt.Sprintf("transaction updated: %s", transactionLabel(after))
	if err := t.applyDeltas(ctx, deltas, note); err != nil {
		return core.Transaction{}, err
	}
	return after, nil
}

// Delete removes a transaction and reverses any applied cash effect.
// Settled credit lines belong to a paid invoice and cannot go.
func (t *Transactions) Delete(ctx context.Context, id string) error {
	tx, err := t.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tx.Paid && tx.PaymentMethod == core.MethodCredit {
		return core.InvariantError("transaction %s is a settled credit line and cannot be deleted", id)
	}

	if _, _, err := t.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	deltas := contributions(tx)
	for account := range deltas {
		deltas[account] = -deltas[account]
	}
	note := fmt.Sprintf("transaction removed: %s", transactionLabel(tx))
	if err := t.applyDeltas(ctx, deltas, note); err != nil {
		return err
	}

	t.logger.InfoContext(ctx, "transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTxID, id)
	return nil
}

// DeleteInstallmentGroup removes every member of an installment group
// all-or-nothing at the decision level: any settled credit member blocks
// the whole group before anything is touched. Reversal deltas are
// aggregated per account so each account sees exactly one adjustment.
func (t *Transactions) DeleteInstallmentGroup(ctx context.Context, parentID string, progress func(current, total int)) error {
	parent := parentID
	members, err := t.store.ListTransactions(ctx, store.TransactionFilter{ParentID: &parent})
	if err != nil {
		return fmt.Errorf("delete installment group: %w", err)
	}
	if len(members) == 0 {
		return core.NotFoundError(store.CollectionTxns, parentID)
	}
	for _, member := range members {
		if member.Paid && member.PaymentMethod == core.MethodCredit {
			return core.InvariantError("installment group %s has a settled credit member and cannot be deleted", parentID)
		}
	}

	deltas := map[int64]int64{}
	product := transactionLabel(members[0])
	for i, member := range members {
		if _, _, err := t.store.DeleteTransaction(ctx, member.ID); err != nil {
			return fmt.Errorf("delete installment group: member %s: %w", member.ID, err)
		}
		for account, applied := range contributions(member) {
			deltas[account] -= applied
		}
		if progress != nil {
			progress(i+1, len(members))
		}
	}

	note := fmt.Sprintf("installment group removed: %s", product)
	if err := t.applyDeltas(ctx, deltas, note); err != nil {
		return err
	}

	t.logger.InfoContext(ctx, "installment group deleted",
		"parent_id", parentID,
		log.FieldCount, len(members))
	return nil
}

// InvoiceStatus filters invoice lines by settlement.
type InvoiceStatus string

const (
	InvoiceAll  InvoiceStatus = "all"
	InvoiceOpen InvoiceStatus = "open"
	InvoicePaid InvoiceStatus = "paid"
)

func (s InvoiceStatus) valid() bool {
	return s == InvoiceAll || s == InvoiceOpen || s == InvoicePaid
}

// AccountInvoice is one account's credit invoice for a cycle month.
type AccountInvoice struct {
	AccountID    int64              `json:"accountId"`
	AccountLabel string             `json:"account_label"`
	Month        string             `json:"month"`
	DueDate      string             `json:"due_date,omitempty"`
	TotalCents   int64              `json:"total_cents"`
	Transactions []core.Transaction `json:"transactions"`
}

// CreditInvoicesByAccount groups credit-method transactions whose
// invoice cycle falls in month, per owning account.
func (t *Transactions) CreditInvoicesByAccount(ctx context.Context, month string, status InvoiceStatus) ([]AccountInvoice, error) {
	if status == "" {
		status = InvoiceAll
	}
	if !status.valid() {
		return nil, core.InvariantError("unknown invoice status %q", status)
	}
	if core.MonthKey(month+"-01") == "" {
		return nil, fmt.Errorf("credit invoices: month %q: %w", month, core.ErrInvalidDate)
	}

	credit := core.MethodCredit
	lines, err := t.store.ListTransactions(ctx, store.TransactionFilter{PaymentMethod: &credit})
	if err != nil {
		return nil, fmt.Errorf("credit invoices: %w", err)
	}
	accounts, err := t.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("credit invoices: %w", err)
	}
	accountsByID := make(map[int64]core.Account, len(accounts))
	for _, a := range accounts {
		accountsByID[a.ID] = a
	}

	grouped := map[int64]*AccountInvoice{}
	for _, tx := range lines {
		account, ok := accountsByID[tx.AccountID]
		if !ok {
			continue
		}
		cycle, ok := core.CreditInvoiceCycleMonth(tx.Date, account.CardClosingDay)
		if !ok || cycle != month {
			continue
		}
		if status == InvoiceOpen && tx.Paid {
			continue
		}
		if status == InvoicePaid && !tx.Paid {
			continue
		}
		invoice, ok := grouped[tx.AccountID]
		if !ok {
			invoice = &AccountInvoice{
				AccountID:    account.ID,
				AccountLabel: account.Label,
				Month:        month,
			}
			if account.CardDueDay > 0 {
				if due, ok := core.CreditInvoiceDueDate(tx.Date, account.CardDueDay, account.CardClosingDay); ok {
					invoice.DueDate = due
				}
			}
			grouped[tx.AccountID] = invoice
		}
		invoice.TotalCents += tx.AmountCents
		invoice.Transactions = append(invoice.Transactions, tx)
	}

	out := make([]AccountInvoice, 0, len(grouped))
	for _, invoice := range grouped {
		sort.Slice(invoice.Transactions, func(i, j int) bool {
			return invoice.Transactions[i].Date < invoice.Transactions[j].Date
		})
		out = append(out, *invoice)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

// PayRecurrent materializes one transaction for a recurrent in a given
// month, at most once: an existing transaction for the pair is returned
// unchanged. The legacy date-prefix fallback tolerates stored dates with
// out-of-range days.
func (t *Transactions) PayRecurrent(ctx context.Context, recurrent core.Recurrent, month string) (core.Transaction, bool, error) {
	year, monthNum, _, ok := core.ParseISODate(month + "-01")
	if !ok {
		return core.Transaction{}, false, fmt.Errorf("pay recurrent: month %q: %w", month, core.ErrInvalidDate)
	}

	recurrentID := recurrent.ID
	existing, err := t.store.ListTransactions(ctx, store.TransactionFilter{RecurrentID: &recurrentID})
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("pay recurrent: %w", err)
	}
	for _, tx := range existing {
		if core.MonthKey(tx.Date) == month || strings.HasPrefix(tx.Date, month) {
			return tx, false, nil
		}
	}

	txType := core.TypeIncome
	if recurrent.Kind == core.KindExpense {
		txType = core.TypeExpense
	}
	tx := core.Transaction{
		ID:            uuid.NewString(),
		AccountID:     recurrent.AccountID,
		Date:          core.FormatDate(year, monthNum, recurrent.ReferenceDay()),
		Type:          txType,
		PaymentMethod: recurrent.PaymentMethod,
		AmountCents:   recurrent.AmountCents,
		Description:   recurrent.Name,
		Paid:          DerivePaid(txType, recurrent.PaymentMethod),
		RecurrentID:   recurrent.ID,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	created, err := t.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("pay recurrent: %w", err)
	}

	if created.Paid {
		note := fmt.Sprintf("recurrent payment: %s (%s)", recurrent.Name, month)
		if _, err := t.ledger.AdjustBalance(ctx, created.AccountID, created.AmountCents, note); err != nil {
			return created, true, fmt.Errorf("pay recurrent: %w", err)
		}
	}

	t.logger.InfoContext(ctx, "recurrent materialized",
		log.FieldRecurrentID, recurrent.ID,
		log.FieldMonth, month,
		log.FieldTxID, created.ID)
	return created, true, nil
}
