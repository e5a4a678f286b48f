package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/store"
)

// Recurrents manages recurring bills and income. It never materializes
// transactions on its own; that only happens through an explicit
// Transactions.PayRecurrent call.
type Recurrents struct {
	store  *store.Store
	logger *log.Logger
}

func NewRecurrents(st *store.Store, logger *log.Logger) *Recurrents {
	return &Recurrents{
		store:  st,
		logger: logger.WithComponent(log.ComponentRecurrents),
	}
}

func (r *Recurrents) List(ctx context.Context, filter store.RecurrentFilter) ([]core.Recurrent, error) {
	return r.store.ListRecurrents(ctx, filter)
}

func (r *Recurrents) Get(ctx context.Context, id string) (core.Recurrent, error) {
	return r.store.GetRecurrent(ctx, id)
}

func (r *Recurrents) Add(ctx context.Context, recurrent core.Recurrent) (core.Recurrent, error) {
	recurrent.ID = uuid.NewString()
	if recurrent.Frequency == "" {
		recurrent.Frequency = core.FrequencyMonthly
	}
	if err := recurrent.Validate(); err != nil {
		return core.Recurrent{}, fmt.Errorf("add recurrent: %w", err)
	}
	created, err := r.store.CreateRecurrent(ctx, recurrent)
	if err != nil {
		return core.Recurrent{}, fmt.Errorf("add recurrent: %w", err)
	}
	r.logger.InfoContext(ctx, "recurrent created",
		log.FieldOperation, log.OpCreate,
		log.FieldRecurrentID, created.ID,
		log.FieldAccountID, created.AccountID)
	return created, nil
}

// Update validates the merged record before persisting the patch so a
// rejected edit never reaches the store.
func (r *Recurrents) Update(ctx context.Context, id string, patch store.RecurrentPatch) (core.Recurrent, error) {
	current, err := r.store.GetRecurrent(ctx, id)
	if err != nil {
		return core.Recurrent{}, fmt.Errorf("update recurrent: %w", err)
	}
	if err := patch.Apply(current).Validate(); err != nil {
		return core.Recurrent{}, fmt.Errorf("update recurrent: %w", err)
	}
	updated, err := r.store.PatchRecurrent(ctx, id, patch)
	if err != nil {
		return core.Recurrent{}, fmt.Errorf("update recurrent: %w", err)
	}
	return updated, nil
}

func (r *Recurrents) Delete(ctx context.Context, id string) error {
	if _, _, err := r.store.DeleteRecurrent(ctx, id); err != nil {
		return fmt.Errorf("delete recurrent: %w", err)
	}
	r.logger.InfoContext(ctx, "recurrent deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldRecurrentID, id)
	return nil
}

// HasRecurrentTransaction reports whether a transaction already exists
// for the recurrent in the given YYYY-MM month. Besides the month-key
// match it accepts a raw date-prefix match, tolerating stored dates with
// out-of-range days (e.g. day 30 in February).
func (r *Recurrents) HasRecurrentTransaction(ctx context.Context, recurrentID, month string) (bool, error) {
	id := recurrentID
	transactions, err := r.store.ListTransactions(ctx, store.TransactionFilter{RecurrentID: &id})
	if err != nil {
		return false, fmt.Errorf("check recurrent transaction: %w", err)
	}
	for _, tx := range transactions {
		if core.MonthKey(tx.Date) == month || strings.HasPrefix(tx.Date, month) {
			return true, nil
		}
	}
	return false, nil
}

// HasPaidRecurrentTransaction reports whether a paid transaction exists
// for the recurrent in the given YYYY-MM month. A materialized but still
// unpaid transaction does not count: reminders keep firing until the
// bill is actually settled.
func (r *Recurrents) HasPaidRecurrentTransaction(ctx context.Context, recurrentID, month string) (bool, error) {
	id := recurrentID
	transactions, err := r.store.ListTransactions(ctx, store.TransactionFilter{RecurrentID: &id})
	if err != nil {
		return false, fmt.Errorf("check paid recurrent transaction: %w", err)
	}
	for _, tx := range transactions {
		if !tx.Paid {
			continue
		}
		if core.MonthKey(tx.Date) == month || strings.HasPrefix(tx.Date, month) {
			return true, nil
		}
	}
	return false, nil
}

// UnpaidForMonth lists unpaid transactions dated in the given month.
func (r *Recurrents) UnpaidForMonth(ctx context.Context, month string) ([]core.Transaction, error) {
	paid := false
	transactions, err := r.store.ListTransactions(ctx, store.TransactionFilter{Paid: &paid})
	if err != nil {
		return nil, fmt.Errorf("unpaid for month: %w", err)
	}
	var out []core.Transaction
	for _, tx := range transactions {
		if core.MonthKey(tx.Date) == month {
			out = append(out, tx)
		}
	}
	return out, nil
}
