package store

import (
	"context"

	"financeiro/internal/core"
)

// TransactionFilter selects transactions by field equality; nil fields
// match everything.
type TransactionFilter struct {
	AccountID            *int64
	DestinationAccountID *int64
	RecurrentID          *string
	ParentID             *string
	PaymentMethod        *core.PaymentMethod
	Paid                 *bool
}

func (f TransactionFilter) matches(tx core.Transaction) bool {
	if f.AccountID != nil && tx.AccountID != *f.AccountID {
		return false
	}
	if f.DestinationAccountID != nil && tx.DestinationAccountID != *f.DestinationAccountID {
		return false
	}
	if f.RecurrentID != nil && tx.RecurrentID != *f.RecurrentID {
		return false
	}
	if f.ParentID != nil && (tx.Installment == nil || tx.Installment.ParentID != *f.ParentID) {
		return false
	}
	if f.PaymentMethod != nil && tx.PaymentMethod != *f.PaymentMethod {
		return false
	}
	if f.Paid != nil && tx.Paid != *f.Paid {
		return false
	}
	return true
}

// TransactionPatch mirrors the wire PATCH: nil fields stay unchanged.
type TransactionPatch struct {
	AccountID            *int64
	DestinationAccountID *int64
	Date                 *string
	Type                 *core.TransactionType
	PaymentMethod        *core.PaymentMethod
	AmountCents          *int64
	Description          *string
	Paid                 *bool
	Installment          *core.Installment
	RecurrentID          *string
}

// Apply merges the patch into a copy of tx. Callers validate the merged
// record before persisting it.
func (p TransactionPatch) Apply(tx core.Transaction) core.Transaction {
	if p.AccountID != nil {
		tx.AccountID = *p.AccountID
	}
	if p.DestinationAccountID != nil {
		tx.DestinationAccountID = *p.DestinationAccountID
	}
	if p.Date != nil {
		tx.Date = *p.Date
	}
	if p.Type != nil {
		tx.Type = *p.Type
	}
	if p.PaymentMethod != nil {
		tx.PaymentMethod = *p.PaymentMethod
	}
	if p.AmountCents != nil {
		tx.AmountCents = *p.AmountCents
	}
	if p.Description != nil {
		tx.Description = *p.Description
	}
	if p.Paid != nil {
		tx.Paid = *p.Paid
	}
	if p.Installment != nil {
		installment := *p.Installment
		tx.Installment = &installment
	}
	if p.RecurrentID != nil {
		tx.RecurrentID = *p.RecurrentID
	}
	return tx
}

func (s *Store) ListTransactions(ctx context.Context, filter TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	err := s.view(func(db *database) error {
		for _, tx := range db.Transactions {
			if filter.matches(tx) {
				out = append(out, tx)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var out core.Transaction
	err := s.view(func(db *database) error {
		for _, tx := range db.Transactions {
			if tx.ID == id {
				out = tx
				return nil
			}
		}
		return core.NotFoundError(CollectionTxns, id)
	})
	return out, err
}

func (s *Store) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	err := s.mutate(func(db *database) (bool, error) {
		db.Transactions = append(db.Transactions, tx)
		return true, nil
	})
	return tx, err
}

func (s *Store) PatchTransaction(ctx context.Context, id string, patch TransactionPatch) (core.Transaction, error) {
	var out core.Transaction
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.Transactions {
			if db.Transactions[i].ID != id {
				continue
			}
			db.Transactions[i] = patch.Apply(db.Transactions[i])
			out = db.Transactions[i]
			return true, nil
		}
		return false, core.NotFoundError(CollectionTxns, id)
	})
	return out, err
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) (core.Transaction, bool, error) {
	var (
		out     core.Transaction
		removed bool
	)
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.Transactions {
			if db.Transactions[i].ID == id {
				out = db.Transactions[i]
				db.Transactions = append(db.Transactions[:i], db.Transactions[i+1:]...)
				removed = true
				return true, nil
			}
		}
		return false, nil
	})
	return out, removed, err
}
