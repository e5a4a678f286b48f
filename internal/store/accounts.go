package store

import (
	"context"

	"financeiro/internal/core"
)

// AccountPatch carries the fields a patch may set; nil means "leave
// unchanged", matching the merge semantics of the wire PATCH.
type AccountPatch struct {
	Bank           *string
	Label          *string
	BalanceCents   *int64
	CardClosingDay *int
	CardDueDay     *int
}

// Apply merges the patch into a copy of a. Callers validate the merged
// record before persisting it.
func (p AccountPatch) Apply(a core.Account) core.Account {
	if p.Bank != nil {
		a.Bank = *p.Bank
	}
	if p.Label != nil {
		a.Label = *p.Label
	}
	if p.BalanceCents != nil {
		a.BalanceCents = *p.BalanceCents
	}
	if p.CardClosingDay != nil {
		a.CardClosingDay = *p.CardClosingDay
	}
	if p.CardDueDay != nil {
		a.CardDueDay = *p.CardDueDay
	}
	return a
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var out []core.Account
	err := s.view(func(db *database) error {
		out = append(out, db.Accounts...)
		return nil
	})
	return out, err
}

func (s *Store) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	var out core.Account
	err := s.view(func(db *database) error {
		for _, a := range db.Accounts {
			if a.ID == id {
				out = a
				return nil
			}
		}
		return core.NotFoundError(CollectionAccounts, id)
	})
	return out, err
}

// CreateAccount persists a new account. A zero id is replaced by the
// next auto-increment value (max existing id + 1).
func (s *Store) CreateAccount(ctx context.Context, account core.Account) (core.Account, error) {
	err := s.mutate(func(db *database) (bool, error) {
		if account.ID == 0 {
			var max int64
			for _, a := range db.Accounts {
				if a.ID > max {
					max = a.ID
				}
			}
			account.ID = max + 1
		}
		db.Accounts = append(db.Accounts, account)
		return true, nil
	})
	return account, err
}

func (s *Store) PatchAccount(ctx context.Context, id int64, patch AccountPatch) (core.Account, error) {
	var out core.Account
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.Accounts {
			if db.Accounts[i].ID != id {
				continue
			}
			db.Accounts[i] = patch.Apply(db.Accounts[i])
			out = db.Accounts[i]
			return true, nil
		}
		return false, core.NotFoundError(CollectionAccounts, id)
	})
	return out, err
}

// DeleteAccount removes an account; deleting an absent id is a no-op
// with removed=false.
func (s *Store) DeleteAccount(ctx context.Context, id int64) (core.Account, bool, error) {
	var (
		out     core.Account
		removed bool
	)
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.Accounts {
			if db.Accounts[i].ID == id {
				out = db.Accounts[i]
				db.Accounts = append(db.Accounts[:i], db.Accounts[i+1:]...)
				removed = true
				return true, nil
			}
		}
		return false, nil
	})
	return out, removed, err
}
