package store

import (
	"context"

	"financeiro/internal/core"
)

type HistoryFilter struct {
	AccountID *int64
}

func (s *Store) ListHistory(ctx context.Context, filter HistoryFilter) ([]core.BalanceSnapshot, error) {
	var out []core.BalanceSnapshot
	err := s.view(func(db *database) error {
		for _, h := range db.History {
			if filter.AccountID != nil && h.AccountID != *filter.AccountID {
				continue
			}
			out = append(out, h)
		}
		return nil
	})
	return out, err
}

// AppendHistory adds one snapshot; history is append-only, there is no
// patch.
func (s *Store) AppendHistory(ctx context.Context, snapshot core.BalanceSnapshot) (core.BalanceSnapshot, error) {
	err := s.mutate(func(db *database) (bool, error) {
		db.History = append(db.History, snapshot)
		return true, nil
	})
	return snapshot, err
}

func (s *Store) DeleteHistory(ctx context.Context, id string) (core.BalanceSnapshot, bool, error) {
	var (
		out     core.BalanceSnapshot
		removed bool
	)
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.History {
			if db.History[i].ID == id {
				out = db.History[i]
				db.History = append(db.History[:i], db.History[i+1:]...)
				removed = true
				return true, nil
			}
		}
		return false, nil
	})
	return out, removed, err
}
