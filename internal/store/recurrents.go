package store

import (
	"context"

	"financeiro/internal/core"
)

type RecurrentFilter struct {
	AccountID *int64
	Active    *bool
}

// RecurrentPatch mirrors the wire PATCH: nil fields stay unchanged.
type RecurrentPatch struct {
	AccountID     *int64
	Kind          *core.RecurrentKind
	PaymentMethod *core.PaymentMethod
	Notify        *bool
	Name          *string
	AmountCents   *int64
	DayOfMonth    *int
	DueDay        *int
	Description   *string
	Active        *bool
}

// Apply merges the patch into a copy of r. Callers validate the merged
// record before persisting it.
func (p RecurrentPatch) Apply(r core.Recurrent) core.Recurrent {
	if p.AccountID != nil {
		r.AccountID = *p.AccountID
	}
	if p.Kind != nil {
		r.Kind = *p.Kind
	}
	if p.PaymentMethod != nil {
		r.PaymentMethod = *p.PaymentMethod
	}
	if p.Notify != nil {
		r.Notify = *p.Notify
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.AmountCents != nil {
		r.AmountCents = *p.AmountCents
	}
	if p.DayOfMonth != nil {
		r.DayOfMonth = *p.DayOfMonth
	}
	if p.DueDay != nil {
		r.DueDay = *p.DueDay
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	return r
}

func (s *Store) ListRecurrents(ctx context.Context, filter RecurrentFilter) ([]core.Recurrent, error) {
	var out []core.Recurrent
	err := s.view(func(db *database) error {
		for _, r := range db.Recurrents {
			if filter.AccountID != nil && r.AccountID != *filter.AccountID {
				continue
			}
			if filter.Active != nil && r.Active != *filter.Active {
				continue
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (s *Store) GetRecurrent(ctx context.Context, id string) (core.Recurrent, error) {
	var out core.Recurrent
	err := s.view(func(db *database) error {
		for _, r := range db.Recurrents {
			if r.ID == id {
				out = r
				return nil
			}
		}
		return core.NotFoundError(CollectionRecur, id)
	})
	return out, err
}

func (s *Store) CreateRecurrent(ctx context.Context, r core.Recurrent) (core.Recurrent, error) {
	err := s.mutate(func(db *database) (bool, error) {
		db.Recurrents = append(db.Recurrents, r)
		return true, nil
	})
	return r, err
}

func (s *Store) PatchRecurrent(ctx context.Context, id string, patch RecurrentPatch) (core.Recurrent, error) {
	var out core.Recurrent
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.Recurrents {
			if db.Recurrents[i].ID != id {
				continue
			}
			db.Recurrents[i] = patch.Apply(db.Recurrents[i])
			out = db.Recurrents[i]
			return true, nil
		}
		return false, core.NotFoundError(CollectionRecur, id)
	})
	return out, err
}

func (s *Store) DeleteRecurrent(ctx context.Context, id string) (core.Recurrent, bool, error) {
	var (
		out     core.Recurrent
		removed bool
	)
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.Recurrents {
			if db.Recurrents[i].ID == id {
				out = db.Recurrents[i]
				db.Recurrents = append(db.Recurrents[:i], db.Recurrents[i+1:]...)
				removed = true
				return true, nil
			}
		}
		return false, nil
	})
	return out, removed, err
}
