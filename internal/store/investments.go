package store

import (
	"context"

	"financeiro/internal/core"
)

type PositionFilter struct {
	AccountID *int64
	Bucket    *core.Bucket
	Active    *bool
}

// PositionPatch mirrors the wire PATCH: nil fields stay unchanged. The
// derived holdings fields are not patchable here; ApplyHoldings owns
// them.
type PositionPatch struct {
	AccountID      *int64
	Bucket         *core.Bucket
	InvestmentType *string
	AssetCode      *string
	Name           *string
	Active         *bool
}

// Apply merges the patch into a copy of p. Callers validate the merged
// record before persisting it.
func (patch PositionPatch) Apply(p core.InvestmentPosition) core.InvestmentPosition {
	if patch.AccountID != nil {
		p.AccountID = *patch.AccountID
	}
	if patch.Bucket != nil {
		p.Bucket = *patch.Bucket
	}
	if patch.InvestmentType != nil {
		p.InvestmentType = *patch.InvestmentType
	}
	if patch.AssetCode != nil {
		p.AssetCode = *patch.AssetCode
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	return p
}

func (s *Store) ListPositions(ctx context.Context, filter PositionFilter) ([]core.InvestmentPosition, error) {
	var out []core.InvestmentPosition
	err := s.view(func(db *database) error {
		for _, p := range db.InvestmentPositions {
			if filter.AccountID != nil && p.AccountID != *filter.AccountID {
				continue
			}
			if filter.Bucket != nil && p.Bucket != *filter.Bucket {
				continue
			}
			if filter.Active != nil && p.Active != *filter.Active {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func (s *Store) GetPosition(ctx context.Context, id string) (core.InvestmentPosition, error) {
	var out core.InvestmentPosition
	err := s.view(func(db *database) error {
		for _, p := range db.InvestmentPositions {
			if p.ID == id {
				out = p
				return nil
			}
		}
		return core.NotFoundError(CollectionPositions, id)
	})
	return out, err
}

func (s *Store) CreatePosition(ctx context.Context, p core.InvestmentPosition) (core.InvestmentPosition, error) {
	err := s.mutate(func(db *database) (bool, error) {
		db.InvestmentPositions = append(db.InvestmentPositions, p)
		return true, nil
	})
	return p, err
}

func (s *Store) PatchPosition(ctx context.Context, id string, patch PositionPatch) (core.InvestmentPosition, error) {
	var out core.InvestmentPosition
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.InvestmentPositions {
			if db.InvestmentPositions[i].ID != id {
				continue
			}
			db.InvestmentPositions[i] = patch.Apply(db.InvestmentPositions[i])
			out = db.InvestmentPositions[i]
			return true, nil
		}
		return false, core.NotFoundError(CollectionPositions, id)
	})
	return out, err
}

// ApplyHoldings writes recomputed holdings onto a position, clearing the
// fields of the other bucket.
func (s *Store) ApplyHoldings(ctx context.Context, id string, holdings core.Holdings) (core.InvestmentPosition, error) {
	var out core.InvestmentPosition
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.InvestmentPositions {
			if db.InvestmentPositions[i].ID != id {
				continue
			}
			holdings.ApplyTo(&db.InvestmentPositions[i])
			out = db.InvestmentPositions[i]
			return true, nil
		}
		return false, core.NotFoundError(CollectionPositions, id)
	})
	return out, err
}

func (s *Store) DeletePosition(ctx context.Context, id string) (core.InvestmentPosition, bool, error) {
	var (
		out     core.InvestmentPosition
		removed bool
	)
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.InvestmentPositions {
			if db.InvestmentPositions[i].ID == id {
				out = db.InvestmentPositions[i]
				db.InvestmentPositions = append(db.InvestmentPositions[:i], db.InvestmentPositions[i+1:]...)
				removed = true
				return true, nil
			}
		}
		return false, nil
	})
	return out, removed, err
}

type EventFilter struct {
	PositionID *string
	AccountID  *int64
}

// EventPatch mirrors the wire PATCH: nil fields stay unchanged. Seq is
// store-owned and never patched.
type EventPatch struct {
	PositionID     *string
	AccountID      *int64
	Date           *string
	Type           *core.EventType
	AmountCents    *int64
	Quantity       *float64
	UnitPriceCents *int64
	FeesCents      *int64
	Note           *string
}

// Apply merges the patch into a copy of e. Callers validate the merged
// record before persisting it.
func (patch EventPatch) Apply(e core.InvestmentEvent) core.InvestmentEvent {
	if patch.PositionID != nil {
		e.PositionID = *patch.PositionID
	}
	if patch.AccountID != nil {
		e.AccountID = *patch.AccountID
	}
	if patch.Date != nil {
		e.Date = *patch.Date
	}
	if patch.Type != nil {
		e.Type = *patch.Type
	}
	if patch.AmountCents != nil {
		e.AmountCents = *patch.AmountCents
	}
	if patch.Quantity != nil {
		e.Quantity = *patch.Quantity
	}
	if patch.UnitPriceCents != nil {
		e.UnitPriceCents = *patch.UnitPriceCents
	}
	if patch.FeesCents != nil {
		e.FeesCents = *patch.FeesCents
	}
	if patch.Note != nil {
		e.Note = *patch.Note
	}
	return e
}

func (s *Store) ListEvents(ctx context.Context, filter EventFilter) ([]core.InvestmentEvent, error) {
	var out []core.InvestmentEvent
	err := s.view(func(db *database) error {
		for _, e := range db.InvestmentEvents {
			if filter.PositionID != nil && e.PositionID != *filter.PositionID {
				continue
			}
			if filter.AccountID != nil && e.AccountID != *filter.AccountID {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func (s *Store) GetEvent(ctx context.Context, id string) (core.InvestmentEvent, error) {
	var out core.InvestmentEvent
	err := s.view(func(db *database) error {
		for _, e := range db.InvestmentEvents {
			if e.ID == id {
				out = e
				return nil
			}
		}
		return core.NotFoundError(CollectionEvents, id)
	})
	return out, err
}

// CreateEvent persists a new event. Seq is assigned here as max existing
// seq + 1 so same-date events replay in insertion order.
func (s *Store) CreateEvent(ctx context.Context, e core.InvestmentEvent) (core.InvestmentEvent, error) {
	err := s.mutate(func(db *database) (bool, error) {
		var max int64
		for _, other := range db.InvestmentEvents {
			if other.Seq > max {
				max = other.Seq
			}
		}
		e.Seq = max + 1
		db.InvestmentEvents = append(db.InvestmentEvents, e)
		return true, nil
	})
	return e, err
}

func (s *Store) PatchEvent(ctx context.Context, id string, patch EventPatch) (core.InvestmentEvent, error) {
	var out core.InvestmentEvent
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.InvestmentEvents {
			if db.InvestmentEvents[i].ID != id {
				continue
			}
			db.InvestmentEvents[i] = patch.Apply(db.InvestmentEvents[i])
			out = db.InvestmentEvents[i]
			return true, nil
		}
		return false, core.NotFoundError(CollectionEvents, id)
	})
	return out, err
}

func (s *Store) DeleteEvent(ctx context.Context, id string) (core.InvestmentEvent, bool, error) {
	var (
		out     core.InvestmentEvent
		removed bool
	)
	err := s.mutate(func(db *database) (bool, error) {
		for i := range db.InvestmentEvents {
			if db.InvestmentEvents[i].ID == id {
				out = db.InvestmentEvents[i]
				db.InvestmentEvents = append(db.InvestmentEvents[:i], db.InvestmentEvents[i+1:]...)
				removed = true
				return true, nil
			}
		}
		return false, nil
	})
	return out, removed, err
}
