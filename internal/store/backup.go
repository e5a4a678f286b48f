package store

import (
	"context"

	"financeiro/internal/core"
)

// Snapshot is a full copy of every collection, used by backup export and
// restore.
type Snapshot struct {
	Accounts            []core.Account            `json:"accounts"`
	Transactions        []core.Transaction        `json:"transactions"`
	Recurrents          []core.Recurrent          `json:"recurrents"`
	History             []core.BalanceSnapshot    `json:"history"`
	InvestmentPositions []core.InvestmentPosition `json:"investment_positions"`
	InvestmentEvents    []core.InvestmentEvent    `json:"investment_events"`
}

func (s *Store) Export(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := s.view(func(db *database) error {
		out = Snapshot{
			Accounts:            append([]core.Account{}, db.Accounts...),
			Transactions:        append([]core.Transaction{}, db.Transactions...),
			Recurrents:          append([]core.Recurrent{}, db.Recurrents...),
			History:             append([]core.BalanceSnapshot{}, db.History...),
			InvestmentPositions: append([]core.InvestmentPosition{}, db.InvestmentPositions...),
			InvestmentEvents:    append([]core.InvestmentEvent{}, db.InvestmentEvents...),
		}
		return nil
	})
	return out, err
}

// ReplaceAll swaps the entire database for the snapshot in one write, so
// a restore never leaves the file half-replaced.
func (s *Store) ReplaceAll(ctx context.Context, snap Snapshot) error {
	return s.mutate(func(db *database) (bool, error) {
		db.Accounts = emptyIfNil(snap.Accounts)
		db.Transactions = emptyIfNil(snap.Transactions)
		db.Recurrents = emptyIfNil(snap.Recurrents)
		db.History = emptyIfNil(snap.History)
		db.InvestmentPositions = emptyIfNil(snap.InvestmentPositions)
		db.InvestmentEvents = emptyIfNil(snap.InvestmentEvents)
		return true, nil
	})
}

// emptyIfNil keeps restored collections as [] in the file instead of
// null.
func emptyIfNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
