// Package store implements the flat JSON-file collection store backing
// every component. One file holds all six collections; every mutation
// rewrites the file. File access is serialized by an internal mutex,
// but read-modify-write sequences spanning multiple calls are not
// atomic — callers that need serialization (the ledger) provide their
// own.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"financeiro/internal/core"
)

// Collection names as they appear in the JSON file and in error
// messages.
const (
	CollectionAccounts  = "accounts"
	CollectionTxns      = "transactions"
	CollectionRecur     = "recurrents"
	CollectionHistory   = "history"
	CollectionPositions = "investment_positions"
	CollectionEvents    = "investment_events"
)

type database struct {
	Accounts            []core.Account            `json:"accounts"`
	Transactions        []core.Transaction        `json:"transactions"`
	Recurrents          []core.Recurrent          `json:"recurrents"`
	History             []core.BalanceSnapshot    `json:"history"`
	InvestmentPositions []core.InvestmentPosition `json:"investment_positions"`
	InvestmentEvents    []core.InvestmentEvent    `json:"investment_events"`
}

// Store owns the db.json file.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open binds a store to path, creating the directory and an empty
// database file when absent.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(&database{
			Accounts:            []core.Account{},
			Transactions:        []core.Transaction{},
			Recurrents:          []core.Recurrent{},
			History:             []core.BalanceSnapshot{},
			InvestmentPositions: []core.InvestmentPosition{},
			InvestmentEvents:    []core.InvestmentEvent{},
		}); err != nil {
			return nil, fmt.Errorf("initialize database file: %w", err)
		}
	} else if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() (*database, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read database file: %w", err)
	}
	var db database
	if err := json.Unmarshal(raw, &db); err != nil {
		return nil, fmt.Errorf("parse database file: %w", err)
	}
	return &db, nil
}

func (s *Store) save(db *database) error {
	raw, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encode database: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0644); err != nil {
		return fmt.Errorf("write database file: %w", err)
	}
	return nil
}

// mutate runs fn against the loaded database under the store mutex and
// persists the result when fn reports a change.
func (s *Store) mutate(fn func(db *database) (changed bool, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return err
	}
	changed, err := fn(db)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.save(db)
}

// view runs fn against a read-only load under the store mutex.
func (s *Store) view(fn func(db *database) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return err
	}
	return fn(db)
}
