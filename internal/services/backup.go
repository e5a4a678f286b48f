package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/sheets"
	"financeiro/internal/store"
)

// BackupVersion is the envelope version this build writes.
const BackupVersion = 1

// BackupEnvelope is the export file format. The importer also accepts a
// bare {"data": …} object and a bare collections object.
type BackupEnvelope struct {
	Version    int            `json:"version"`
	ExportedAt string         `json:"exported_at"`
	Data       store.Snapshot `json:"data"`
}

// Backup exports and restores full store snapshots.
type Backup struct {
	store  *store.Store
	sheet  sheets.BackupWriter
	logger *log.Logger
}

func NewBackup(st *store.Store, sheet sheets.BackupWriter, logger *log.Logger) *Backup {
	return &Backup{
		store:  st,
		sheet:  sheet,
		logger: logger.WithComponent(log.ComponentBackup),
	}
}

// Collect loads all six collections in parallel.
func (b *Backup) Collect(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Accounts, err = b.store.ListAccounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Transactions, err = b.store.ListTransactions(gctx, store.TransactionFilter{})
		return err
	})
	g.Go(func() (err error) {
		snap.Recurrents, err = b.store.ListRecurrents(gctx, store.RecurrentFilter{})
		return err
	})
	g.Go(func() (err error) {
		snap.History, err = b.store.ListHistory(gctx, store.HistoryFilter{})
		return err
	})
	g.Go(func() (err error) {
		snap.InvestmentPositions, err = b.store.ListPositions(gctx, store.PositionFilter{})
		return err
	})
	g.Go(func() (err error) {
		snap.InvestmentEvents, err = b.store.ListEvents(gctx, store.EventFilter{})
		return err
	})

	if err := g.Wait(); err != nil {
		return store.Snapshot{}, fmt.Errorf("collect backup data: %w", err)
	}
	return snap, nil
}

// ValidateRelations checks id uniqueness per collection and that every
// account/position reference resolves. All violations are gathered into
// one ValidationError.
func ValidateRelations(snap store.Snapshot) error {
	var violations []string

	accountIDs := map[int64]bool{}
	for _, a := range snap.Accounts {
		if accountIDs[a.ID] {
			violations = append(violations, fmt.Sprintf("duplicate account id %d", a.ID))
		}
		accountIDs[a.ID] = true
	}

	positionIDs := map[string]bool{}
	for _, p := range snap.InvestmentPositions {
		if positionIDs[p.ID] {
			violations = append(violations, fmt.Sprintf("duplicate position id %s", p.ID))
		}
		positionIDs[p.ID] = true
		if !accountIDs[p.AccountID] {
			violations = append(violations, fmt.Sprintf("position %s references missing account %d", p.ID, p.AccountID))
		}
	}

	txIDs := map[string]bool{}
	for _, tx := range snap.Transactions {
		if txIDs[tx.ID] {
			violations = append(violations, fmt.Sprintf("duplicate transaction id %s", tx.ID))
		}
		txIDs[tx.ID] = true
		if !accountIDs[tx.AccountID] {
			violations = append(violations, fmt.Sprintf("transaction %s references missing account %d", tx.ID, tx.AccountID))
		}
		if tx.DestinationAccountID != 0 && !accountIDs[tx.DestinationAccountID] {
			violations = append(violations, fmt.Sprintf("transaction %s references missing destination account %d", tx.ID, tx.DestinationAccountID))
		}
	}

	recurrentIDs := map[string]bool{}
	for _, r := range snap.Recurrents {
		if recurrentIDs[r.ID] {
			violations = append(violations, fmt.Sprintf("duplicate recurrent id %s", r.ID))
		}
		recurrentIDs[r.ID] = true
		if !accountIDs[r.AccountID] {
			violations = append(violations, fmt.Sprintf("recurrent %s references missing account %d", r.ID, r.AccountID))
		}
	}

	historyIDs := map[string]bool{}
	for _, h := range snap.History {
		if historyIDs[h.ID] {
			violations = append(violations, fmt.Sprintf("duplicate history id %s", h.ID))
		}
		historyIDs[h.ID] = true
		if !accountIDs[h.AccountID] {
			violations = append(violations, fmt.Sprintf("history %s references missing account %d", h.ID, h.AccountID))
		}
	}

	eventIDs := map[string]bool{}
	for _, e := range snap.InvestmentEvents {
		if eventIDs[e.ID] {
			violations = append(violations, fmt.Sprintf("duplicate event id %s", e.ID))
		}
		eventIDs[e.ID] = true
		if !accountIDs[e.AccountID] {
			violations = append(violations, fmt.Sprintf("event %s references missing account %d", e.ID, e.AccountID))
		}
		if !positionIDs[e.PositionID] {
			violations = append(violations, fmt.Sprintf("event %s references missing position %s", e.ID, e.PositionID))
		}
	}

	if len(violations) > 0 {
		return &core.ValidationError{Violations: violations}
	}
	return nil
}

// ParseBackup decodes a backup file. It accepts the current envelope,
// the older bare {"data": …} shape, and the oldest bare collections
// object.
func ParseBackup(raw []byte) (store.Snapshot, error) {
	var envelope BackupEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return store.Snapshot{}, fmt.Errorf("parse backup: %w", err)
	}
	if !snapshotEmpty(envelope.Data) {
		return envelope.Data, nil
	}

	var bare store.Snapshot
	if err := json.Unmarshal(raw, &bare); err != nil {
		return store.Snapshot{}, fmt.Errorf("parse backup: %w", err)
	}
	if snapshotEmpty(bare) {
		return store.Snapshot{}, &core.ValidationError{Violations: []string{"backup contains no collections"}}
	}
	return bare, nil
}

func snapshotEmpty(snap store.Snapshot) bool {
	return snap.Accounts == nil && snap.Transactions == nil && snap.Recurrents == nil &&
		snap.History == nil && snap.InvestmentPositions == nil && snap.InvestmentEvents == nil
}

// Replace validates the snapshot and swaps the store's contents for it.
// Nothing is touched when validation fails.
func (b *Backup) Replace(ctx context.Context, snap store.Snapshot) error {
	if err := ValidateRelations(snap); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	if err := b.store.ReplaceAll(ctx, snap); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	b.logger.InfoContext(ctx, "backup restored",
		log.FieldOperation, log.OpImport,
		"accounts", len(snap.Accounts),
		"transactions", len(snap.Transactions),
		"recurrents", len(snap.Recurrents),
		"history", len(snap.History),
		"positions", len(snap.InvestmentPositions),
		"events", len(snap.InvestmentEvents))
	return nil
}

// Export collects everything and renders the envelope. When a sheet
// writer is configured a summary row is appended; sheet failures are
// logged, never fail the export.
func (b *Backup) Export(ctx context.Context) ([]byte, error) {
	snap, err := b.Collect(ctx)
	if err != nil {
		return nil, err
	}
	envelope := BackupEnvelope{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Data:       snap,
	}
	raw, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export backup: %w", err)
	}

	if b.sheet != nil {
		summary := sheets.BackupSummary{
			ExportedAt:   envelope.ExportedAt,
			Accounts:     len(snap.Accounts),
			Transactions: len(snap.Transactions),
			Recurrents:   len(snap.Recurrents),
			History:      len(snap.History),
			Positions:    len(snap.InvestmentPositions),
			Events:       len(snap.InvestmentEvents),
		}
		if err := b.sheet.AppendBackupSummary(ctx, summary); err != nil {
			b.logger.ErrorContext(ctx, "sheet export failed", log.FieldError, err)
		}
	}

	b.logger.InfoContext(ctx, "backup exported",
		log.FieldOperation, log.OpExport,
		"transactions", len(snap.Transactions))
	return raw, nil
}
