package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"financeiro/internal/amqp"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/store"
)

// Ledger is the only writer of balance_cents after account creation.
// Every cash-moving component computes a signed delta and calls
// AdjustBalance; the mutex makes the read-modify-write on a balance
// atomic across callers in this process.
type Ledger struct {
	mu         sync.Mutex
	store      *store.Store
	amqpClient *amqp.Client
	logger     *log.Logger
}

func NewLedger(st *store.Store, amqpClient *amqp.Client, logger *log.Logger) *Ledger {
	return &Ledger{
		store:      st,
		amqpClient: amqpClient,
		logger:     logger.WithComponent(log.ComponentLedger),
	}
}

// AdjustBalance applies one signed delta to an account and appends a
// history snapshot with the resulting balance. A zero delta is applied
// like any other so the caller's history note is still recorded.
func (l *Ledger) AdjustBalance(ctx context.Context, accountID, deltaCents int64, note string) (core.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return core.Account{}, fmt.Errorf("adjust balance: %w", err)
	}

	newBalance := account.BalanceCents + deltaCents
	updated, err := l.store.PatchAccount(ctx, accountID, store.AccountPatch{BalanceCents: &newBalance})
	if err != nil {
		return core.Account{}, fmt.Errorf("adjust balance: %w", err)
	}

	snapshot := core.BalanceSnapshot{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Date:         core.TodayISO(),
		BalanceCents: newBalance,
		Note:         note,
	}
	if _, err := l.store.AppendHistory(ctx, snapshot); err != nil {
		return core.Account{}, fmt.Errorf("append history: %w", err)
	}

	l.logger.InfoContext(ctx, "balance adjusted",
		log.FieldOperation, log.OpAdjust,
		log.FieldAccountID, accountID,
		log.FieldDeltaCents, deltaCents,
		log.FieldBalance, newBalance)

	l.publishBalanceChanged(ctx, accountID, deltaCents, newBalance, note)

	return updated, nil
}

func (l *Ledger) publishBalanceChanged(ctx context.Context, accountID, deltaCents, balanceCents int64, note string) {
	if l.amqpClient == nil {
		l.logger.DebugContext(ctx, "AMQP client not available, skipping balance event")
		return
	}
	msg := amqp.NewBalanceChangedMessage(accountID, deltaCents, balanceCents, note)
	if err := l.amqpClient.PublishBalanceChanged(ctx, msg); err != nil {
		// Events are advisory; the ledger write already succeeded.
		l.logger.ErrorContext(ctx, "publish balance event failed",
			log.FieldAccountID, accountID,
			log.FieldError, err)
	}
}

// CascadeResult counts what a cascade delete removed per collection.
type CascadeResult struct {
	Events       int `json:"events"`
	Positions    int `json:"positions"`
	Transactions int `json:"transactions"`
	Recurrents   int `json:"recurrents"`
	History      int `json:"history"`
}

// Cascade stages, in deletion order.
const (
	StageEvents       = "events"
	StagePositions    = "positions"
	StageTransactions = "transactions"
	StageRecurrents   = "recurrents"
	StageHistory      = "history"
	StageAccount      = "account"
)

// DeleteAccountCascade removes an account and everything that references
// it, in dependency order. Individual record deletions that fail are
// logged and skipped so siblings still go; the final account delete is
// the only hard failure.
func (l *Ledger) DeleteAccountCascade(ctx context.Context, accountID int64, progress func(stage string)) (CascadeResult, error) {
	var result CascadeResult

	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return result, fmt.Errorf("cascade delete: %w", err)
	}

	report := func(stage string) {
		if progress != nil {
			progress(stage)
		}
	}

	// Events owned by the account plus events under the account's
	// positions (a position's events may carry another accountId).
	report(StageEvents)
	positions, err := l.store.ListPositions(ctx, store.PositionFilter{AccountID: &accountID})
	if err != nil {
		return result, fmt.Errorf("cascade delete: list positions: %w", err)
	}
	eventIDs := map[string]bool{}
	events, err := l.store.ListEvents(ctx, store.EventFilter{AccountID: &accountID})
	if err != nil {
		return result, fmt.Errorf("cascade delete: list events: %w", err)
	}
	for _, e := range events {
		eventIDs[e.ID] = true
	}
	for _, p := range positions {
		positionID := p.ID
		positionEvents, err := l.store.ListEvents(ctx, store.EventFilter{PositionID: &positionID})
		if err != nil {
			return result, fmt.Errorf("cascade delete: list position events: %w", err)
		}
		for _, e := range positionEvents {
			eventIDs[e.ID] = true
		}
	}
	for id := range eventIDs {
		if _, removed, err := l.store.DeleteEvent(ctx, id); err != nil {
			l.logger.ErrorContext(ctx, "cascade event delete failed", log.FieldEventID, id, log.FieldError, err)
		} else if removed {
			result.Events++
		}
	}

	report(StagePositions)
	for _, p := range positions {
		if _, removed, err := l.store.DeletePosition(ctx, p.ID); err != nil {
			l.logger.ErrorContext(ctx, "cascade position delete failed", log.FieldPositionID, p.ID, log.FieldError, err)
		} else if removed {
			result.Positions++
		}
	}

	// Origin legs plus transfer legs arriving at this account.
	report(StageTransactions)
	txIDs := map[string]bool{}
	owned, err := l.store.ListTransactions(ctx, store.TransactionFilter{AccountID: &accountID})
	if err != nil {
		return result, fmt.Errorf("cascade delete: list transactions: %w", err)
	}
	incoming, err := l.store.ListTransactions(ctx, store.TransactionFilter{DestinationAccountID: &accountID})
	if err != nil {
		return result, fmt.Errorf("cascade delete: list incoming transfers: %w", err)
	}
	for _, tx := range owned {
		txIDs[tx.ID] = true
	}
	for _, tx := range incoming {
		txIDs[tx.ID] = true
	}
	for id := range txIDs {
		if _, removed, err := l.store.DeleteTransaction(ctx, id); err != nil {
			l.logger.ErrorContext(ctx, "cascade transaction delete failed", log.FieldTxID, id, log.FieldError, err)
		} else if removed {
			result.Transactions++
		}
	}

	report(StageRecurrents)
	recurrents, err := l.store.ListRecurrents(ctx, store.RecurrentFilter{AccountID: &accountID})
	if err != nil {
		return result, fmt.Errorf("cascade delete: list recurrents: %w", err)
	}
	for _, r := range recurrents {
		if _, removed, err := l.store.DeleteRecurrent(ctx, r.ID); err != nil {
			l.logger.ErrorContext(ctx, "cascade recurrent delete failed", log.FieldRecurrentID, r.ID, log.FieldError, err)
		} else if removed {
			result.Recurrents++
		}
	}

	report(StageHistory)
	history, err := l.store.ListHistory(ctx, store.HistoryFilter{AccountID: &accountID})
	if err != nil {
		return result, fmt.Errorf("cascade delete: list history: %w", err)
	}
	for _, h := range history {
		if _, removed, err := l.store.DeleteHistory(ctx, h.ID); err != nil {
			l.logger.ErrorContext(ctx, "cascade history delete failed", "history_id", h.ID, log.FieldError, err)
		} else if removed {
			result.History++
		}
	}

	report(StageAccount)
	if _, _, err := l.store.DeleteAccount(ctx, accountID); err != nil {
		return result, fmt.Errorf("cascade delete: account: %w", err)
	}

	l.logger.InfoContext(ctx, "account cascade deleted",
		log.FieldAccountID, accountID,
		"events", result.Events,
		"positions", result.Positions,
		"transactions", result.Transactions,
		"recurrents", result.Recurrents,
		"history", result.History)

	return result, nil
}
