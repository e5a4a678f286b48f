package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/store"
)

// Investments owns positions and their event streams. Derived holdings
// are never written directly: every event change triggers a full replay
// of the affected position.
type Investments struct {
	store  *store.Store
	ledger *Ledger
	logger *log.Logger
}

func NewInvestments(st *store.Store, ledger *Ledger, logger *log.Logger) *Investments {
	return &Investments{
		store:  st,
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentInvestments),
	}
}

func (v *Investments) ListPositions(ctx context.Context, filter store.PositionFilter) ([]core.InvestmentPosition, error) {
	return v.store.ListPositions(ctx, filter)
}

func (v *Investments) GetPosition(ctx context.Context, id string) (core.InvestmentPosition, error) {
	return v.store.GetPosition(ctx, id)
}

// AddPosition creates a position with empty holdings. Any derived values
// in the input are discarded; only replay sets them.
func (v *Investments) AddPosition(ctx context.Context, position core.InvestmentPosition) (core.InvestmentPosition, error) {
	position.ID = uuid.NewString()
	position.QuantityTotal = 0
	position.AvgCostCents = 0
	position.InvestedCents = 0
	position.PrincipalCents = 0
	position.CurrentValueCents = 0
	if err := position.Validate(); err != nil {
		return core.InvestmentPosition{}, fmt.Errorf("add position: %w", err)
	}
	created, err := v.store.CreatePosition(ctx, position)
	if err != nil {
		return core.InvestmentPosition{}, fmt.Errorf("add position: %w", err)
	}
	v.logger.InfoContext(ctx, "position created",
		log.FieldOperation, log.OpCreate,
		log.FieldPositionID, created.ID,
		log.FieldAccountID, created.AccountID)
	return created, nil
}

// UpdatePosition patches descriptive fields and replays the position so
// a bucket change re-derives holdings under the new rules. The merged
// record is validated before the patch is persisted.
func (v *Investments) UpdatePosition(ctx context.Context, id string, patch store.PositionPatch) (core.InvestmentPosition, error) {
	current, err := v.store.GetPosition(ctx, id)
	if err != nil {
		return core.InvestmentPosition{}, fmt.Errorf("update position: %w", err)
	}
	if err := patch.Apply(current).Validate(); err != nil {
		return core.InvestmentPosition{}, fmt.Errorf("update position: %w", err)
	}
	updated, err := v.store.PatchPosition(ctx, id, patch)
	if err != nil {
		return core.InvestmentPosition{}, fmt.Errorf("update position: %w", err)
	}
	if patch.Bucket != nil {
		if updated, err = v.RecomputePosition(ctx, id); err != nil {
			return core.InvestmentPosition{}, err
		}
	}
	return updated, nil
}

// DeletePosition removes a position and its event stream. Cash effects
// already applied stay applied; removing a position is bookkeeping, not
// a refund.
func (v *Investments) DeletePosition(ctx context.Context, id string) error {
	positionID := id
	events, err := v.store.ListEvents(ctx, store.EventFilter{PositionID: &positionID})
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	for _, e := range events {
		if _, _, err := v.store.DeleteEvent(ctx, e.ID); err != nil {
			return fmt.Errorf("delete position: event %s: %w", e.ID, err)
		}
	}
	if _, _, err := v.store.DeletePosition(ctx, id); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	v.logger.InfoContext(ctx, "position deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldPositionID, id,
		log.FieldCount, len(events))
	return nil
}

// replayEvents derives holdings from an ordered event stream.
func replayEvents(bucket core.Bucket, events []core.InvestmentEvent) core.Holdings {
	if bucket == core.BucketFixed {
		var principal, value int64
		for _, e := range events {
			switch e.Type {
			case core.EventContribution:
				principal += e.AmountCents
				value += e.AmountCents
			case core.EventIncome:
				value += e.AmountCents
			case core.EventWithdrawal, core.EventMaturity:
				principal -= e.AmountCents
				value -= e.AmountCents
			}
		}
		if principal < 0 {
			principal = 0
		}
		if value < 0 {
			value = 0
		}
		return core.NewFixedHoldings(principal, value)
	}

	var quantity, totalCost float64
	for _, e := range events {
		switch e.Type {
		case core.EventBuy:
			quantity += e.Quantity
			totalCost += float64(e.AmountCents + e.FeesCents)
		case core.EventSell:
			// Average cost is taken before the reduction so the sale
			// removes cost at the pre-sale basis.
			var avgCost float64
			if quantity > 0 {
				avgCost = totalCost / quantity
			}
			sold := e.Quantity
			if sold > quantity {
				sold = quantity
			}
			quantity -= e.Quantity
			if quantity < 0 {
				quantity = 0
			}
			totalCost -= avgCost * sold
			if totalCost < 0 {
				totalCost = 0
			}
			totalCost = math.Round(totalCost)
		}
	}

	var avgCost int64
	if quantity > 0 {
		avgCost = int64(math.Round(totalCost / quantity))
	}
	invested := int64(math.Round(totalCost))
	if invested < 0 {
		invested = 0
	}
	return core.NewVariableHoldings(quantity, avgCost, invested)
}

// RecomputePosition fully replays a position's events (date ascending,
// insertion order on ties) and stores the derived holdings.
func (v *Investments) RecomputePosition(ctx context.Context, id string) (core.InvestmentPosition, error) {
	position, err := v.store.GetPosition(ctx, id)
	if err != nil {
		return core.InvestmentPosition{}, fmt.Errorf("recompute position: %w", err)
	}
	positionID := id
	events, err := v.store.ListEvents(ctx, store.EventFilter{PositionID: &positionID})
	if err != nil {
		return core.InvestmentPosition{}, fmt.Errorf("recompute position: %w", err)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Seq < events[j].Seq
	})

	updated, err := v.store.ApplyHoldings(ctx, id, replayEvents(position.Bucket, events))
	if err != nil {
		return core.InvestmentPosition{}, fmt.Errorf("recompute position: %w", err)
	}

	v.logger.InfoContext(ctx, "position recomputed",
		log.FieldOperation, log.OpRecompute,
		log.FieldPositionID, id,
		log.FieldCount, len(events))
	return updated, nil
}

// AccountEffect returns the signed cash delta an event applies to its
// account: buys and contributions leave the account, sells, withdrawals
// and maturities come back, income stays inside the position.
func AccountEffect(e core.InvestmentEvent, reverse bool) int64 {
	var delta int64
	switch e.Type {
	case core.EventBuy, core.EventContribution:
		delta = -e.AmountCents
	case core.EventSell, core.EventWithdrawal, core.EventMaturity:
		delta = e.AmountCents
	case core.EventIncome:
		delta = 0
	}
	if reverse {
		delta = -delta
	}
	return delta
}

func eventNote(e core.InvestmentEvent, position core.InvestmentPosition, reverse bool) string {
	label := position.AssetCode
	if label == "" {
		label = position.ID
	}
	if reverse {
		return fmt.Sprintf("investment %s reversal: %s", e.Type, label)
	}
	return fmt.Sprintf("investment %s: %s", e.Type, label)
}

func (v *Investments) ListEvents(ctx context.Context, filter store.EventFilter) ([]core.InvestmentEvent, error) {
	return v.store.ListEvents(ctx, filter)
}

// AddEvent records an event, replays the position, and applies the cash
// effect to the account.
func (v *Investments) AddEvent(ctx context.Context, e core.InvestmentEvent) (core.InvestmentEvent, error) {
	e.ID = uuid.NewString()
	if err := e.Validate(); err != nil {
		return core.InvestmentEvent{}, fmt.Errorf("add event: %w", err)
	}
	position, err := v.store.GetPosition(ctx, e.PositionID)
	if err != nil {
		return core.InvestmentEvent{}, fmt.Errorf("add event: %w", err)
	}

	created, err := v.store.CreateEvent(ctx, e)
	if err != nil {
		return core.InvestmentEvent{}, fmt.Errorf("add event: %w", err)
	}
	if _, err := v.RecomputePosition(ctx, e.PositionID); err != nil {
		return core.InvestmentEvent{}, err
	}
	if delta := AccountEffect(created, false); delta != 0 {
		if _, err := v.ledger.AdjustBalance(ctx, created.AccountID, delta, eventNote(created, position, false)); err != nil {
			return core.InvestmentEvent{}, fmt.Errorf("add event: %w", err)
		}
	}
	return created, nil
}

// UpdateEvent validates the merged event, reverses the original cash
// effect, patches the event, replays the affected position(s), then
// applies the new effect. A position move replays both the old and the
// new position. A rejected patch leaves store and balances untouched.
func (v *Investments) UpdateEvent(ctx context.Context, id string, patch store.EventPatch) (core.InvestmentEvent, error) {
	before, err := v.store.GetEvent(ctx, id)
	if err != nil {
		return core.InvestmentEvent{}, fmt.Errorf("update event: %w", err)
	}
	merged := patch.Apply(before)
	if err := merged.Validate(); err != nil {
		return core.InvestmentEvent{}, fmt.Errorf("update event: %w", err)
	}
	oldPosition, err := v.store.GetPosition(ctx, before.PositionID)
	if err != nil {
		return core.InvestmentEvent{}, fmt.Errorf("update event: %w", err)
	}
	newPosition, err := v.store.GetPosition(ctx, merged.PositionID)
	if err != nil {
		return core.InvestmentEvent{}, fmt.Errorf("update event: %w", err)
	}

	if delta := AccountEffect(before, true); delta != 0 {
		if _, err := v.ledger.AdjustBalance(ctx, before.AccountID, delta, eventNote(before, oldPosition, true)); err != nil {
			return core.InvestmentEvent{}, fmt.Errorf("update event: %w", err)
		}
	}

	after, err := v.store.PatchEvent(ctx, id, patch)
	if err != nil {
		return core.InvestmentEvent{}, fmt.Errorf("update event: %w", err)
	}
	if _, err := v.RecomputePosition(ctx, after.PositionID); err != nil {
		return core.InvestmentEvent{}, err
	}
	if after.PositionID != before.PositionID {
		if _, err := v.RecomputePosition(ctx, before.PositionID); err != nil {
			return core.InvestmentEvent{}, err
		}
	}

	if delta := AccountEffect(after, false); delta != 0 {
		if _, err := v.ledger.AdjustBalance(ctx, after.AccountID, delta, eventNote(after, newPosition, false)); err != nil {
			return core.InvestmentEvent{}, fmt.Errorf("update event: %w", err)
		}
	}
	return after, nil
}

// DeleteEvent removes an event, replays its position, and reverses the
// cash effect.
func (v *Investments) DeleteEvent(ctx context.Context, id string) error {
	e, err := v.store.GetEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	position, err := v.store.GetPosition(ctx, e.PositionID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	if _, _, err := v.store.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if _, err := v.RecomputePosition(ctx, e.PositionID); err != nil {
		return err
	}
	if delta := AccountEffect(e, true); delta != 0 {
		if _, err := v.ledger.AdjustBalance(ctx, e.AccountID, delta, eventNote(e, position, true)); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
	}
	return nil
}

// RecomputeAllPositions replays every position best-effort: failures are
// logged and counted, siblings continue.
func (v *Investments) RecomputeAllPositions(ctx context.Context) (core.BatchResult, error) {
	positions, err := v.store.ListPositions(ctx, store.PositionFilter{})
	if err != nil {
		return core.BatchResult{}, fmt.Errorf("recompute all positions: %w", err)
	}

	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, position := range positions {
		id := position.ID
		g.Go(func() error {
			if _, err := v.RecomputePosition(gctx, id); err != nil {
				v.logger.ErrorContext(gctx, "recompute failed",
					log.FieldPositionID, id,
					log.FieldError, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	// Workers never return errors; Wait just joins them.
	_ = g.Wait()

	result := core.BatchResult{
		Total:     len(positions),
		Succeeded: len(positions) - failed,
		Failed:    failed,
	}
	v.logger.InfoContext(ctx, "batch recompute finished",
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed)
	return result, nil
}
